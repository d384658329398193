package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/store"
	"github.com/ajitpratap0/geovec/pkg/testutil"
)

func TestScanQuery(t *testing.T) {
	stmt, args := scanQuery("gv", "t", store.Range{}, nil, 10)
	assert.Equal(t, "SELECT key, value FROM gv.t ORDER BY key LIMIT 10", stmt)
	assert.Empty(t, args)

	r := store.Range{Start: []byte{1}, End: []byte{2}}
	stmt, args = scanQuery("gv", "t", r, nil, 10)
	assert.Equal(t, "SELECT key, value FROM gv.t WHERE key >= $1 AND key < $2 ORDER BY key LIMIT 10", stmt)
	assert.Equal(t, []any{[]byte{1}, []byte{2}}, args)

	stmt, args = scanQuery("gv", "t", r, []byte{1, 5}, 10)
	assert.Equal(t, "SELECT key, value FROM gv.t WHERE key > $1 AND key < $2 ORDER BY key LIMIT 10", stmt)
	assert.Equal(t, []any{[]byte{1, 5}, []byte{2}}, args)

	stmt, _ = scanQuery("gv", "t", store.Range{Start: []byte{1}}, nil, 5)
	assert.Equal(t, "SELECT key, value FROM gv.t WHERE key >= $1 ORDER BY key LIMIT 5", stmt)
}

func TestCreateStatement(t *testing.T) {
	assert.True(t, strings.HasPrefix(createStatement("gv", "t"), "CREATE TABLE IF NOT EXISTS gv.t (key bytea PRIMARY KEY"))
}

func TestConfigDefaults(t *testing.T) {
	c := withDefaults(Config{URL: "postgres://db/geo"})
	assert.Equal(t, "postgres://db/geo", c.URL)
	assert.Equal(t, "geovec", c.Schema)
	assert.EqualValues(t, 10, c.MaxConns)
	assert.Equal(t, 1000, c.PageSize)

	_, err := Open(context.Background(), Config{Schema: "bad-name"})
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeConfig))
}

func TestPostgresPlatform(t *testing.T) {
	testutil.IntegrationTest(t)
	url := testutil.EnvOrSkip(t, "GEOVEC_POSTGRES_URL")
	suite.Run(t, &testutil.PlatformSuite{
		NewPlatform: func(t *testing.T) store.Platform {
			p, err := Open(context.Background(), Config{URL: url, Schema: "geovec_test", PageSize: 2})
			require.NoError(t, err)
			return p
		},
	})
}
