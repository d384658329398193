package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/store"
	"github.com/ajitpratap0/geovec/pkg/testutil"
)

func TestMemoryPlatform(t *testing.T) {
	suite.Run(t, &testutil.PlatformSuite{
		NewPlatform: func(t *testing.T) store.Platform { return New() },
	})
}

func TestScanSeesSnapshot(t *testing.T) {
	ctx := context.Background()
	p := New()
	require.NoError(t, p.Apply(ctx, "t", []store.Mutation{
		store.Put([]byte("a"), []byte("1")),
		store.Put([]byte("b"), []byte("2")),
	}))

	var keys []string
	err := p.Scan(ctx, "t", store.Range{}, func(key, _ []byte) error {
		keys = append(keys, string(key))
		return p.Apply(ctx, "t", []store.Mutation{store.Put([]byte("c"), nil)})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, 3, p.Len("t"))
	assert.ElementsMatch(t, []string{"t"}, p.Tables())
}

func TestClosedPlatform(t *testing.T) {
	p := New()
	require.NoError(t, p.Close())
	err := p.Apply(context.Background(), "t", []store.Mutation{store.Put([]byte("a"), nil)})
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeConnection))
	assert.Equal(t, 0, p.Len("t"))
}
