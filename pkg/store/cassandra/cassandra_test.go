package cassandra

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/store"
	"github.com/ajitpratap0/geovec/pkg/testutil"
)

func TestCollapseKeepsLastMutationPerKey(t *testing.T) {
	muts := collapse([]store.Mutation{
		store.Put([]byte("a"), []byte("1")),
		store.Put([]byte("b"), []byte("1")),
		store.Del([]byte("a")),
		store.Put([]byte("b"), []byte("2")),
	})
	require.Len(t, muts, 2)
	assert.Equal(t, store.Del([]byte("a")), muts[0])
	assert.Equal(t, store.Put([]byte("b"), []byte("2")), muts[1])
}

func TestBucketSpan(t *testing.T) {
	first, last := bucketSpan(store.Range{})
	assert.Equal(t, 0, first)
	assert.Equal(t, 255, last)

	first, last = bucketSpan(store.PrefixRange([]byte{3, 0, 1}))
	assert.Equal(t, 3, first)
	assert.Equal(t, 3, last)

	first, last = bucketSpan(store.PrefixRange([]byte{3}))
	assert.Equal(t, 3, first)
	assert.Equal(t, 3, last)

	first, last = bucketSpan(store.Range{Start: []byte{1, 9}, End: []byte{4, 0}})
	assert.Equal(t, 1, first)
	assert.Equal(t, 4, last)
}

func TestStatements(t *testing.T) {
	assert.Equal(t, "SELECT key, value FROM ks.t WHERE bucket = ?;", scanStatement("ks", "t", false, false))
	assert.Equal(t, "SELECT key, value FROM ks.t WHERE bucket = ? AND key >= ? AND key < ?;", scanStatement("ks", "t", true, true))
	assert.True(t, strings.HasPrefix(createStatement("ks", "t"), "CREATE TABLE IF NOT EXISTS ks.t (bucket int"))
}

func TestConfigDefaults(t *testing.T) {
	c := withDefaults(Config{Hosts: []string{"cass-1"}})
	assert.Equal(t, []string{"cass-1"}, c.Hosts)
	assert.Equal(t, "geovec", c.Keyspace)
	assert.Equal(t, "LOCAL_QUORUM", c.Consistency)
	assert.Equal(t, 100, c.BatchSize)

	_, err := Open(Config{Keyspace: "bad-name"})
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeConfig))
	_, err = Open(Config{Consistency: "SOMETIMES"})
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeConfig))
}

func TestIdentifierValidation(t *testing.T) {
	assert.True(t, identifier.MatchString("roads_attr_v3"))
	assert.False(t, identifier.MatchString("roads;DROP"))
	assert.False(t, identifier.MatchString("1roads"))
}

func TestCassandraPlatform(t *testing.T) {
	testutil.IntegrationTest(t)
	hosts := testutil.EnvOrSkip(t, "GEOVEC_CASSANDRA_HOSTS")
	suite.Run(t, &testutil.PlatformSuite{
		NewPlatform: func(t *testing.T) store.Platform {
			p, err := Open(Config{Hosts: strings.Split(hosts, ","), Keyspace: "geovec_test", Consistency: "ONE"})
			require.NoError(t, err)
			return p
		},
	})
}
