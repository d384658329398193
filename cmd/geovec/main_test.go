package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/geovec/pkg/config"
	"github.com/ajitpratap0/geovec/pkg/export"
	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
	"github.com/ajitpratap0/geovec/pkg/store"
	"github.com/ajitpratap0/geovec/pkg/store/memory"
	"github.com/ajitpratap0/geovec/pkg/testutil"
)

const roadsSpec = "name:String:index=true,lanes:Integer:index=true,*geom:Point"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(testutil.TestContext(t))
	return out.String(), err
}

// sharedPlatform keeps one in-memory platform alive across commands.
type sharedPlatform struct{ store.Platform }

func (sharedPlatform) Close() error { return nil }

func useMemoryStore(t *testing.T) {
	t.Helper()
	p := memory.New()
	prev := openPlatform
	openPlatform = func(context.Context, config.StoreConfig) (store.Platform, error) {
		return sharedPlatform{p}, nil
	}
	t.Cleanup(func() { openPlatform = prev })
}

// writeRoads writes three roads to dir/name and returns the path.
func writeRoads(t *testing.T, dir, name string) string {
	t.Helper()
	sft, err := feature.ParseSpec("roads", roadsSpec)
	require.NoError(t, err)
	sfv, err := sfvector.Create(sft, map[string][]string{"name": {"main", "elm"}}, nil)
	require.NoError(t, err)
	defer sfv.Close()
	require.NoError(t, sfv.Load([]feature.Feature{
		feature.MustNewSimpleFeature(sft, "r1", "main", 2, orb.Point{1, 1}),
		feature.MustNewSimpleFeature(sft, "r2", "elm", 4, orb.Point{2, 2}),
		feature.MustNewSimpleFeature(sft, "r3", "main", 1, orb.Point{3, 3}),
	}))
	path := filepath.Join(dir, name)
	format, err := export.FormatOf(path)
	require.NoError(t, err)
	require.NoError(t, export.WriteFile(path, sfv, export.Options{Format: format}))
	return path
}

// writeCounts writes a type without geometry or dictionaries.
func writeCounts(t *testing.T, dir, name string) string {
	t.Helper()
	sft, err := feature.ParseSpec("counts", "name:String,total:Long")
	require.NoError(t, err)
	sfv, err := sfvector.Create(sft, nil, nil)
	require.NoError(t, err)
	defer sfv.Close()
	require.NoError(t, sfv.Load([]feature.Feature{
		feature.MustNewSimpleFeature(sft, "c1", "main", int64(10)),
		feature.MustNewSimpleFeature(sft, "c2", nil, int64(3)),
	}))
	path := filepath.Join(dir, name)
	require.NoError(t, export.WriteFile(path, sfv, export.Options{Format: export.ArrowStream}))
	return path
}

func geoJSONIDs(t *testing.T, out string) []string {
	t.Helper()
	fc, err := geojson.UnmarshalFeatureCollection([]byte(out))
	require.NoError(t, err)
	ids := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		ids = append(ids, fmt.Sprint(f.ID))
	}
	sort.Strings(ids)
	return ids
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "geovec v"+version)
	assert.Contains(t, out, "Attribute index: v3")
}

func TestConfigInit(t *testing.T) {
	t.Setenv("GEOVEC_STORE_SHARDS", "8")
	path := filepath.Join(t.TempDir(), "geovec.yaml")

	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, cfg.Store.Type)
	assert.Equal(t, 8, cfg.Store.Shards)

	_, err = run(t, "config", "init", path)
	require.Error(t, err)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeConflict))

	_, err = run(t, "config", "init", path, "--force")
	require.NoError(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  type: dynamo\n"), 0o600))
	_, err := run(t, "--config", path, "version")
	require.Error(t, err)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeConfig))
}

func TestConvertAndInspect(t *testing.T) {
	dir := t.TempDir()
	input := writeRoads(t, dir, "roads.arrows")

	out, err := run(t, "convert", input, filepath.Join(dir, "roads.arrow"))
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 3 features")

	out, err = run(t, "inspect", filepath.Join(dir, "roads.arrow"))
	require.NoError(t, err)
	assert.Contains(t, out, "type: roads")
	assert.Contains(t, out, "fids: full")
	assert.Contains(t, out, "precision: double")
	assert.Contains(t, out, "dictionary name: main, elm")
	assert.Contains(t, out, "total: 3 rows in 1 batches")

	counts := writeCounts(t, dir, "counts.arrows")
	out, err = run(t, "convert", counts, filepath.Join(dir, "counts.parquet"), "--compression", "zstd")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 features")

	out, err = run(t, "inspect", filepath.Join(dir, "counts.parquet"))
	require.NoError(t, err)
	assert.Contains(t, out, "type: counts")
	assert.Contains(t, out, "total: 2 rows")
}

func TestConvertArguments(t *testing.T) {
	dir := t.TempDir()
	input := writeRoads(t, dir, "roads.arrows")

	_, err := run(t, "convert", input)
	require.Error(t, err)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeInvalidArgument))

	_, err = run(t, "convert", input, filepath.Join(dir, "roads.csv"))
	require.Error(t, err)

	_, err = run(t, "convert", input, filepath.Join(dir, "out.bin"), "--format", "arrow-file")
	require.NoError(t, err)

	_, err = run(t, "convert", input, "--s3", "--gcs")
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeInvalidArgument))

	_, err = run(t, "convert", input, "--gcs")
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeConfig))
}

func TestConvertToAvro(t *testing.T) {
	dir := t.TempDir()
	input := writeRoads(t, dir, "roads.arrows")
	output := filepath.Join(dir, "roads.avro")

	out, err := run(t, "convert", input, output)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 3 features")

	out, err = run(t, "inspect", output)
	require.NoError(t, err)
	assert.Contains(t, out, "type: roads")
	assert.Contains(t, out, "total: 3 rows")
}

func TestSchemaIngestAndQuery(t *testing.T) {
	useMemoryStore(t)
	dir := t.TempDir()
	input := writeRoads(t, dir, "input.arrow")

	out, err := run(t, "schema", "create", "roads", roadsSpec)
	require.NoError(t, err)
	assert.Contains(t, out, "created roads")

	out, err = run(t, "ingest", input, "--type", "roads", "--batch-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "ingested 3 features into roads")

	out, err = run(t, "schema", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "roads\t")

	out, err = run(t, "query", "roads", "--attr", "name", "--eq", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r3"}, geoJSONIDs(t, out))

	out, err = run(t, "query", "roads", "--attr", "lanes", "--gte", "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, geoJSONIDs(t, out))

	out, err = run(t, "query", "roads", "--bbox", "0,0,2.5,2.5")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, geoJSONIDs(t, out))

	results := filepath.Join(dir, "results.arrows")
	out, err = run(t, "query", "roads", "--out", results)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 3 features")
	out, err = run(t, "inspect", results)
	require.NoError(t, err)
	assert.Contains(t, out, "total: 3 rows")

	_, err = run(t, "query", "roads", "--eq", "main")
	require.Error(t, err)
	_, err = run(t, "query", "roads", "--attr", "name")
	require.Error(t, err)

	out, err = run(t, "schema", "remove", "roads")
	require.NoError(t, err)
	assert.Contains(t, out, "removed roads")
	_, err = run(t, "query", "roads")
	require.Error(t, err)
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeNotFound))
}

func TestIngestRegistersFileType(t *testing.T) {
	useMemoryStore(t)
	input := writeRoads(t, t.TempDir(), "roads.arrows")

	out, err := run(t, "ingest", input, "--bbox", "0,0,2.5,2.5")
	require.NoError(t, err)
	assert.Contains(t, out, "ingested 2 features into roads (1 filtered")

	out, err = run(t, "query", "roads")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, geoJSONIDs(t, out))
}

func TestIngestGeoJSON(t *testing.T) {
	useMemoryStore(t)
	path := filepath.Join(t.TempDir(), "places.geojson")
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"name":"main","lanes":2}},
		{"type":"Feature","id":"b","geometry":{"type":"Point","coordinates":[3,4]},"properties":{"name":"elm","lanes":1}}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := run(t, "ingest", path)
	require.Error(t, err, "GeoJSON needs a registered type")
	assert.True(t, geoerrors.IsType(err, geoerrors.ErrorTypeNotFound))

	out, err := run(t, "ingest", path, "--spec", roadsSpec)
	require.NoError(t, err)
	assert.Contains(t, out, "ingested 2 features into places")

	out, err = run(t, "query", "places", "--attr", "lanes", "--lt", "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, geoJSONIDs(t, out))
}

func TestParseBBox(t *testing.T) {
	box, err := parseBBox("-1, -2, 3, 4")
	require.NoError(t, err)
	assert.Equal(t, orb.Bound{Min: orb.Point{-1, -2}, Max: orb.Point{3, 4}}, box)

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "3,0,1,1"} {
		_, err := parseBBox(bad)
		assert.Error(t, err, bad)
	}
}
