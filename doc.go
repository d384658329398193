// Package geovec stores simple features in Apache Arrow columnar vectors and
// indexes them by attribute on ordered key-value stores.
//
// # Architecture
//
// The module is layered bottom up:
//
//   - pkg/vector: growable Arrow child vectors (fixed width, variable width,
//     dictionary, list and struct) over a memory.Allocator.
//   - pkg/feature: feature types parsed from spec strings, features and
//     attribute value conversion, plus GeoJSON.
//   - pkg/sfvector: SimpleFeatureVector, binding features onto a struct vector
//     with configurable feature id encoding and geometry precision.
//   - pkg/attrindex: the lexicoded attribute index key layout (v3), with
//     optional Z2 secondary tiers.
//   - pkg/index: the sharded attribute index writer and range planner.
//   - pkg/store: the key-value platform interface with memory, Redis,
//     Cassandra and PostgreSQL implementations.
//   - pkg/datastore: schemas, feature writes and attribute queries on top of a
//     platform.
//   - pkg/export: Arrow IPC, Parquet and Avro files plus S3 and GCS uploads.
//   - internal/pipeline: batched, retried and rate limited ingestion.
//
// The geovec command (cmd/geovec) exposes conversion, inspection, schema
// management, ingestion and queries.
//
// # Quick Start
//
//	sft, _ := feature.ParseSpec("roads", "name:String:index=true,*geom:Point")
//	ds, _ := datastore.New(memory.New(), datastore.Options{})
//	defer ds.Close()
//	_ = ds.CreateSchema(ctx, sft)
//	_ = ds.Write(ctx, "roads", features)
//	found, _ := ds.Query(ctx, "roads", datastore.Query{
//		Query: index.Query{Attribute: "name", Equals: "main"},
//	})
//
// # Configuration
//
// The command reads YAML configuration through pkg/config with GEOVEC_
// environment overrides. Logging uses zap through pkg/logger, metrics are
// Prometheus collectors in pkg/metrics and tracing is OpenTelemetry in
// pkg/observability.
package geovec
