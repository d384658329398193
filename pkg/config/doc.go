// Configuration files are plain YAML with one section per component:
//
//	store:
//	  type: redis
//	  shards: 4
//	  redis:
//	    address: ${REDIS_ADDR}
//	compression:
//	  algorithm: zstd
//	export:
//	  format: parquet
//	  compression: snappy
//	  gcs:
//	    bucket: geovec-exports
//
// store.type selects memory, redis, cassandra or postgres; each platform
// reads its own subsection (store.postgres.url, store.cassandra.hosts, ...).
//
// ${VAR} references are expanded before parsing. Any key can also be set
// through the environment by upper-casing its path and joining with
// underscores, e.g. GEOVEC_STORE_TYPE=cassandra or GEOVEC_LOGGING_LEVEL=debug.
// Environment values take precedence over the file.
package config
