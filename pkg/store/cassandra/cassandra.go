// Package cassandra implements store.Platform on Apache Cassandra.
//
// Every table has the layout
//
//	(bucket int, key blob, value blob, PRIMARY KEY ((bucket), key))
//
// where bucket is the first key byte. Attribute index keys start with their
// shard byte, so each shard is one partition and keys inside it are
// clustered in byte order.
package cassandra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gocql/gocql"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/store"
)

// Config contains the cluster contact points and keyspace settings.
type Config struct {
	Hosts    []string `yaml:"hosts" mapstructure:"hosts"`
	Keyspace string   `yaml:"keyspace" mapstructure:"keyspace"`
	// Consistency is a gocql consistency name such as LOCAL_QUORUM.
	Consistency       string        `yaml:"consistency" mapstructure:"consistency"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" mapstructure:"connection_timeout"`
	Username          string        `yaml:"username" mapstructure:"username"`
	Password          string        `yaml:"password" mapstructure:"password"`
	// ReplicationClause defines the keyspace replication when it is created.
	ReplicationClause string `yaml:"replication" mapstructure:"replication"`
	BatchSize         int    `yaml:"batch_size" mapstructure:"batch_size"`
	PageSize          int    `yaml:"page_size" mapstructure:"page_size"`
}

// DefaultConfig targets a single local node.
func DefaultConfig() Config {
	return Config{
		Hosts:             []string{"127.0.0.1"},
		Keyspace:          "geovec",
		Consistency:       "LOCAL_QUORUM",
		ConnectionTimeout: 10 * time.Second,
		ReplicationClause: "{'class':'SimpleStrategy', 'replication_factor':1}",
		BatchSize:         100,
		PageSize:          1000,
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,47}$`)

// Platform stores tables in one keyspace.
type Platform struct {
	session *gocql.Session
	config  Config
	created sync.Map
}

var _ store.Platform = (*Platform)(nil)

// Open connects to the cluster and creates the keyspace if needed.
func Open(config Config) (*Platform, error) {
	config = withDefaults(config)
	if !identifier.MatchString(config.Keyspace) {
		return nil, geoerrors.New(geoerrors.ErrorTypeConfig, "invalid keyspace name").
			WithDetail("keyspace", config.Keyspace)
	}
	consistency, err := gocql.ParseConsistencyWrapper(config.Consistency)
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeConfig, "invalid consistency")
	}

	cluster := gocql.NewCluster(config.Hosts...)
	cluster.Consistency = consistency
	if config.ConnectionTimeout > 0 {
		cluster.ConnectTimeout = config.ConnectionTimeout
		cluster.Timeout = config.ConnectionTimeout
	}
	if config.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: config.Username,
			Password: config.Password,
		}
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "cannot connect to cassandra").
			WithDetail("hosts", strings.Join(config.Hosts, ","))
	}
	stmt := fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = %s;", config.Keyspace, config.ReplicationClause)
	if err := session.Query(stmt).Exec(); err != nil {
		session.Close()
		return nil, geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "cannot create keyspace").
			WithDetail("keyspace", config.Keyspace)
	}
	return &Platform{session: session, config: config}, nil
}

func withDefaults(c Config) Config {
	d := DefaultConfig()
	if len(c.Hosts) == 0 {
		c.Hosts = d.Hosts
	}
	if c.Keyspace == "" {
		c.Keyspace = d.Keyspace
	}
	if c.Consistency == "" {
		c.Consistency = d.Consistency
	}
	if c.ReplicationClause == "" {
		c.ReplicationClause = d.ReplicationClause
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	return c
}

func (p *Platform) Name() string { return "cassandra" }

func (p *Platform) ensureTable(ctx context.Context, table string) error {
	if _, ok := p.created.Load(table); ok {
		return nil
	}
	if !identifier.MatchString(table) {
		return geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "invalid table name").
			WithDetail("table", table)
	}
	if err := p.session.Query(createStatement(p.config.Keyspace, table)).WithContext(ctx).Exec(); err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "cannot create table").
			WithDetail("table", table)
	}
	p.created.Store(table, struct{}{})
	return nil
}

func (p *Platform) Apply(ctx context.Context, table string, mutations []store.Mutation) error {
	if err := p.ensureTable(ctx, table); err != nil {
		return err
	}
	insert := fmt.Sprintf("INSERT INTO %s.%s (bucket, key, value) VALUES (?, ?, ?);", p.config.Keyspace, table)
	remove := fmt.Sprintf("DELETE FROM %s.%s WHERE bucket = ? AND key = ?;", p.config.Keyspace, table)

	muts := collapse(mutations)
	for start := 0; start < len(muts); start += p.config.BatchSize {
		end := min(start+p.config.BatchSize, len(muts))
		batch := p.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
		for _, m := range muts[start:end] {
			if m.Delete {
				batch.Query(remove, bucketOf(m.Key), m.Key)
			} else {
				batch.Query(insert, bucketOf(m.Key), m.Key, nonNil(m.Value))
			}
		}
		if err := p.session.ExecuteBatch(batch); err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "cassandra batch failed").
				WithDetail("table", table)
		}
	}
	return nil
}

// collapse keeps the last mutation per key. Statements of one batch share a
// timestamp, so earlier mutations of the same key would race the later ones.
func collapse(mutations []store.Mutation) []store.Mutation {
	last := make(map[string]int, len(mutations))
	for i, m := range mutations {
		last[string(m.Key)] = i
	}
	out := make([]store.Mutation, 0, len(last))
	for i, m := range mutations {
		if last[string(m.Key)] == i {
			out = append(out, m)
		}
	}
	return out
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func bucketOf(key []byte) int {
	if len(key) == 0 {
		return 0
	}
	return int(key[0])
}

// bucketSpan returns the buckets a range touches.
func bucketSpan(r store.Range) (first, last int) {
	first, last = 0, 255
	if r.Start != nil {
		first = bucketOf(r.Start)
	}
	if r.End != nil {
		last = bucketOf(r.End)
		if len(r.End) == 1 {
			last--
		}
	}
	return first, last
}

func createStatement(keyspace, table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (bucket int, key blob, value blob, PRIMARY KEY ((bucket), key));",
		keyspace, table)
}

// scanStatement selects one bucket, bounded below and above as requested.
func scanStatement(keyspace, table string, lower, upper bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT key, value FROM %s.%s WHERE bucket = ?", keyspace, table)
	if lower {
		sb.WriteString(" AND key >= ?")
	}
	if upper {
		sb.WriteString(" AND key < ?")
	}
	sb.WriteString(";")
	return sb.String()
}

// Scan walks the touched buckets in order; within a bucket Cassandra
// returns keys in clustering order.
func (p *Platform) Scan(ctx context.Context, table string, r store.Range, fn store.ScanFunc) error {
	if r.Empty() {
		return nil
	}
	if err := p.ensureTable(ctx, table); err != nil {
		return err
	}
	first, last := bucketSpan(r)
	for b := first; b <= last; b++ {
		lower := r.Start != nil && b == bucketOf(r.Start) && len(r.Start) > 1
		upper := r.End != nil && b == bucketOf(r.End)
		args := []any{b}
		if lower {
			args = append(args, r.Start)
		}
		if upper {
			args = append(args, r.End)
		}
		stop, err := p.scanBucket(ctx, scanStatement(p.config.Keyspace, table, lower, upper), args, r, fn)
		var cb *callbackError
		if errors.As(err, &cb) {
			return cb.err
		}
		if err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "cassandra scan failed").
				WithDetail("table", table).
				WithDetail("bucket", b)
		}
		if stop {
			return nil
		}
	}
	return nil
}

func (p *Platform) scanBucket(ctx context.Context, stmt string, args []any, r store.Range, fn store.ScanFunc) (bool, error) {
	iter := p.session.Query(stmt, args...).WithContext(ctx).PageSize(p.config.PageSize).Iter()
	var key, value []byte
	for iter.Scan(&key, &value) {
		if !r.Contains(key) {
			continue
		}
		if err := fn(key, value); err != nil {
			_ = iter.Close()
			if errors.Is(err, store.ErrStop) {
				return true, nil
			}
			return false, &callbackError{err}
		}
	}
	return false, iter.Close()
}

// callbackError marks errors returned by a ScanFunc so they are not reported
// as connection failures.
type callbackError struct{ err error }

func (e *callbackError) Error() string { return e.err.Error() }
func (e *callbackError) Unwrap() error { return e.err }

// Close closes the session.
func (p *Platform) Close() error {
	if p.session != nil {
		p.session.Close()
		p.session = nil
	}
	return nil
}
