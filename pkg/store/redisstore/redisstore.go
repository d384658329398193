// Package redisstore implements store.Platform on Redis.
//
// Each table is a sorted set holding the keys with score 0, so members sort
// bytewise and ZRANGEBYLEX serves range scans, plus a hash from key to value.
// Mutation batches run in a MULTI/EXEC pipeline.
package redisstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/store"
)

// Options configures the connection.
type Options struct {
	Address   string `yaml:"address" mapstructure:"address"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	// PageSize bounds the keys fetched per ZRANGEBYLEX call.
	PageSize  int         `yaml:"page_size" mapstructure:"page_size"`
	TLSConfig *tls.Config `yaml:"-" mapstructure:"-"`
}

// DefaultOptions connects to a local server.
func DefaultOptions() Options {
	return Options{
		Address:   "localhost:6379",
		Namespace: "geovec",
		PageSize:  500,
	}
}

// Platform stores tables in one Redis database.
type Platform struct {
	client   redis.UniversalClient
	ns       string
	pageSize int64
	isOwner  bool
}

var _ store.Platform = (*Platform)(nil)

// Open connects with options. The platform owns the client.
func Open(options Options) *Platform {
	client := redis.NewClient(&redis.Options{
		Addr:      options.Address,
		Password:  options.Password,
		DB:        options.DB,
		TLSConfig: options.TLSConfig,
	})
	p := New(client, options)
	p.isOwner = true
	return p
}

// New wraps an existing client; Close leaves it open.
func New(client redis.UniversalClient, options Options) *Platform {
	defaults := DefaultOptions()
	if options.Namespace == "" {
		options.Namespace = defaults.Namespace
	}
	if options.PageSize <= 0 {
		options.PageSize = defaults.PageSize
	}
	return &Platform{client: client, ns: options.Namespace, pageSize: int64(options.PageSize)}
}

func (p *Platform) Name() string { return "redis" }

// Ping checks connectivity.
func (p *Platform) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "redis ping failed")
	}
	return nil
}

func (p *Platform) keysKey(table string) string   { return fmt.Sprintf("%s:%s:keys", p.ns, table) }
func (p *Platform) valuesKey(table string) string { return fmt.Sprintf("%s:%s:values", p.ns, table) }

func (p *Platform) Apply(ctx context.Context, table string, mutations []store.Mutation) error {
	if len(mutations) == 0 {
		return nil
	}
	keys, values := p.keysKey(table), p.valuesKey(table)
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range mutations {
			member := string(m.Key)
			if m.Delete {
				pipe.ZRem(ctx, keys, member)
				pipe.HDel(ctx, values, member)
				continue
			}
			pipe.ZAdd(ctx, keys, redis.Z{Score: 0, Member: member})
			pipe.HSet(ctx, values, member, m.Value)
		}
		return nil
	})
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "redis mutation failed").
			WithDetail("table", table).
			WithDetail("mutations", len(mutations))
	}
	return nil
}

// Scan pages through the sorted set, fetching the values of each page with
// HMGET. Keys removed between the two calls are skipped.
func (p *Platform) Scan(ctx context.Context, table string, r store.Range, fn store.ScanFunc) error {
	if r.Empty() {
		return nil
	}
	keys, values := p.keysKey(table), p.valuesKey(table)
	lo, hi := lexBounds(r)
	for {
		members, err := p.client.ZRangeByLex(ctx, keys, &redis.ZRangeBy{
			Min:   lo,
			Max:   hi,
			Count: p.pageSize,
		}).Result()
		if err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "redis range scan failed").
				WithDetail("table", table)
		}
		if len(members) == 0 {
			return nil
		}
		vals, err := p.client.HMGet(ctx, values, members...).Result()
		if err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrorTypeConnection, "redis value fetch failed").
				WithDetail("table", table)
		}
		for i, member := range members {
			v, ok := vals[i].(string)
			if !ok {
				continue
			}
			if err := fn([]byte(member), []byte(v)); err != nil {
				if errors.Is(err, store.ErrStop) {
					return nil
				}
				return err
			}
		}
		if int64(len(members)) < p.pageSize {
			return nil
		}
		lo = "(" + members[len(members)-1]
	}
}

// lexBounds maps a range onto ZRANGEBYLEX min and max arguments.
func lexBounds(r store.Range) (string, string) {
	lo, hi := "-", "+"
	if r.Start != nil {
		lo = "[" + string(r.Start)
	}
	if r.End != nil {
		hi = "(" + string(r.End)
	}
	return lo, hi
}

// Drop removes a table.
func (p *Platform) Drop(ctx context.Context, table string) error {
	return p.client.Del(ctx, p.keysKey(table), p.valuesKey(table)).Err()
}

// Close closes the client when the platform opened it.
func (p *Platform) Close() error {
	if !p.isOwner || p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
