// Package store defines the execution platform of the attribute index: an
// ordered key-value store with batched mutations and range scans.
//
// Keys within a table are ordered by bytes.Compare. Implementations live in
// the memory, redisstore, cassandra and postgres subpackages and are safe for
// concurrent use.
package store

import (
	"bytes"
	"context"
	"errors"
)

// Mutation writes Value at Key, or removes Key when Delete is set.
type Mutation struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Put returns a write mutation.
func Put(key, value []byte) Mutation { return Mutation{Key: key, Value: value} }

// Del returns a delete mutation.
func Del(key []byte) Mutation { return Mutation{Key: key, Delete: true} }

// Range is the key interval [Start, End). A nil Start is unbounded below and
// a nil End is unbounded above.
type Range struct {
	Start []byte
	End   []byte
}

// PrefixRange returns the range of all keys starting with prefix.
func PrefixRange(prefix []byte) Range {
	return Range{Start: bytes.Clone(prefix), End: PrefixEnd(prefix)}
}

// Contains reports whether key falls in the range.
func (r Range) Contains(key []byte) bool {
	if r.Start != nil && bytes.Compare(key, r.Start) < 0 {
		return false
	}
	return r.End == nil || bytes.Compare(key, r.End) < 0
}

// Empty reports whether no key can fall in the range.
func (r Range) Empty() bool {
	return r.Start != nil && r.End != nil && bytes.Compare(r.Start, r.End) >= 0
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when there is none (the prefix is all 0xff).
func PrefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// ScanFunc receives each key-value pair of a scan in key order. The slices
// are only valid for the duration of the call. Returning ErrStop ends the
// scan without error.
type ScanFunc func(key, value []byte) error

// ErrStop ends a scan early.
var ErrStop = errors.New("stop scan")

// Platform is an ordered key-value store.
type Platform interface {
	// Name identifies the implementation, e.g. "memory".
	Name() string
	// Apply writes the mutations to table in order. Tables are created on
	// first use.
	Apply(ctx context.Context, table string, mutations []Mutation) error
	// Scan calls fn for each pair of table in r, in key order.
	Scan(ctx context.Context, table string, r Range, fn ScanFunc) error
	// Close releases connections.
	Close() error
}
