// Package memory is an in-process store.Platform backed by copy-on-write
// B-trees. It serves tests, the CLI's ephemeral mode and small embedded
// deployments.
package memory

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/tidwall/btree"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/store"
)

type entry struct {
	key   []byte
	value []byte
}

func less(a, b entry) bool { return bytes.Compare(a.key, b.key) < 0 }

// Platform keeps one ordered tree per table.
type Platform struct {
	mu     sync.RWMutex
	tables map[string]*btree.BTreeG[entry]
	closed bool
}

// New returns an empty platform.
func New() *Platform {
	return &Platform{tables: make(map[string]*btree.BTreeG[entry])}
}

var _ store.Platform = (*Platform)(nil)

func (p *Platform) Name() string { return "memory" }

func (p *Platform) table(name string, create bool) (*btree.BTreeG[entry], error) {
	if create {
		p.mu.Lock()
		defer p.mu.Unlock()
	} else {
		p.mu.RLock()
		defer p.mu.RUnlock()
	}
	if p.closed {
		return nil, geoerrors.New(geoerrors.ErrorTypeConnection, "memory platform is closed")
	}
	t, ok := p.tables[name]
	if !ok && create {
		t = btree.NewBTreeG[entry](less)
		p.tables[name] = t
	}
	return t, nil
}

// Apply writes mutations in order. Keys and values are copied.
func (p *Platform) Apply(ctx context.Context, table string, mutations []store.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := p.table(table, true)
	if err != nil {
		return err
	}
	for _, m := range mutations {
		if m.Delete {
			t.Delete(entry{key: m.Key})
			continue
		}
		t.Set(entry{key: bytes.Clone(m.Key), value: bytes.Clone(m.Value)})
	}
	return nil
}

// Scan iterates a snapshot of the table taken when the scan starts.
func (p *Platform) Scan(ctx context.Context, table string, r store.Range, fn store.ScanFunc) error {
	t, err := p.table(table, false)
	if err != nil || t == nil || r.Empty() {
		return err
	}
	snapshot := t.Copy()

	var scanErr error
	iter := func(e entry) bool {
		if r.End != nil && bytes.Compare(e.key, r.End) >= 0 {
			return false
		}
		if scanErr = ctx.Err(); scanErr != nil {
			return false
		}
		scanErr = fn(e.key, e.value)
		return scanErr == nil
	}
	if r.Start == nil {
		snapshot.Scan(iter)
	} else {
		snapshot.Ascend(entry{key: r.Start}, iter)
	}
	if errors.Is(scanErr, store.ErrStop) {
		return nil
	}
	return scanErr
}

// Tables returns the names of the tables written so far.
func (p *Platform) Tables() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.tables))
	for name := range p.tables {
		names = append(names, name)
	}
	return names
}

// Len returns the number of keys in table.
func (p *Platform) Len(table string) int {
	t, err := p.table(table, false)
	if err != nil || t == nil {
		return 0
	}
	return t.Len()
}

// Close drops every table.
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables = nil
	p.closed = true
	return nil
}
