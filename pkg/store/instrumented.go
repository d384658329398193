package store

import (
	"context"

	"github.com/ajitpratap0/geovec/pkg/metrics"
)

// Instrument wraps p so every Apply and Scan is recorded in the store
// metrics under p.Name().
func Instrument(p Platform) Platform {
	if _, ok := p.(*instrumented); ok {
		return p
	}
	return &instrumented{Platform: p}
}

type instrumented struct {
	Platform
}

func (i *instrumented) Apply(ctx context.Context, table string, mutations []Mutation) error {
	timer := metrics.NewTimer()
	err := i.Platform.Apply(ctx, table, mutations)
	metrics.ObserveStore("apply", i.Name(), timer.Stop(), err)
	if err == nil {
		var puts, dels int
		for _, m := range mutations {
			if m.Delete {
				dels++
			} else {
				puts++
			}
		}
		metrics.StoreMutations.WithLabelValues(i.Name(), "put").Add(float64(puts))
		metrics.StoreMutations.WithLabelValues(i.Name(), "delete").Add(float64(dels))
	}
	return err
}

func (i *instrumented) Scan(ctx context.Context, table string, r Range, fn ScanFunc) error {
	timer := metrics.NewTimer()
	rows := 0
	err := i.Platform.Scan(ctx, table, r, func(key, value []byte) error {
		rows++
		return fn(key, value)
	})
	metrics.ObserveStore("scan", i.Name(), timer.Stop(), err)
	metrics.StoreRowsScanned.WithLabelValues(i.Name()).Add(float64(rows))
	return err
}
