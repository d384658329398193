package testutil

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/geovec/pkg/store"
)

// PlatformSuite checks the ordering and mutation contract every
// store.Platform implements. Each test gets a fresh platform from
// NewPlatform, which is closed afterwards.
type PlatformSuite struct {
	suite.Suite
	NewPlatform func(t *testing.T) store.Platform

	platform store.Platform
	ctx      context.Context
}

func (s *PlatformSuite) SetupTest() {
	s.ctx = TestContext(s.T())
	s.platform = s.NewPlatform(s.T())
}

func (s *PlatformSuite) TearDownTest() {
	s.Require().NoError(s.platform.Close())
}

func (s *PlatformSuite) scan(table string, r store.Range) (keys, values []string) {
	err := s.platform.Scan(s.ctx, table, r, func(key, value []byte) error {
		keys = append(keys, string(key))
		values = append(values, string(value))
		return nil
	})
	s.Require().NoError(err)
	return keys, values
}

func (s *PlatformSuite) put(table string, kv ...string) {
	muts := make([]store.Mutation, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		muts = append(muts, store.Put([]byte(kv[i]), []byte(kv[i+1])))
	}
	s.Require().NoError(s.platform.Apply(s.ctx, table, muts))
}

func (s *PlatformSuite) TestName() {
	s.NotEmpty(s.platform.Name())
}

func (s *PlatformSuite) TestScanIsOrdered() {
	s.put("ordered", "b", "2", "a", "1", "ab", "3", "c", "4")
	keys, values := s.scan("ordered", store.Range{})
	s.Equal([]string{"a", "ab", "b", "c"}, keys)
	s.Equal([]string{"1", "3", "2", "4"}, values)
}

func (s *PlatformSuite) TestRangeBounds() {
	s.put("bounds", "a", "1", "b", "2", "c", "3", "d", "4")

	keys, _ := s.scan("bounds", store.Range{Start: []byte("b"), End: []byte("d")})
	s.Equal([]string{"b", "c"}, keys)

	keys, _ = s.scan("bounds", store.Range{Start: []byte("bb")})
	s.Equal([]string{"c", "d"}, keys)

	keys, _ = s.scan("bounds", store.Range{End: []byte("b")})
	s.Equal([]string{"a"}, keys)

	keys, _ = s.scan("bounds", store.Range{Start: []byte("c"), End: []byte("a")})
	s.Empty(keys)
}

func (s *PlatformSuite) TestBinaryKeys() {
	keys := [][]byte{{0x00}, {0x00, 0x00}, {0x01, 0xff}, {0x02}, {0xff}, {0xff, 0x00, 0x01}}
	muts := make([]store.Mutation, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		muts = append(muts, store.Put(keys[i], []byte{byte(i)}))
	}
	s.Require().NoError(s.platform.Apply(s.ctx, "binary", muts))

	var got [][]byte
	err := s.platform.Scan(s.ctx, "binary", store.Range{}, func(key, value []byte) error {
		got = append(got, bytes.Clone(key))
		s.Equal([]byte{byte(len(got) - 1)}, value)
		return nil
	})
	s.Require().NoError(err)
	s.Equal(keys, got)

	var prefixed [][]byte
	err = s.platform.Scan(s.ctx, "binary", store.PrefixRange([]byte{0xff}), func(key, _ []byte) error {
		prefixed = append(prefixed, bytes.Clone(key))
		return nil
	})
	s.Require().NoError(err)
	s.Equal([][]byte{{0xff}, {0xff, 0x00, 0x01}}, prefixed)
}

func (s *PlatformSuite) TestOverwriteAndDelete() {
	s.put("rows", "a", "1", "b", "2")
	s.put("rows", "a", "updated")
	s.Require().NoError(s.platform.Apply(s.ctx, "rows", []store.Mutation{
		store.Del([]byte("b")),
		store.Del([]byte("missing")),
	}))
	keys, values := s.scan("rows", store.Range{})
	s.Equal([]string{"a"}, keys)
	s.Equal([]string{"updated"}, values)
}

func (s *PlatformSuite) TestMutationsApplyInOrder() {
	s.Require().NoError(s.platform.Apply(s.ctx, "order", []store.Mutation{
		store.Put([]byte("k"), []byte("1")),
		store.Del([]byte("k")),
		store.Put([]byte("j"), []byte("1")),
		store.Put([]byte("j"), []byte("2")),
	}))
	keys, values := s.scan("order", store.Range{})
	s.Equal([]string{"j"}, keys)
	s.Equal([]string{"2"}, values)
}

func (s *PlatformSuite) TestTablesAreIsolated() {
	s.put("left", "a", "1")
	s.put("right", "b", "2")
	keys, _ := s.scan("left", store.Range{})
	s.Equal([]string{"a"}, keys)
	keys, _ = s.scan("unknown", store.Range{})
	s.Empty(keys)
}

func (s *PlatformSuite) TestStopEndsScan() {
	s.put("stop", "a", "1", "b", "2", "c", "3")
	var seen int
	err := s.platform.Scan(s.ctx, "stop", store.Range{}, func(_, _ []byte) error {
		seen++
		if seen == 2 {
			return store.ErrStop
		}
		return nil
	})
	s.NoError(err)
	s.Equal(2, seen)

	boom := fmt.Errorf("boom")
	err = s.platform.Scan(s.ctx, "stop", store.Range{}, func(_, _ []byte) error { return boom })
	s.ErrorIs(err, boom)
}

func (s *PlatformSuite) TestConcurrentWriters() {
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			muts := make([]store.Mutation, 0, 25)
			for i := 0; i < 25; i++ {
				muts = append(muts, store.Put([]byte(fmt.Sprintf("w%d-%03d", w, i)), []byte("v")))
			}
			s.NoError(s.platform.Apply(s.ctx, "concurrent", muts))
		}(w)
	}
	wg.Wait()
	keys, _ := s.scan("concurrent", store.Range{})
	s.Len(keys, 100)
}

func (s *PlatformSuite) TestLargeScanPages() {
	muts := make([]store.Mutation, 0, 1200)
	for i := 0; i < 1200; i++ {
		muts = append(muts, store.Put([]byte(fmt.Sprintf("%05d", i)), []byte("v")))
	}
	s.Require().NoError(s.platform.Apply(s.ctx, "large", muts))
	keys, _ := s.scan("large", store.Range{Start: []byte("00100"), End: []byte("01100")})
	s.Require().Len(keys, 1000)
	s.Equal("00100", keys[0])
	s.Equal("01099", keys[999])
}
