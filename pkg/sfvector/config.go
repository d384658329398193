package sfvector

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/vector"
)

// Precision is the floating point width of stored geometry coordinates.
type Precision int

const (
	// Double stores coordinates as float64.
	Double Precision = iota
	// Float stores coordinates as float32.
	Float
)

func (p Precision) String() string {
	if p == Float {
		return "float"
	}
	return "double"
}

// ParsePrecision parses "float" or "double".
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(s) {
	case "float", "float32":
		return Float, nil
	case "", "double", "float64":
		return Double, nil
	}
	return Double, geoerrors.Newf(geoerrors.ErrorTypeConfig, "unknown precision %q", s)
}

// FIDEncoding selects how feature identifiers are stored.
type FIDEncoding int

const (
	// FIDFull stores identifiers as utf8.
	FIDFull FIDEncoding = iota
	// FIDHashed stores a 32-bit xxhash of the identifier.
	FIDHashed
	// FIDNone stores no identifier column; row numbers serve as identifiers.
	FIDNone
)

func (e FIDEncoding) String() string {
	switch e {
	case FIDHashed:
		return "hashed"
	case FIDNone:
		return "none"
	}
	return "full"
}

// ParseFIDEncoding parses "full", "hashed" or "none".
func ParseFIDEncoding(s string) (FIDEncoding, error) {
	switch strings.ToLower(s) {
	case "", "full":
		return FIDFull, nil
	case "hashed":
		return FIDHashed, nil
	case "none":
		return FIDNone, nil
	}
	return FIDFull, geoerrors.Newf(geoerrors.ErrorTypeConfig, "unknown fid encoding %q", s)
}

// Encoding describes how features are laid out in the vector.
type Encoding struct {
	FIDs      FIDEncoding
	Precision Precision
}

func (e Encoding) String() string {
	return fmt.Sprintf("fids=%s,precision=%s", e.FIDs, e.Precision)
}

// Config configures Create and Wrap. A nil *Config means DefaultConfig().
type Config struct {
	// Capacity is the initial row capacity of created vectors.
	Capacity int
	// Encoding is used by Create. Wrap derives it from the vector.
	Encoding Encoding
	// Allocator backs all buffers; defaults to memory.DefaultAllocator.
	Allocator memory.Allocator
	Logger    *zap.Logger
}

// DefaultConfig returns full identifiers, double precision and
// vector.DefaultCapacity rows.
func DefaultConfig() *Config {
	return &Config{
		Capacity: vector.DefaultCapacity,
		Encoding: Encoding{FIDs: FIDFull, Precision: Double},
	}
}

func (c *Config) withDefaults() *Config {
	out := DefaultConfig()
	if c == nil {
		out.Allocator = memory.DefaultAllocator
		return out
	}
	*out = *c
	if out.Capacity <= 0 {
		out.Capacity = vector.DefaultCapacity
	}
	if out.Allocator == nil {
		out.Allocator = memory.DefaultAllocator
	}
	return out
}
