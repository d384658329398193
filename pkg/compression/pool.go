package compression

import (
	"fmt"
	"sync"
)

// CompressorPool reuses compressors of one configuration. It is safe for
// concurrent use.
type CompressorPool struct {
	pool   sync.Pool
	config Config
}

// NewCompressorPool validates config and returns a pool for it.
func NewCompressorPool(config *Config) (*CompressorPool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	first, err := NewCompressor(config)
	if err != nil {
		return nil, err
	}
	cp := &CompressorPool{config: *config}
	cp.pool.New = func() any {
		c, _ := NewCompressor(&cp.config)
		return c
	}
	cp.pool.Put(first)
	return cp, nil
}

// Algorithm returns the pooled algorithm.
func (cp *CompressorPool) Algorithm() Algorithm {
	if cp.config.Algorithm == "" {
		return None
	}
	return cp.config.Algorithm
}

// Compress compresses data with a pooled compressor.
func (cp *CompressorPool) Compress(data []byte) ([]byte, error) {
	c := cp.pool.Get().(Compressor)
	defer cp.pool.Put(c)
	return c.Compress(data)
}

// Decompress decompresses data with a pooled compressor.
func (cp *CompressorPool) Decompress(data []byte) ([]byte, error) {
	c := cp.pool.Get().(Compressor)
	defer cp.pool.Put(c)
	return c.Decompress(data)
}

// Frame compresses data with the pool and prefixes the algorithm tag.
func (cp *CompressorPool) Frame(data []byte) ([]byte, error) {
	c := cp.pool.Get().(Compressor)
	defer cp.pool.Put(c)
	return Frame(c, data)
}

// Frame compresses data and prefixes the one byte algorithm tag.
func Frame(c Compressor, data []byte) ([]byte, error) {
	tag, err := tagOf(c.Algorithm())
	if err != nil {
		return nil, err
	}
	compressed, err := c.Compress(data)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+len(compressed))
	out[0] = tag
	copy(out[1:], compressed)
	return out, nil
}

var (
	framersMu sync.Mutex
	framers   = map[Algorithm]Compressor{}
)

// Unframe reverses Frame, whatever algorithm wrote the value.
func Unframe(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, fmt.Errorf("empty compressed frame")
	}
	if int(framed[0]) >= len(Algorithms) {
		return nil, fmt.Errorf("unknown compression tag %d", framed[0])
	}
	algorithm := Algorithms[framed[0]]

	framersMu.Lock()
	c, ok := framers[algorithm]
	if !ok {
		var err error
		if c, err = NewCompressor(&Config{Algorithm: algorithm, Level: Default}); err != nil {
			framersMu.Unlock()
			return nil, err
		}
		framers[algorithm] = c
	}
	framersMu.Unlock()

	return c.Decompress(framed[1:])
}

func tagOf(a Algorithm) (byte, error) {
	for i, known := range Algorithms {
		if known == a {
			return byte(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported compression algorithm: %s", a)
}
