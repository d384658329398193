package compression

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() []byte {
	return []byte(strings.Repeat(`{"id":"road-1","values":["main street",2,"POINT(1 2)"]}`, 40))
}

func TestCompressorRoundTrip(t *testing.T) {
	original := sampleRecord()
	for _, algorithm := range Algorithms {
		for _, level := range []Level{Fastest, Default, Best} {
			t.Run(string(algorithm), func(t *testing.T) {
				c, err := NewCompressor(&Config{Algorithm: algorithm, Level: level})
				require.NoError(t, err)
				assert.Equal(t, algorithm, c.Algorithm())
				assert.Equal(t, level, c.Level())

				compressed, err := c.Compress(original)
				require.NoError(t, err)
				if algorithm != None {
					assert.Less(t, len(compressed), len(original))
				}
				decompressed, err := c.Decompress(compressed)
				require.NoError(t, err)
				assert.Equal(t, original, decompressed)

				var stream bytes.Buffer
				require.NoError(t, c.CompressStream(&stream, bytes.NewReader(original)))
				var out bytes.Buffer
				require.NoError(t, c.DecompressStream(&out, &stream))
				assert.Equal(t, original, out.Bytes())
			})
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)
	assert.Equal(t, ".zst", a.Extension())

	a, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)
	assert.Empty(t, a.Extension())

	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)

	_, err = NewCompressor(&Config{Algorithm: "brotli"})
	assert.Error(t, err)
}

func TestFrameIsSelfDescribing(t *testing.T) {
	original := sampleRecord()
	var frames [][]byte
	for _, algorithm := range []Algorithm{Snappy, Zstd, LZ4, None} {
		pool, err := NewCompressorPool(&Config{Algorithm: algorithm})
		require.NoError(t, err)
		assert.Equal(t, algorithm, pool.Algorithm())
		framed, err := pool.Frame(original)
		require.NoError(t, err)
		frames = append(frames, framed)
	}
	for _, framed := range frames {
		decoded, err := Unframe(framed)
		require.NoError(t, err)
		assert.Equal(t, original, decoded)
	}

	_, err := Unframe(nil)
	assert.Error(t, err)
	_, err = Unframe([]byte{200, 1, 2})
	assert.Error(t, err)
}

func TestCompressorPoolConcurrent(t *testing.T) {
	pool, err := NewCompressorPool(&Config{Algorithm: S2, Level: Better})
	require.NoError(t, err)
	original := sampleRecord()

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			compressed, err := pool.Compress(original)
			if err == nil {
				var out []byte
				out, err = pool.Decompress(compressed)
				if err == nil && !bytes.Equal(out, original) {
					err = assert.AnError
				}
			}
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}

	_, err = NewCompressorPool(&Config{Algorithm: "nope"})
	assert.Error(t, err)
}
