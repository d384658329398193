// Package export writes feature vectors as Arrow IPC streams, Arrow IPC
// files, Parquet or Avro object container files, reads them back into
// feature vectors, and uploads exports to S3 or Google Cloud Storage.
package export

import (
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/logger"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
)

// Format is an export file format.
type Format string

const (
	ArrowStream Format = "arrow-stream"
	ArrowFile   Format = "arrow-file"
	Parquet     Format = "parquet"
	Avro        Format = "avro"
)

// Formats lists the supported formats.
var Formats = []Format{ArrowStream, ArrowFile, Parquet, Avro}

// ParseFormat parses a format name.
func ParseFormat(name string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(name) {
			return f, nil
		}
	}
	return "", geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument, "unknown export format %q", name)
}

// Extension returns the file extension of the format.
func (f Format) Extension() string {
	switch f {
	case ArrowFile:
		return ".arrow"
	case Parquet:
		return ".parquet"
	case Avro:
		return ".avro"
	}
	return ".arrows"
}

// FormatOf guesses the format from a file name.
func FormatOf(path string) (Format, error) {
	for _, f := range Formats {
		if strings.HasSuffix(path, f.Extension()) {
			return f, nil
		}
	}
	return "", geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "cannot tell the format from the file name").
		WithDetail("path", path)
}

// Options configures a writer.
type Options struct {
	Format Format `yaml:"format" mapstructure:"format"`
	// Compression is none, zstd or lz4 for Arrow IPC; none, snappy, gzip or
	// zstd for Parquet; none, deflate or snappy for Avro.
	Compression string `yaml:"compression" mapstructure:"compression"`
	// RowGroupSize caps Parquet row groups; 0 keeps the writer default.
	RowGroupSize int64            `yaml:"row_group_size" mapstructure:"row_group_size"`
	Allocator    memory.Allocator `yaml:"-" mapstructure:"-"`
	Logger       *zap.Logger      `yaml:"-" mapstructure:"-"`
}

// DefaultOptions writes uncompressed Arrow IPC streams.
func DefaultOptions() Options {
	return Options{Format: ArrowStream, Compression: "none"}
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = ArrowStream
	}
	if o.Compression == "" {
		o.Compression = "none"
	}
	if o.Allocator == nil {
		o.Allocator = memory.DefaultAllocator
	}
	if o.Logger == nil {
		o.Logger = logger.Named("export")
	}
	return o
}

// Validate checks the format and compression pairing.
func (o Options) Validate() error {
	o = o.withDefaults()
	if _, err := ParseFormat(string(o.Format)); err != nil {
		return err
	}
	switch o.Format {
	case Parquet:
		_, err := parquetCodec(o.Compression)
		return err
	case Avro:
		_, err := avroCodec(o.Compression)
		return err
	}
	_, err := ipcCompression(o.Compression)
	return err
}

func ipcCompression(name string) ([]ipc.Option, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, nil
	case "zstd":
		return []ipc.Option{ipc.WithZstd()}, nil
	case "lz4":
		return []ipc.Option{ipc.WithLZ4()}, nil
	}
	return nil, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument, "unsupported Arrow IPC compression %q", name)
}

func parquetCodec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return compress.Codecs.Uncompressed, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	}
	return compress.Codecs.Uncompressed, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument,
		"unsupported Parquet compression %q", name)
}

// Write writes the valid rows of sfv to w as one record batch.
func Write(w io.Writer, sfv *sfvector.SimpleFeatureVector, opts Options) error {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return err
	}
	var err error
	switch opts.Format {
	case Parquet:
		err = writeParquet(w, sfv, opts)
	case Avro:
		err = writeAvro(w, sfv, opts)
	default:
		err = writeIPC(w, sfv, opts)
	}
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot write export").
			WithDetail("format", string(opts.Format)).
			WithDetail("type_name", sfv.Type().Name())
	}
	opts.Logger.Debug("exported feature vector",
		zap.String("type_name", sfv.Type().Name()),
		zap.String("format", string(opts.Format)),
		zap.String("compression", opts.Compression),
		zap.Int("rows", sfv.ValueCount()))
	return nil
}

type ipcWriter interface {
	Write(rec arrow.Record) error
	Close() error
}

func writeIPC(w io.Writer, sfv *sfvector.SimpleFeatureVector, opts Options) error {
	codec, err := ipcCompression(opts.Compression)
	if err != nil {
		return err
	}
	ipcOpts := append([]ipc.Option{
		ipc.WithSchema(sfv.Schema()),
		ipc.WithAllocator(opts.Allocator),
	}, codec...)

	var writer ipcWriter
	if opts.Format == ArrowFile {
		fw, err := ipc.NewFileWriter(w, ipcOpts...)
		if err != nil {
			return err
		}
		writer = fw
	} else {
		writer = ipc.NewWriter(w, ipcOpts...)
	}

	rec := sfv.Record()
	defer rec.Release()
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func writeParquet(w io.Writer, sfv *sfvector.SimpleFeatureVector, opts Options) error {
	codec, err := parquetCodec(opts.Compression)
	if err != nil {
		return err
	}
	propOpts := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithAllocator(opts.Allocator),
	}
	if opts.RowGroupSize > 0 {
		propOpts = append(propOpts, parquet.WithMaxRowGroupLength(opts.RowGroupSize))
	}
	fw, err := pqarrow.NewFileWriter(sfv.Schema(), w,
		parquet.NewWriterProperties(propOpts...),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return err
	}

	rec := sfv.Record()
	defer rec.Release()
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}
