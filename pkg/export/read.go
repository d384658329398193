package export

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
)

// VectorFunc receives each record batch read as a feature vector. The
// vector is closed when the function returns.
type VectorFunc func(sfv *sfvector.SimpleFeatureVector) error

// ReaderAtSeeker is the random access input of the file formats.
type ReaderAtSeeker interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

func allocatorOf(cfg *sfvector.Config) memory.Allocator {
	if cfg != nil && cfg.Allocator != nil {
		return cfg.Allocator
	}
	return memory.DefaultAllocator
}

// ReadStream reads an Arrow IPC stream.
func ReadStream(r io.Reader, cfg *sfvector.Config, fn VectorFunc) error {
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(allocatorOf(cfg)))
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot open Arrow IPC stream")
	}
	defer rdr.Release()

	for rdr.Next() {
		if err := visit(rdr.Record(), cfg, fn); err != nil {
			return err
		}
	}
	if err := rdr.Err(); err != nil && err != io.EOF {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot read Arrow IPC stream")
	}
	return nil
}

// ReadFile reads an Arrow IPC file.
func ReadFile(r ReaderAtSeeker, cfg *sfvector.Config, fn VectorFunc) error {
	rdr, err := ipc.NewFileReader(r, ipc.WithAllocator(allocatorOf(cfg)))
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot open Arrow IPC file")
	}
	defer rdr.Close()

	for i := 0; i < rdr.NumRecords(); i++ {
		rec, err := rdr.RecordAt(i)
		if err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot read Arrow IPC record").
				WithDetail("record", i)
		}
		err = visit(rec, cfg, fn)
		rec.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadParquet reads a Parquet file written by Write. Each row group becomes
// one feature vector.
func ReadParquet(ctx context.Context, r ReaderAtSeeker, cfg *sfvector.Config, fn VectorFunc) error {
	mem := allocatorOf(cfg)
	pf, err := file.NewParquetReader(r, file.WithReadProps(parquet.NewReaderProperties(mem)))
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot open Parquet file")
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot read Parquet schema")
	}
	for rg := 0; rg < pf.NumRowGroups(); rg++ {
		tbl, err := fr.RowGroup(rg).ReadTable(ctx, nil)
		if err != nil {
			return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot read Parquet row group").
				WithDetail("row_group", rg)
		}
		err = visitTable(tbl, cfg, fn)
		tbl.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

func visitTable(tbl arrow.Table, cfg *sfvector.Config, fn VectorFunc) error {
	tr := array.NewTableReader(tbl, -1)
	defer tr.Release()
	for tr.Next() {
		if err := visit(tr.Record(), cfg, fn); err != nil {
			return err
		}
	}
	return tr.Err()
}

func visit(rec arrow.Record, cfg *sfvector.Config, fn VectorFunc) error {
	sfv, err := sfvector.WrapRecord(rec, nil, cfg)
	if err != nil {
		return err
	}
	defer sfv.Close()
	return fn(sfv)
}
