package export

import (
	"bufio"
	"context"
	"os"

	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
)

// WriteFile writes sfv to path, replacing any existing file.
func WriteFile(path string, sfv *sfvector.SimpleFeatureVector, opts Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot create export file").WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = geoerrors.Wrap(cerr, geoerrors.ErrorTypeFile, "cannot close export file").WithDetail("path", path)
		}
	}()

	w := bufio.NewWriter(f)
	if err := Write(w, sfv, opts); err != nil {
		return err
	}
	return w.Flush()
}

// ReadPath reads the file at path in the format implied by its extension.
func ReadPath(ctx context.Context, path string, cfg *sfvector.Config, fn VectorFunc) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot open input file").WithDetail("path", path)
	}
	defer f.Close()

	switch format {
	case ArrowFile:
		return ReadFile(f, cfg, fn)
	case Parquet:
		return ReadParquet(ctx, f, cfg, fn)
	case Avro:
		return ReadAvro(bufio.NewReader(f), cfg, fn)
	}
	return ReadStream(bufio.NewReader(f), cfg, fn)
}
