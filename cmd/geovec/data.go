package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/geovec/internal/pipeline"
	"github.com/ajitpratap0/geovec/pkg/datastore"
	"github.com/ajitpratap0/geovec/pkg/export"
	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/index"
	"github.com/ajitpratap0/geovec/pkg/metrics"
)

func (a *app) ingestCmd() *cobra.Command {
	var (
		typeName, spec, bbox string
		pcfg                 = pipeline.DefaultConfig()
	)
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Load a feature file into the datastore",
		Long: `Load an Arrow, Parquet or GeoJSON file into the datastore. The feature type
is created from --spec when given; otherwise an existing type is used, or for
Arrow and Parquet files the file's own type is registered.

Example:
  geovec ingest roads.parquet --type roads
  geovec ingest roads.geojson --type roads --spec "name:String:index=true,*geom:LineString"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			geoJSON := isGeoJSON(path)
			if typeName == "" {
				typeName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			vcfg, err := a.cfg.VectorConfig()
			if err != nil {
				return err
			}
			ds, err := a.openDataStore(ctx)
			if err != nil {
				return err
			}
			defer ds.Close()

			sft, err := ds.GetSchema(ctx, typeName)
			switch {
			case spec != "":
				if sft, err = feature.ParseSpec(typeName, spec); err != nil {
					return err
				}
				if err := ds.CreateSchema(ctx, sft); err != nil {
					return err
				}
			case geoerrors.IsType(err, geoerrors.ErrorTypeNotFound) && !geoJSON:
				fileSft, err := fileType(ctx, path, vcfg)
				if err != nil {
					return err
				}
				if sft, err = feature.ParseSpec(typeName, fileSft.Spec()); err != nil {
					return err
				}
				if err := ds.CreateSchema(ctx, sft); err != nil {
					return err
				}
				a.log.Info("registered feature type from file", zap.String("type_name", typeName))
			case err != nil:
				return err
			}

			var source pipeline.Source
			if geoJSON {
				f, err := os.Open(path)
				if err != nil {
					return geoerrors.Wrap(err, geoerrors.ErrorTypeFile, "cannot open input file").WithDetail("path", path)
				}
				defer f.Close()
				source = pipeline.GeoJSONSource(f, sft)
			} else {
				source = pipeline.FileSource(path, sft, vcfg)
			}

			p := pipeline.New(typeName, source, ds, pcfg, a.log.Named("pipeline"))
			p.AddTransform(pipeline.AssignIDs())
			if bbox != "" {
				box, err := parseBBox(bbox)
				if err != nil {
					return err
				}
				p.AddTransform(pipeline.BBoxTransform(box))
			}
			monitor, err := metrics.NewResourceMonitor()
			if err != nil {
				a.log.Debug("resource monitor unavailable", zap.Error(err))
			}
			stats, err := p.Run(ctx)
			if err != nil {
				return err
			}
			if monitor != nil {
				usage := monitor.Sample()
				a.log.Info("ingest resource usage",
					zap.String("type_name", typeName),
					zap.Uint64("rss_bytes", usage.MemoryRSS),
					zap.Float64("cpu_percent", usage.CPUPercent))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d features into %s (%d filtered, %d failed) in %s\n",
				stats.Written, typeName, stats.Filtered, stats.Failed, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "Feature type name; defaults to the file name")
	cmd.Flags().StringVar(&spec, "spec", "", "Feature type spec to register")
	cmd.Flags().StringVar(&bbox, "bbox", "", "Only ingest features intersecting minx,miny,maxx,maxy")
	cmd.Flags().IntVar(&pcfg.BatchSize, "batch-size", pcfg.BatchSize, "Features per datastore write")
	cmd.Flags().IntVar(&pcfg.WorkerCount, "workers", pcfg.WorkerCount, "Parallel transform workers")
	cmd.Flags().DurationVar(&pcfg.FlushInterval, "flush-interval", pcfg.FlushInterval, "Maximum time a partial batch waits")
	cmd.Flags().BoolVar(&pcfg.ContinueOnError, "continue-on-error", false, "Skip features that fail to convert")
	cmd.Flags().IntVar(&pcfg.MaxRetries, "max-retries", pcfg.MaxRetries, "Retries of a batch failing with a connection or timeout error")
	cmd.Flags().Float64Var(&pcfg.RateLimit, "rate-limit", 0, "Maximum features written per second; 0 is unlimited")
	return cmd
}

func isGeoJSON(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return true
	}
	return false
}

func (a *app) queryCmd() *cobra.Command {
	var (
		attr, eq, gt, gte, lt, lte, bbox string
		limit                            int
		out, format, compression         string
		dest                             remote
	)
	cmd := &cobra.Command{
		Use:   "query <type>",
		Short: "Query features by indexed attribute",
		Long: `Query features of a type. Without --attr every feature is scanned. Results
are printed as GeoJSON unless --out, --s3 or --gcs is given.

Example:
  geovec query roads --attr name --eq main
  geovec query roads --attr lanes --gte 2 --lt 4 --bbox -10,-10,10,10 --out roads.parquet`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := dest.check(); err != nil {
				return err
			}
			q := datastore.Query{Query: index.Query{Attribute: attr}, Limit: limit}
			flags := cmd.Flags()
			if attr == "" && (flags.Changed("eq") || flags.Changed("gt") || flags.Changed("gte") ||
				flags.Changed("lt") || flags.Changed("lte")) {
				return geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "value filters require --attr")
			}
			if flags.Changed("eq") {
				q.Equals = eq
			}
			switch {
			case flags.Changed("gte"):
				q.Lower = &index.Bound{Value: gte, Inclusive: true}
			case flags.Changed("gt"):
				q.Lower = &index.Bound{Value: gt}
			}
			switch {
			case flags.Changed("lte"):
				q.Upper = &index.Bound{Value: lte, Inclusive: true}
			case flags.Changed("lt"):
				q.Upper = &index.Bound{Value: lt}
			}
			if bbox != "" {
				box, err := parseBBox(bbox)
				if err != nil {
					return err
				}
				q.BBox = &box
			}
			if attr != "" && q.Equals == nil && q.Lower == nil && q.Upper == nil {
				return geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "--attr needs --eq or a range bound")
			}

			ds, err := a.openDataStore(ctx)
			if err != nil {
				return err
			}
			defer ds.Close()

			if out == "" && !dest.enabled() {
				features, err := ds.Query(ctx, args[0], q)
				if err != nil {
					return err
				}
				doc, err := feature.ToGeoJSON(features)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(doc))
				return err
			}

			vcfg, err := a.cfg.VectorConfig()
			if err != nil {
				return err
			}
			sfv, err := ds.QueryVector(ctx, args[0], q, vcfg)
			if err != nil {
				return err
			}
			defer sfv.Close()

			opts := a.exportOptions(format, compression)
			if dest.enabled() {
				return a.upload(cmd, sfv, opts, dest)
			}
			if format == "" {
				if opts.Format, err = export.FormatOf(out); err != nil {
					return err
				}
			}
			if err := export.WriteFile(out, sfv, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d features to %s\n", sfv.ValueCount(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&attr, "attr", "a", "", "Indexed attribute to query")
	cmd.Flags().StringVar(&eq, "eq", "", "Select features whose attribute equals this value")
	cmd.Flags().StringVar(&gt, "gt", "", "Lower bound, exclusive")
	cmd.Flags().StringVar(&gte, "gte", "", "Lower bound, inclusive")
	cmd.Flags().StringVar(&lt, "lt", "", "Upper bound, exclusive")
	cmd.Flags().StringVar(&lte, "lte", "", "Upper bound, inclusive")
	cmd.Flags().StringVar(&bbox, "bbox", "", "Keep features intersecting minx,miny,maxx,maxy")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of features; 0 is unlimited")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write results to an Arrow, Parquet or Avro file")
	cmd.Flags().StringVar(&format, "format", "", "Output format: "+formatNames())
	cmd.Flags().StringVar(&compression, "compression", "", "Output compression; defaults to the configuration")
	dest.register(cmd, "results")
	return cmd
}

// parseBBox parses "minx,miny,maxx,maxy".
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument, "bbox %q needs four comma separated numbers", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, geoerrors.Wrap(err, geoerrors.ErrorTypeInvalidArgument, "invalid bbox").WithDetail("bbox", s)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, geoerrors.Newf(geoerrors.ErrorTypeInvalidArgument, "bbox %q has min above max", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
