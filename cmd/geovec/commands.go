package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/geovec/pkg/export"
	"github.com/ajitpratap0/geovec/pkg/feature"
	"github.com/ajitpratap0/geovec/pkg/geoerrors"
	"github.com/ajitpratap0/geovec/pkg/sfvector"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective configuration to a YAML file",
		Long: `Write the effective configuration (defaults, the --config file and GEOVEC_*
environment overrides) to path, geovec.yaml by default.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "geovec.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return geoerrors.New(geoerrors.ErrorTypeConflict, "config file already exists, use --force to overwrite").
					WithDetail("path", path)
			}
			if err := a.cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func (a *app) convertCmd() *cobra.Command {
	var format, compression string
	var dest remote
	cmd := &cobra.Command{
		Use:   "convert <input> [output]",
		Short: "Convert between Arrow IPC, Parquet and Avro files",
		Long: `Convert a feature file. Formats are picked from the file extensions
(.arrows, .arrow, .parquet, .avro) unless --format is given. With --s3 or --gcs
the output is uploaded to the configured bucket instead of written locally.

Example:
  geovec convert roads.arrows roads.parquet --compression zstd
  geovec convert roads.arrow --s3 --format parquet`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dest.check(); err != nil {
				return err
			}
			if !dest.enabled() && len(args) != 2 {
				return geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "an output path, --s3 or --gcs is required")
			}
			vcfg, err := a.cfg.VectorConfig()
			if err != nil {
				return err
			}
			sfv, err := readVector(cmd.Context(), args[0], vcfg)
			if err != nil {
				return err
			}
			defer sfv.Close()

			opts := a.exportOptions(format, compression)
			if dest.enabled() {
				return a.upload(cmd, sfv, opts, dest)
			}
			if format == "" {
				if opts.Format, err = export.FormatOf(args[1]); err != nil {
					return err
				}
			}
			if err := export.WriteFile(args[1], sfv, opts); err != nil {
				return err
			}
			a.log.Info("converted file",
				zap.String("input", args[0]),
				zap.String("output", args[1]),
				zap.Int("features", sfv.ValueCount()),
				zap.String("format", string(opts.Format)))
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d features to %s\n", sfv.ValueCount(), args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Output format: "+formatNames())
	cmd.Flags().StringVar(&compression, "compression", "", "Output compression; defaults to the configuration")
	dest.register(cmd, "output")
	return cmd
}

// exportOptions overlays command flags on the configured export settings.
func (a *app) exportOptions(format, compression string) export.Options {
	opts := a.cfg.ExportOptions()
	if format != "" {
		opts.Format = export.Format(format)
	}
	if compression != "" {
		opts.Compression = compression
	}
	opts.Logger = a.log
	return opts
}

// remote selects the bucket an export is uploaded to.
type remote struct {
	s3, gcs bool
}

func (r *remote) register(cmd *cobra.Command, what string) {
	cmd.Flags().BoolVar(&r.s3, "s3", false, "Upload the "+what+" to the configured S3 bucket")
	cmd.Flags().BoolVar(&r.gcs, "gcs", false, "Upload the "+what+" to the configured GCS bucket")
}

func (r remote) enabled() bool { return r.s3 || r.gcs }

func (r remote) check() error {
	if r.s3 && r.gcs {
		return geoerrors.New(geoerrors.ErrorTypeInvalidArgument, "--s3 and --gcs are exclusive")
	}
	return nil
}

func (a *app) upload(cmd *cobra.Command, sfv *sfvector.SimpleFeatureVector, opts export.Options, dest remote) error {
	ctx := cmd.Context()
	var uploader export.ObjectUploader
	if dest.gcs {
		gcs, err := export.NewGCSUploader(ctx, a.cfg.Export.GCS)
		if err != nil {
			return err
		}
		defer gcs.Close()
		uploader = gcs
	} else {
		s3, err := export.NewUploader(ctx, a.cfg.Export.S3)
		if err != nil {
			return err
		}
		uploader = s3
	}
	uri, err := export.UploadVector(ctx, uploader, sfv, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d features to %s\n", sfv.ValueCount(), uri)
	return nil
}

func formatNames() string {
	names := make([]string, 0, len(export.Formats))
	for _, f := range export.Formats {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Describe the feature type and batches of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vcfg, err := a.cfg.VectorConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			batches, rows := 0, 0
			err = export.ReadPath(cmd.Context(), args[0], vcfg, func(sfv *sfvector.SimpleFeatureVector) error {
				if batches == 0 {
					describe(cmd, sfv)
				}
				fmt.Fprintf(out, "batch %d: %d rows\n", batches, sfv.ValueCount())
				batches++
				rows += sfv.ValueCount()
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "total: %d rows in %d batches\n", rows, batches)
			return nil
		},
	}
}

func describe(cmd *cobra.Command, sfv *sfvector.SimpleFeatureVector) {
	out := cmd.OutOrStdout()
	sft := sfv.Type()
	fmt.Fprintf(out, "type: %s\n", sft.Name())
	fmt.Fprintf(out, "spec: %s\n", sft.Spec())
	fmt.Fprintf(out, "fids: %s\n", sfv.Encoding().FIDs)
	fmt.Fprintf(out, "precision: %s\n", sfv.Encoding().Precision)
	dicts := sfv.Dictionaries()
	names := make([]string, 0, len(dicts))
	for name := range dicts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "dictionary %s: %s\n", name, strings.Join(dicts[name], ", "))
	}
}

func (a *app) schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage feature types in the datastore",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List feature types",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ds, err := a.openDataStore(cmd.Context())
				if err != nil {
					return err
				}
				defer ds.Close()
				names, err := ds.TypeNames(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					sft, err := ds.GetSchema(cmd.Context(), name)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, sft.Spec())
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <type> <spec>",
			Short: "Register a feature type",
			Long: `Register a feature type from a spec string. Attributes marked index=true
are written to the attribute index.

Example:
  geovec schema create roads "name:String:index=true,lanes:Integer,*geom:LineString:srid=4326"`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				sft, err := feature.ParseSpec(args[0], args[1])
				if err != nil {
					return err
				}
				ds, err := a.openDataStore(cmd.Context())
				if err != nil {
					return err
				}
				defer ds.Close()
				if err := ds.CreateSchema(cmd.Context(), sft); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", sft.Name())
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <type>",
			Short: "Remove a feature type and all of its features",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ds, err := a.openDataStore(cmd.Context())
				if err != nil {
					return err
				}
				defer ds.Close()
				if err := ds.RemoveSchema(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

