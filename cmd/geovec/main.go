package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/geovec/pkg/attrindex"
	"github.com/ajitpratap0/geovec/pkg/config"
	"github.com/ajitpratap0/geovec/pkg/logger"
	"github.com/ajitpratap0/geovec/pkg/observability"
)

var version = "0.1.0"

// app holds the state shared by every command of one invocation.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	log      *zap.Logger
	shutdown func(context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "geovec",
		Short: "geovec - columnar simple features and attribute indexed storage",
		Long: `geovec converts simple features between Arrow and Parquet files and stores
them in an attribute indexed key-value store (memory, Redis or Cassandra).`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("GEOVEC_CONFIG"), "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "geovec v%s\n", version)
				fmt.Fprintf(out, "Attribute index: v%d\n", attrindex.NewAttributeIndexV3(nil, 0).Version())
				fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
				fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
		a.configCmd(),
		a.convertCmd(),
		a.inspectCmd(),
		a.schemaCmd(),
		a.ingestCmd(),
		a.queryCmd(),
	)
	return root
}

// setup loads the configuration and initializes logging and tracing.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.Get().With(zap.String("command", cmd.Name()))

	tracing := cfg.Tracing
	if tracing.ServiceVersion == "" {
		tracing.ServiceVersion = version
	}
	a.shutdown, err = observability.Init(tracing)
	return err
}

func (a *app) teardown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	if a.shutdown != nil {
		err = a.shutdown(ctx)
	}
	_ = logger.Sync()
	return err
}
