package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/acctledger/internal/cli/output"
	"github.com/yndnr/acctledger/internal/config"
	"github.com/yndnr/acctledger/internal/core/domain"
	"github.com/yndnr/acctledger/internal/core/service"
	"github.com/yndnr/acctledger/internal/infra/buildinfo"
	"github.com/yndnr/acctledger/internal/infra/confloader"
	"github.com/yndnr/acctledger/internal/infra/shutdown"
	"github.com/yndnr/acctledger/internal/storage"
	"github.com/yndnr/acctledger/internal/storage/wal"
	"github.com/yndnr/acctledger/internal/telemetry/logger"
	"github.com/yndnr/acctledger/internal/telemetry/metric"
)

const runtimeKey = "runtime"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "ledgerctl",
		Usage:   "Account ledger management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			AccountCommand(),
			TransferCommand(),
			AliasCommand(),
			KeyCommand(),
			IndexCommand(),
			BackupCommand(),
			ConvertCommand(),
			ConfigCommand(),
			VersionCommand(),
			ShellCommand(),
		},
		Before:   setup,
		After:    teardown,
		Metadata: make(map[string]any),
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Ledger configuration file (YAML)",
			EnvVars: []string{"ACCTLEDGER_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "db-path",
			Aliases: []string{"d"},
			Usage:   "Ledger root directory (overrides storage.db_path)",
		},
		&cli.StringFlag{
			Name:  "engine",
			Usage: "Record backend: file, badger or memory (overrides storage.engine)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error (overrides log.level)",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Write Prometheus metrics of this run to `FILE` on exit",
		},
	}
}

// runtime is the per-invocation state built by setup.
type runtime struct {
	cfg       *config.LedgerConfig
	logger    *slog.Logger
	registry  *prometheus.Registry
	metrics   *metric.Ledger
	shutdown  *shutdown.Handler
	precision domain.Precision
	format    output.Format
	wide      bool
	out       io.Writer
	errOut    io.Writer
}

// ledger is an opened storage engine and the service on top of it.
type ledger struct {
	engine *storage.Engine
	store  *storage.AccountStore
	svc    *service.LedgerService
}

func setup(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return err
	}

	precision, err := domain.NewPrecision(cfg.Storage.DecimalPlaces)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	rt := &runtime{
		cfg:       cfg,
		logger:    log,
		registry:  registry,
		metrics:   metric.NewLedger(registry),
		shutdown:  shutdown.NewHandler(0),
		precision: precision,
		format:    format,
		wide:      c.Bool("wide"),
		out:       c.App.Writer,
		errOut:    c.App.ErrWriter,
	}

	if path := c.String("metrics-file"); path != "" {
		rt.shutdown.OnShutdown(func(context.Context) error {
			if err := prometheus.WriteToTextfile(path, registry); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
			return nil
		})
	}

	c.App.Metadata[runtimeKey] = rt
	return nil
}

func teardown(c *cli.Context) error {
	rt, ok := c.App.Metadata[runtimeKey].(*runtime)
	if !ok {
		return nil
	}
	return rt.shutdown.Shutdown()
}

// loadConfig applies file < env < flags over the defaults and verifies
// the result.
func loadConfig(c *cli.Context) (*config.LedgerConfig, error) {
	overrides := make(map[string]any)
	if c.IsSet("db-path") {
		overrides["storage.db_path"] = c.String("db-path")
	}
	if c.IsSet("engine") {
		overrides["storage.engine"] = c.String("engine")
	}
	if c.IsSet("log-level") {
		overrides["log.level"] = c.String("log-level")
	}

	cfg := config.Default()
	loader := confloader.NewLoader(
		confloader.WithConfigFile(c.String("config")),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// getRuntime retrieves the runtime built by setup.
func getRuntime(c *cli.Context) (*runtime, error) {
	rt, ok := c.App.Metadata[runtimeKey].(*runtime)
	if !ok {
		return nil, fmt.Errorf("ledgerctl: not initialized")
	}
	return rt, nil
}

// storageConfig maps the ledger configuration onto the engine.
func (rt *runtime) storageConfig() (storage.Config, error) {
	s := rt.cfg.Storage

	cfg := storage.DefaultConfig(s.DBPath)
	cfg.KV.Engine = s.Engine
	cfg.KV.SyncWrites = s.SyncWrites
	if s.Badger.GCInterval != "" {
		cfg.KV.Badger.GCInterval = s.Badger.GCInterval
	}
	if s.Badger.CacheSize > 0 {
		cfg.KV.Badger.CacheSize = s.Badger.CacheSize
	}

	mode, err := wal.ParseSyncMode(s.WAL.SyncMode)
	if err != nil {
		return storage.Config{}, err
	}
	cfg.WAL.SyncMode = mode
	cfg.WAL.SyncInterval = s.WAL.SyncInterval
	cfg.WAL.MaxFileSize = s.WAL.MaxFileSize

	cfg.Snapshot.RetentionCount = s.Snapshot.Keep
	cfg.AliasHash = s.AliasHash
	cfg.CheckpointInterval = s.CheckpointInterval
	cfg.Logger = rt.logger
	cfg.Metrics = rt.metrics
	cfg.Registerer = rt.registry
	return cfg, nil
}

// openLedger opens the engine, replays the intent log and builds the
// service. The engine is closed by teardown.
func openLedger(c *cli.Context) (*runtime, *ledger, error) {
	rt, err := getRuntime(c)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := rt.storageConfig()
	if err != nil {
		return nil, nil, err
	}
	engine, err := storage.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	rt.shutdown.OnShutdown(func(context.Context) error {
		return engine.Close()
	})

	if err := engine.Recover(c.Context); err != nil {
		return nil, nil, fmt.Errorf("recover ledger: %w", err)
	}

	svc := service.NewLedgerService(engine.Store(),
		service.WithLogger(rt.logger),
		service.WithMetrics(rt.metrics),
		service.WithPrecision(rt.precision),
	)
	return rt, &ledger{engine: engine, store: engine.Store(), svc: svc}, nil
}

// print writes data in the selected output format.
func (rt *runtime) print(data any) error {
	f := output.NewFormatter(rt.format, rt.wide)
	if tf, ok := f.(*output.TableFormatter); ok {
		tf.Amount = rt.precision.FormatDecimal
	}
	return f.Format(rt.out, data)
}

// requireArgs checks the positional argument count.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return fmt.Errorf("%s: expected %d argument(s) %s, got %d",
			c.Command.Name, n, c.Command.ArgsUsage, c.NArg())
	}
	return nil
}
