package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/darkermage/esplink/internal/config"
	"github.com/darkermage/esplink/internal/logging"
)

// globalOptions are flags shared by every command
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	// device selection
	ip       string
	apMode   bool
	port     int
	cache    string
	workers  int
	interval time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	var (
		simple      bool
		message     string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:           "esplink",
		Short:         "Report host telemetry to an ESP32 display on the local network",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}

			ctx, stop := signalContext()
			defer stop()

			if simple {
				return runSend(ctx, cfg, logger, message)
			}
			return runAgent(ctx, cfg, logger)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default ~/.esplink/config.yaml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: auto, text, json")
	pf.StringVar(&opts.ip, "ip", "", "Use this device address and skip discovery")
	pf.BoolVar(&opts.apMode, "ap", false, "Device runs its own access point (fallback to "+config.APModeHost+")")
	pf.IntVar(&opts.port, "port", 0, "Device HTTP port")
	pf.StringVar(&opts.cache, "cache", "", "Address cache file (default ~/.esplink/device.yaml)")
	pf.IntVar(&opts.workers, "workers", 0, "Maximum concurrent probes during a subnet sweep")

	f := cmd.Flags()
	f.DurationVar(&opts.interval, "interval", 0, "Telemetry interval")
	f.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9101)")
	f.BoolVar(&simple, "simple", false, "Send a single message to /send and exit")
	f.StringVar(&message, "message", defaultMessage, "Message for --simple")

	cmd.AddCommand(newSendCmd(opts), newDiscoverCmd(opts), newConfigCmd(opts))
	return cmd
}

// load reads the config file, applies flag overrides and builds the logger
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path := o.configPath
	if path == "" {
		p, err := config.GetDefaultConfigPath()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve config path: %w", err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	o.apply(cmd, cfg)
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	logger.Debug("config loaded", "path", path)
	return cfg, logger, nil
}

func (o *globalOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if o.ip != "" {
		cfg.Device.PinnedHost = o.ip
	}
	if o.apMode {
		cfg.Device.FallbackHost = config.APModeHost
	}
	if flags.Changed("port") {
		cfg.Device.Port = o.port
	}
	if o.cache != "" {
		cfg.Cache.Path = o.cache
	}
	if flags.Changed("workers") {
		cfg.Discovery.Workers = o.workers
	}
	if flags.Changed("interval") {
		cfg.Reporting.Interval = o.interval
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
