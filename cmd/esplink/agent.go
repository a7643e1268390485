package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/darkermage/esplink/internal/command"
	"github.com/darkermage/esplink/internal/config"
	"github.com/darkermage/esplink/internal/device"
	"github.com/darkermage/esplink/internal/discovery"
	"github.com/darkermage/esplink/internal/discovery/unifi"
	"github.com/darkermage/esplink/internal/logging"
	"github.com/darkermage/esplink/internal/metrics"
	"github.com/darkermage/esplink/internal/reporting"
	"github.com/darkermage/esplink/internal/stats"
	"github.com/darkermage/esplink/internal/storage"
)

// agent bundles the wired components
type agent struct {
	client     *device.Client
	discoverer reporting.Discoverer
	metrics    *metrics.Metrics
	closers    []func(context.Context) error
}

func newAgent(cfg *config.Config, logger *slog.Logger) (*agent, error) {
	m := metrics.New()

	client := device.NewClient(device.Options{
		Marker:         cfg.Device.Marker,
		ProbeTimeout:   cfg.Discovery.ProbeTimeout,
		RequestTimeout: cfg.Device.RequestTimeout,
		Logger:         logging.Component(logger, "device"),
		OnProbe:        m.ObserveProbe,
	})

	a := &agent{client: client, metrics: m}

	if cfg.Device.PinnedHost != "" {
		a.discoverer = discovery.Pinned{Addr: device.NewAddress(cfg.Device.PinnedHost, cfg.Device.Port)}
		return a, nil
	}

	engine, err := a.newEngine(cfg, logging.Component(logger, "discovery"))
	if err != nil {
		return nil, err
	}
	a.discoverer = engine
	return a, nil
}

func (a *agent) newEngine(cfg *config.Config, logger *slog.Logger) (*discovery.Engine, error) {
	cachePath := cfg.Cache.Path
	if cachePath == "" {
		p, err := storage.DefaultCachePath()
		if err != nil {
			return nil, fmt.Errorf("resolve cache path: %w", err)
		}
		cachePath = p
	}
	cache := storage.NewCache(cachePath, logging.Component(logger, "cache"))

	fallback, err := discovery.ParseSubnets(cfg.Discovery.FallbackSubnets, discovery.SourceFallback)
	if err != nil {
		return nil, err
	}

	var resolver discovery.Resolver
	if !cfg.Discovery.DisableMDNS {
		resolver = discovery.NewMDNSResolver(cfg.Discovery.MDNSTimeout)
	}

	strategies := []discovery.Strategy{
		discovery.NewCacheStrategy(cache, a.client),
		discovery.NewHostnameStrategy(a.client, cfg.Device.Hostname, cfg.Device.Port, resolver, logger),
	}
	if u := cfg.Discovery.UniFi; u != nil {
		provider := unifi.NewProvider(u.ControllerURL, u.VerifySSL, unifi.Credentials{
			Username: u.Username,
			Password: u.Password,
			Site:     u.Site,
		})
		a.closers = append(a.closers, provider.Close)
		strategies = append(strategies, discovery.NewRouterStrategy(provider, u.HostnamePattern, a.client, cfg.Device.Port, logger))
	}

	return discovery.NewEngine(discovery.EngineOptions{
		Store:      cache,
		Strategies: strategies,
		Enumerator: discovery.NewEnumerator(fallback, logger),
		Scanner: discovery.NewScanner(a.client, discovery.ScanConfig{
			Workers:  cfg.Discovery.Workers,
			MaxHosts: cfg.Discovery.MaxHosts,
			Port:     cfg.Device.Port,
		}, logger),
		Observer: a.metrics,
		Logger:   logger,
	}), nil
}

func (a *agent) close(logger *slog.Logger) {
	for _, c := range a.closers {
		if err := c(context.Background()); err != nil {
			logger.Debug("close failed", "err", err)
		}
	}
}

// runAgent runs the reporting loop, and the metrics endpoint if configured,
// until ctx is cancelled
func runAgent(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(logger)

	loop := reporting.New(reporting.Options{
		Discoverer:       a.discoverer,
		Reporter:         a.client,
		Collector:        stats.NewHostCollector(0),
		Executor:         command.NewOSExecutor(cfg.Reporting.KillMatch, logging.Component(logger, "command")),
		Observer:         a.metrics,
		Fallback:         cfg.FallbackAddress(),
		Interval:         cfg.Reporting.Interval,
		FailureThreshold: cfg.Reporting.FailureThreshold,
		Logger:           logging.Component(logger, "reporting"),
	})

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			// Losing metrics must not stop reporting
			if err := a.metrics.Serve(ctx, cfg.Metrics.Addr, logging.Component(logger, "metrics")); err != nil {
				logger.Error("metrics server failed", "addr", cfg.Metrics.Addr, "err", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return loop.Run(ctx)
	})
	return g.Wait()
}
