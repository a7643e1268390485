package discovery

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/darkermage/esplink/internal/device"
)

// DefaultWorkers bounds simultaneous probes during a sweep
const DefaultWorkers = 32

// ScanConfig controls subnet sweeps
type ScanConfig struct {
	// Workers is the maximum number of outstanding probes. Defaults to 32.
	Workers int
	// MaxHosts caps candidates per subnet. Defaults to, and never exceeds, 254.
	MaxHosts int
	// Port is the device port probed on each candidate.
	Port int
}

func applyDefaults(cfg ScanConfig) ScanConfig {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxHosts <= 0 || cfg.MaxHosts > MaxHosts {
		cfg.MaxHosts = MaxHosts
	}
	if cfg.Port <= 0 {
		cfg.Port = device.DefaultPort
	}
	return cfg
}

// Scanner sweeps subnets with a bounded pool of concurrent probes
type Scanner struct {
	prober Prober
	cfg    ScanConfig
	log    *slog.Logger
}

// NewScanner creates a new scanner
func NewScanner(prober Prober, cfg ScanConfig, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{prober: prober, cfg: applyDefaults(cfg), log: logger}
}

// Scan probes the hosts of subnet and returns the first one that answers.
// Outstanding probes are abandoned once a match is found.
func (s *Scanner) Scan(ctx context.Context, subnet Subnet) (device.Address, bool) {
	hosts := subnet.Hosts(s.cfg.MaxHosts)
	if len(hosts) == 0 {
		return device.Address{}, false
	}
	s.log.Debug("sweeping subnet", "subnet", subnet.String(), "hosts", len(hosts), "workers", s.cfg.Workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	found := make(chan device.Address, 1)
	for _, host := range hosts {
		if gctx.Err() != nil {
			break
		}
		addr := device.NewAddress(host.String(), s.cfg.Port)
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if s.prober.Probe(gctx, addr) {
				select {
				case found <- addr:
					cancel()
				default:
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	select {
	case addr := <-found:
		return addr, true
	default:
		return device.Address{}, false
	}
}
