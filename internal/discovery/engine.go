package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/darkermage/esplink/internal/device"
)

// Observer is told how each discovery pass ended
type Observer interface {
	// ObserveDiscovery receives the winning strategy, or "" when unresolved
	ObserveDiscovery(strategy string, elapsed time.Duration)
}

// EngineOptions wires the engine's collaborators
type EngineOptions struct {
	Store      AddressStore
	Strategies []Strategy // cheap checks run before any sweep, in order
	Enumerator *Enumerator
	Scanner    *Scanner
	Observer   Observer
	Logger     *slog.Logger
}

// Engine runs the layered search for the device.
// Discover is not safe for concurrent use.
type Engine struct {
	store      AddressStore
	strategies []Strategy
	enumerator *Enumerator
	scanner    *Scanner
	observer   Observer
	log        *slog.Logger
}

// NewEngine creates a discovery engine
func NewEngine(opts EngineOptions) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		store:      opts.Store,
		strategies: opts.Strategies,
		enumerator: opts.Enumerator,
		scanner:    opts.Scanner,
		observer:   opts.Observer,
		log:        opts.Logger,
	}
}

// Discover locates the device: cheap strategies first, then concurrent
// sweeps of the local subnets and finally the static fallback subnets.
func (e *Engine) Discover(ctx context.Context) Outcome {
	start := time.Now()
	log := e.log.With("pass", uuid.NewString())
	log.Info("discovery started")

	outcome := e.discover(ctx, log)

	elapsed := time.Since(start)
	if e.observer != nil {
		e.observer.ObserveDiscovery(outcome.Strategy, elapsed)
	}
	if outcome.Ok() {
		log.Info("device found", "addr", outcome.Address.String(), "strategy", outcome.Strategy, "elapsed", elapsed)
	} else {
		log.Warn("device not found", "elapsed", elapsed)
	}
	return outcome
}

func (e *Engine) discover(ctx context.Context, log *slog.Logger) Outcome {
	for _, s := range e.strategies {
		if ctx.Err() != nil {
			return Unresolved()
		}
		log.Debug("trying strategy", "strategy", s.Name())
		if addr, ok := s.Locate(ctx); ok {
			return e.resolved(addr, s.Name())
		}
	}

	if e.scanner == nil || e.enumerator == nil {
		return Unresolved()
	}

	covered := make(map[string]bool)
	if addr, ok := e.sweep(ctx, log, e.enumerator.LocalSubnets(), covered); ok {
		return e.resolved(addr, StrategySubnets)
	}
	if addr, ok := e.sweep(ctx, log, e.enumerator.Fallback(), covered); ok {
		return e.resolved(addr, StrategyFallback)
	}
	return Unresolved()
}

// sweep scans each subnet not yet in covered, marking it as it goes
func (e *Engine) sweep(ctx context.Context, log *slog.Logger, subnets []Subnet, covered map[string]bool) (device.Address, bool) {
	for _, subnet := range subnets {
		if ctx.Err() != nil {
			return device.Address{}, false
		}
		if covered[subnet.Key()] {
			continue
		}
		covered[subnet.Key()] = true

		log.Info("scanning subnet", "subnet", subnet.String())
		if addr, ok := e.scanner.Scan(ctx, subnet); ok {
			return addr, true
		}
	}
	return device.Address{}, false
}

func (e *Engine) resolved(addr device.Address, strategy string) Outcome {
	if strategy != StrategyCache && e.store != nil {
		e.store.Save(addr)
	}
	return Resolved(addr, strategy)
}
