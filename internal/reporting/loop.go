package reporting

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/darkermage/esplink/internal/command"
	"github.com/darkermage/esplink/internal/device"
	"github.com/darkermage/esplink/internal/discovery"
	"github.com/darkermage/esplink/internal/stats"
)

// Defaults
const (
	DefaultInterval         = 5 * time.Second
	DefaultFailureThreshold = 5
)

// State of the reporting loop
type State int

const (
	StateDiscovering State = iota
	StateReporting
	StateBackingOff
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateReporting:
		return "reporting"
	case StateBackingOff:
		return "backing-off"
	default:
		return "unknown"
	}
}

// Discoverer locates the device
type Discoverer interface {
	Discover(ctx context.Context) discovery.Outcome
}

// Reporter sends telemetry and returns the device's reply
type Reporter interface {
	Report(ctx context.Context, addr device.Address, telemetry string) (string, error)
}

// Observer receives loop events, typically for metrics
type Observer interface {
	ObserveReport(ok bool)
	ObserveRediscovery()
	ObserveCommand(kind string)
}

// Options configures a Loop
type Options struct {
	Discoverer Discoverer
	Reporter   Reporter
	Collector  stats.Collector
	Executor   command.Executor
	Observer   Observer

	// Fallback is reported to when discovery finds nothing
	Fallback         device.Address
	Interval         time.Duration
	FailureThreshold int
	Clock            clock.Clock
	Logger           *slog.Logger
}

// Loop owns the reporting session: the current device address and the
// consecutive failure count. It is driven by a single goroutine.
type Loop struct {
	discoverer Discoverer
	reporter   Reporter
	collector  stats.Collector
	executor   command.Executor
	observer   Observer
	fallback   device.Address
	interval   time.Duration
	threshold  int
	clock      clock.Clock
	log        *slog.Logger

	state    State
	current  device.Address
	failures int
}

// New creates a loop in the Discovering state
func New(opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loop{
		discoverer: opts.Discoverer,
		reporter:   opts.Reporter,
		collector:  opts.Collector,
		executor:   opts.Executor,
		observer:   opts.Observer,
		fallback:   opts.Fallback,
		interval:   opts.Interval,
		threshold:  opts.FailureThreshold,
		clock:      opts.Clock,
		log:        opts.Logger,
		state:      StateDiscovering,
	}
}

// State returns the current state
func (l *Loop) State() State { return l.state }

// Current returns the address reports are sent to
func (l *Loop) Current() device.Address { return l.current }

// Failures returns the consecutive send failure count
func (l *Loop) Failures() int { return l.failures }

// Run drives the loop until ctx is cancelled. Cancellation is a clean
// stop and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("reporting loop started", "interval", l.interval, "failure_threshold", l.threshold)
	for {
		wait := l.Step(ctx)
		if ctx.Err() != nil {
			break
		}
		if wait > 0 && !l.sleep(ctx, wait) {
			break
		}
	}
	l.log.Info("reporting loop stopped")
	return nil
}

// Step performs one state transition and returns how long to wait
// before the next one.
func (l *Loop) Step(ctx context.Context) time.Duration {
	switch l.state {
	case StateDiscovering:
		l.discover(ctx)
		return 0
	case StateBackingOff:
		l.state = StateReporting
		return 0
	default:
		return l.report(ctx)
	}
}

func (l *Loop) discover(ctx context.Context) {
	outcome := l.discoverer.Discover(ctx)
	if outcome.Ok() {
		l.current = outcome.Address
	} else {
		l.current = l.fallback
		l.log.Warn("device not found, reporting to fallback address", "addr", l.fallback.String())
	}
	l.state = StateReporting
}

func (l *Loop) report(ctx context.Context) time.Duration {
	snap, err := l.collector.Collect(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.log.Warn("telemetry collection failed", "err", err)
		}
		return l.interval
	}

	telemetry := stats.Format(snap)
	l.log.Debug("sending telemetry", "addr", l.current.String(), "telemetry", telemetry)

	body, err := l.reporter.Report(ctx, l.current, telemetry)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		return l.failed(err)
	}

	l.observeReport(true)
	l.failures = 0
	l.log.Debug("device replied", "body", body)
	l.dispatch(ctx, command.Parse(body))
	return l.interval
}

func (l *Loop) failed(err error) time.Duration {
	l.observeReport(false)
	l.failures++
	l.log.Warn("report failed", "addr", l.current.String(), "failures", l.failures, "threshold", l.threshold, "err", err)

	if l.failures >= l.threshold {
		l.failures = 0
		l.state = StateDiscovering
		if l.observer != nil {
			l.observer.ObserveRediscovery()
		}
		l.log.Info("failure threshold reached, rediscovering device")
		return 0
	}
	l.state = StateBackingOff
	return l.interval
}

func (l *Loop) dispatch(ctx context.Context, cmd command.Command) {
	if cmd.Kind == command.None {
		return
	}
	if l.observer != nil {
		l.observer.ObserveCommand(cmd.Kind.String())
	}

	switch cmd.Kind {
	case command.Restart:
		l.log.Info("restart requested by device")
		if err := l.executor.RestartSelf(); err != nil {
			l.log.Error("restart failed", "err", err)
		}
	case command.Kill:
		l.log.Info("kill requested by device", "target", cmd.Target)
		l.executor.Terminate(ctx, cmd.Target)
	}
}

func (l *Loop) observeReport(ok bool) {
	if l.observer != nil {
		l.observer.ObserveReport(ok)
	}
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	t := l.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
