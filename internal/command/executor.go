package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrProcessNotFound is returned when no running process matches
var ErrProcessNotFound = errors.New("process not found")

// MatchMode selects how a kill target is compared to process names
type MatchMode string

const (
	// MatchSubstring matches any process whose name contains the target,
	// case-insensitively. A short target can hit unrelated processes.
	MatchSubstring MatchMode = "substring"
	// MatchExact matches the name case-insensitively, with or without ".exe".
	MatchExact MatchMode = "exact"
)

// Executor carries out device commands
type Executor interface {
	// Terminate stops the first process matching name and reports success
	Terminate(ctx context.Context, name string) bool
	// RestartSelf replaces the agent with a fresh copy started with the
	// original arguments. It returns only on failure.
	RestartSelf() error
}

// proc is the slice of a running process the executor needs
type proc interface {
	PID() int32
	Name(ctx context.Context) (string, error)
	Terminate(ctx context.Context) error
}

type osProc struct {
	p *process.Process
}

func (o osProc) PID() int32 { return o.p.Pid }

func (o osProc) Name(ctx context.Context) (string, error) { return o.p.NameWithContext(ctx) }

func (o osProc) Terminate(ctx context.Context) error { return o.p.TerminateWithContext(ctx) }

func listOSProcs(ctx context.Context) ([]proc, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]proc, 0, len(procs))
	for _, p := range procs {
		out = append(out, osProc{p: p})
	}
	return out, nil
}

// OSExecutor executes commands against the local operating system
type OSExecutor struct {
	match   MatchMode
	self    int32
	list    func(ctx context.Context) ([]proc, error)
	restart func() error
	log     *slog.Logger
}

// NewOSExecutor creates an executor for the running host
func NewOSExecutor(match MatchMode, logger *slog.Logger) *OSExecutor {
	if match == "" {
		match = MatchSubstring
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OSExecutor{
		match:   match,
		self:    int32(os.Getpid()),
		list:    listOSProcs,
		restart: restartSelf,
		log:     logger,
	}
}

// Terminate sends a termination signal to the first matching process.
// The agent itself is never a candidate.
func (e *OSExecutor) Terminate(ctx context.Context, name string) bool {
	pid, err := e.terminate(ctx, name)
	if err != nil {
		e.log.Error("failed to terminate process", "target", name, "err", err)
		return false
	}
	e.log.Info("terminated process", "target", name, "pid", pid)
	return true
}

func (e *OSExecutor) terminate(ctx context.Context, name string) (int32, error) {
	procs, err := e.list(ctx)
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}

	var lastErr error
	for _, p := range procs {
		if p.PID() == e.self {
			continue
		}
		pname, err := p.Name(ctx)
		if err != nil || !e.matches(pname, name) {
			continue
		}
		e.log.Debug("found matching process", "target", name, "name", pname, "pid", p.PID())
		if err := p.Terminate(ctx); err != nil {
			lastErr = fmt.Errorf("terminate %s (pid %d): %w", pname, p.PID(), err)
			continue
		}
		return p.PID(), nil
	}

	if lastErr != nil {
		return 0, lastErr
	}
	return 0, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
}

func (e *OSExecutor) matches(processName, target string) bool {
	processName = strings.ToLower(processName)
	target = strings.ToLower(target)
	if e.match == MatchExact {
		return processName == target || strings.TrimSuffix(processName, ".exe") == target
	}
	return strings.Contains(processName, target)
}

// RestartSelf re-executes the agent with its original arguments
func (e *OSExecutor) RestartSelf() error {
	e.log.Info("restarting agent", "args", os.Args)
	if err := e.restart(); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	return nil
}
