package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProc struct {
	pid        int32
	name       string
	nameErr    error
	termErr    error
	terminated bool
}

func (p *fakeProc) PID() int32 { return p.pid }

func (p *fakeProc) Name(context.Context) (string, error) { return p.name, p.nameErr }

func (p *fakeProc) Terminate(context.Context) error {
	if p.termErr != nil {
		return p.termErr
	}
	p.terminated = true
	return nil
}

func newTestExecutor(match MatchMode, procs ...*fakeProc) *OSExecutor {
	e := NewOSExecutor(match, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.self = 1
	e.list = func(context.Context) ([]proc, error) {
		out := make([]proc, len(procs))
		for i, p := range procs {
			out[i] = p
		}
		return out, nil
	}
	return e
}

func TestTerminate_Substring(t *testing.T) {
	editor := &fakeProc{pid: 10, name: "Notepad.exe"}
	e := newTestExecutor(MatchSubstring, &fakeProc{pid: 9, name: "explorer.exe"}, editor)

	assert.True(t, e.Terminate(context.Background(), "notepad"))
	assert.True(t, editor.terminated)
}

func TestTerminate_FirstMatchOnly(t *testing.T) {
	a := &fakeProc{pid: 10, name: "chrome"}
	b := &fakeProc{pid: 11, name: "chrome"}
	e := newTestExecutor(MatchSubstring, a, b)

	assert.True(t, e.Terminate(context.Background(), "chrome"))
	assert.True(t, a.terminated)
	assert.False(t, b.terminated)
}

func TestTerminate_Exact(t *testing.T) {
	helper := &fakeProc{pid: 10, name: "notepad-helper"}
	editor := &fakeProc{pid: 11, name: "notepad.exe"}
	e := newTestExecutor(MatchExact, helper, editor)

	assert.True(t, e.Terminate(context.Background(), "NOTEPAD"))
	assert.False(t, helper.terminated)
	assert.True(t, editor.terminated)
}

func TestTerminate_NeverSelf(t *testing.T) {
	self := &fakeProc{pid: 1, name: "esplink"}
	e := newTestExecutor(MatchSubstring, self)

	assert.False(t, e.Terminate(context.Background(), "esplink"))
	assert.False(t, self.terminated)

	_, err := e.terminate(context.Background(), "esplink")
	assert.ErrorIs(t, err, ErrProcessNotFound)
}

func TestTerminate_SkipsUnreadableAndFailed(t *testing.T) {
	unreadable := &fakeProc{pid: 10, nameErr: errors.New("access denied")}
	protected := &fakeProc{pid: 11, name: "notepad", termErr: errors.New("operation not permitted")}
	e := newTestExecutor(MatchSubstring, unreadable, protected)

	_, err := e.terminate(context.Background(), "notepad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation not permitted")
	assert.NotErrorIs(t, err, ErrProcessNotFound)
}

func TestTerminate_ListFailure(t *testing.T) {
	e := newTestExecutor(MatchSubstring)
	e.list = func(context.Context) ([]proc, error) { return nil, errors.New("boom") }

	assert.False(t, e.Terminate(context.Background(), "notepad"))
}

func TestRestartSelf(t *testing.T) {
	e := newTestExecutor(MatchSubstring)
	called := false
	e.restart = func() error {
		called = true
		return errors.New("exec format error")
	}

	err := e.RestartSelf()
	require.Error(t, err)
	assert.True(t, called)
	assert.Contains(t, err.Error(), "exec format error")
}
