package sequencer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/berrythewa/pwrepl/internal/command"
	"github.com/berrythewa/pwrepl/internal/config"
	"github.com/berrythewa/pwrepl/internal/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	connected   bool
	callErr     error
	dropOnError bool
	connectErr  error
	connects    int
	params      []ipc.RunParams
}

func (f *fakeDispatcher) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	f.params = append(f.params, params.(ipc.RunParams))
	if f.callErr != nil {
		if f.dropOnError {
			f.connected = false
		}
		return nil, f.callErr
	}
	return json.RawMessage(`{"text":"### Result\nok"}`), nil
}

func (f *fakeDispatcher) Connected() bool { return f.connected }

func (f *fakeDispatcher) Connect(ctx context.Context) error {
	f.connects++
	if f.connectErr == nil {
		f.connected = true
	}
	return f.connectErr
}

type recordingObserver struct{ lines []string }

func (r *recordingObserver) CommandExecuted(line string) { r.lines = append(r.lines, line) }

type recordingReporter struct {
	results    []string
	failures   []error
	timings    []time.Duration
	reconnects []error
}

func (r *recordingReporter) Result(cmd *command.Command, text string)     { r.results = append(r.results, text) }
func (r *recordingReporter) Failure(cmd *command.Command, err error)      { r.failures = append(r.failures, err) }
func (r *recordingReporter) Timing(cmd *command.Command, d time.Duration) { r.timings = append(r.timings, d) }
func (r *recordingReporter) Reconnected(err error)                        { r.reconnects = append(r.reconnects, err) }

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func newTestExecutor(d *fakeDispatcher, step time.Duration) (*Executor, *recordingObserver, *recordingReporter) {
	obs := &recordingObserver{}
	rep := &recordingReporter{}
	cfg := &config.Config{Workspace: "/work", SlowCommandThreshold: time.Second}
	return NewExecutor(cfg, ExecutorConfig{
		Dispatcher: d,
		Observer:   obs,
		Reporter:   rep,
		Now:        steppingClock(step),
	}), obs, rep
}

func TestExecutor_Success(t *testing.T) {
	d := &fakeDispatcher{connected: true}
	e, obs, rep := newTestExecutor(d, 10*time.Millisecond)

	cmd, _ := command.Parse("c e5")
	require.NoError(t, e.Execute(context.Background(), cmd))

	require.Len(t, d.params, 1)
	assert.Equal(t, "/work", d.params[0].Cwd)
	assert.Equal(t, []string{"click", "e5"}, d.params[0].Args["_"])
	assert.Equal(t, []string{"c e5"}, obs.lines, "the raw line is what gets recorded")
	assert.Equal(t, []string{"### Result\nok"}, rep.results)
	assert.Empty(t, rep.timings, "fast commands print no timing")
	assert.Equal(t, int64(1), e.Executed())
}

func TestExecutor_ReportsSlowCommands(t *testing.T) {
	d := &fakeDispatcher{connected: true}
	e, _, rep := newTestExecutor(d, 3*time.Second)

	cmd, _ := command.Parse("goto https://example.com")
	require.NoError(t, e.Execute(context.Background(), cmd))
	assert.Equal(t, []time.Duration{3 * time.Second}, rep.timings)
}

func TestExecutor_RemoteErrorDoesNotReconnect(t *testing.T) {
	d := &fakeDispatcher{connected: true, callErr: &ipc.RemoteError{Message: "Unknown ref e99"}}
	e, obs, rep := newTestExecutor(d, time.Millisecond)

	cmd, _ := command.Parse("click e99")
	err := e.Execute(context.Background(), cmd)
	var remote *ipc.RemoteError
	require.ErrorAs(t, err, &remote)

	assert.Empty(t, obs.lines, "failed commands are not recorded")
	assert.Len(t, rep.failures, 1)
	assert.Zero(t, d.connects)
	assert.Empty(t, rep.reconnects)
	assert.Zero(t, e.Executed())
}

func TestExecutor_ReconnectsOnceAfterDisconnect(t *testing.T) {
	d := &fakeDispatcher{connected: true, callErr: ipc.ErrConnectionClosed, dropOnError: true}
	e, _, rep := newTestExecutor(d, time.Millisecond)

	cmd, _ := command.Parse("snapshot")
	err := e.Execute(context.Background(), cmd)
	assert.ErrorIs(t, err, ipc.ErrConnectionClosed)
	assert.Equal(t, 1, d.connects)
	assert.Equal(t, []error{nil}, rep.reconnects)
	assert.Len(t, d.params, 1, "the failed command is not retried")
}

func TestExecutor_ReportsFailedReconnect(t *testing.T) {
	refused := errors.New("connection refused")
	d := &fakeDispatcher{connected: false, callErr: ipc.ErrNotConnected, connectErr: refused}
	e, _, rep := newTestExecutor(d, time.Millisecond)

	cmd, _ := command.Parse("snapshot")
	assert.ErrorIs(t, e.Execute(context.Background(), cmd), ipc.ErrNotConnected)
	assert.Equal(t, 1, d.connects)
	require.Len(t, rep.reconnects, 1)
	assert.ErrorIs(t, rep.reconnects[0], refused)
}
