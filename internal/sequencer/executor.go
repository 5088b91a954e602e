package sequencer

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/berrythewa/pwrepl/internal/command"
	"github.com/berrythewa/pwrepl/internal/config"
	"github.com/berrythewa/pwrepl/internal/ipc"
	"go.uber.org/zap"
)

// Dispatcher is the transport the executor sends commands through.
type Dispatcher interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Connected() bool
	Connect(ctx context.Context) error
}

// Observer is told about every successfully executed raw line.
type Observer interface {
	CommandExecuted(line string)
}

// Reporter presents command outcomes to the user.
type Reporter interface {
	Result(cmd *command.Command, text string)
	Failure(cmd *command.Command, err error)
	Timing(cmd *command.Command, elapsed time.Duration)
	Reconnected(err error)
}

// Executor runs one normalized command against the backend and applies the
// per-command side effects.
type Executor struct {
	dispatcher Dispatcher
	observer   Observer
	reporter   Reporter
	logger     *zap.Logger
	cwd        string
	threshold  time.Duration
	now        func() time.Time

	executed atomic.Int64
}

// ExecutorConfig holds the collaborators of an Executor.
type ExecutorConfig struct {
	Dispatcher Dispatcher
	Observer   Observer
	Reporter   Reporter
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewExecutor creates an executor for cfg.
func NewExecutor(cfg *config.Config, ec ExecutorConfig) *Executor {
	e := &Executor{
		dispatcher: ec.Dispatcher,
		observer:   ec.Observer,
		reporter:   ec.Reporter,
		logger:     ec.Logger,
		cwd:        cfg.Workspace,
		threshold:  cfg.SlowCommandThreshold,
		now:        ec.Now,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Execute dispatches cmd and waits for its outcome. On failure it reconnects
// at most once when the transport has dropped, and never retries the command.
func (e *Executor) Execute(ctx context.Context, cmd *command.Command) error {
	start := e.now()
	result, err := e.dispatcher.Call(ctx, ipc.MethodRun, ipc.RunParams{Args: cmd.Args(), Cwd: e.cwd})
	elapsed := e.now().Sub(start)

	if err != nil {
		e.logger.Warn("Command failed",
			zap.String("command", cmd.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		if e.reporter != nil {
			e.reporter.Failure(cmd, err)
		}
		if !e.dispatcher.Connected() {
			rerr := e.dispatcher.Connect(ctx)
			if rerr != nil {
				e.logger.Warn("Reconnect failed", zap.Error(rerr))
			} else {
				e.logger.Info("Reconnected to backend")
			}
			if e.reporter != nil {
				e.reporter.Reconnected(rerr)
			}
		}
		return err
	}

	e.executed.Add(1)
	if e.observer != nil {
		e.observer.CommandExecuted(cmd.Raw)
	}
	if e.reporter != nil {
		e.reporter.Result(cmd, ipc.DecodeRunResult(result))
		if e.threshold > 0 && elapsed > e.threshold {
			e.reporter.Timing(cmd, elapsed)
		}
	}
	e.logger.Debug("Command executed", zap.String("command", cmd.Name), zap.Duration("elapsed", elapsed))
	return nil
}

// Executed returns the number of commands that completed successfully.
func (e *Executor) Executed() int64 {
	return e.executed.Load()
}
