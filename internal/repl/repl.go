// Package repl is the interactive front end: it reads lines, routes
// meta-commands to the client and everything else through the sequencer to
// the backend, and drives session replays.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/berrythewa/pwrepl/internal/command"
	"github.com/berrythewa/pwrepl/internal/config"
	"github.com/berrythewa/pwrepl/internal/daemon"
	"github.com/berrythewa/pwrepl/internal/history"
	"github.com/berrythewa/pwrepl/internal/ipc"
	"github.com/berrythewa/pwrepl/internal/sequencer"
	"github.com/berrythewa/pwrepl/internal/session"
	"github.com/berrythewa/pwrepl/pkg/format"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	prompt          = "pw> "
	shutdownTimeout = 2 * time.Second
	maxLineSize     = 1024 * 1024
)

// Options holds the collaborators of a REPL. Only In and Out are required.
type Options struct {
	In  io.Reader
	Out io.Writer

	// Interactive enables the prompt and banner.
	Interactive bool

	Logger    *zap.Logger
	Formatter *format.Formatter

	// History records every input line when set.
	History *history.Store

	// Launcher starts the backend when the first connect fails and
	// cfg.Backend.AutoStart is set.
	Launcher *daemon.Launcher

	// Dial replaces the unix-socket dialer.
	Dial ipc.DialFunc

	// Now replaces time.Now for session file names and headers.
	Now func() time.Time
}

// REPL wires the transport, sequencer, executor and session manager together.
type REPL struct {
	cfg      *config.Config
	in       io.Reader
	out      *output
	logger   *zap.Logger
	f        *format.Formatter
	report   *terminalReporter
	history  *history.Store
	launcher *daemon.Launcher

	interactive bool

	client   *ipc.Client
	seq      *sequencer.Sequencer
	exec     *sequencer.Executor
	sessions *session.Manager

	mu      sync.Mutex
	replays *errgroup.Group
	active  *replayDriver

	// inputEnded is closed once input has ended and every line read from it
	// has run; a step replay can then receive no further continuation.
	inputEnded   chan struct{}
	endInputOnce sync.Once

	exiting  atomic.Bool
	exit     chan struct{}
	exitOnce sync.Once
}

// New creates a REPL for cfg. Nothing is connected until Run or RunReplay.
func New(cfg *config.Config, opts Options) *REPL {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	f := opts.Formatter
	if f == nil {
		f = format.New(format.PlainOptions())
	}

	r := &REPL{
		cfg:         cfg,
		in:          opts.In,
		out:         &output{w: opts.Out},
		logger:      logger,
		f:           f,
		history:     opts.History,
		launcher:    opts.Launcher,
		interactive: opts.Interactive,
		exit:        make(chan struct{}),
		inputEnded:  make(chan struct{}),
	}
	r.report = &terminalReporter{out: r.out, f: f}

	r.client = ipc.NewClient(cfg, ipc.Options{
		Logger:  logger.Named("ipc"),
		Dial:    opts.Dial,
		OnError: r.onTransportError,
		OnClose: r.onDisconnect,
	})

	sessionOpts := []session.Option{session.WithLogger(logger.Named("session"))}
	if opts.Now != nil {
		sessionOpts = append(sessionOpts, session.WithClock(opts.Now))
	}
	r.sessions = session.NewManager(cfg, sessionOpts...)

	r.exec = sequencer.NewExecutor(cfg, sequencer.ExecutorConfig{
		Dispatcher: r.client,
		Observer:   r.sessions,
		Reporter:   r.report,
		Logger:     logger.Named("executor"),
	})

	// commands are never cancelled mid-flight; shutdown closes the client instead
	r.seq = sequencer.New(context.Background(), sequencer.HandlerFunc(r.handle), logger.Named("sequencer"))
	return r
}

// Sessions exposes the session manager.
func (r *REPL) Sessions() *session.Manager { return r.sessions }

// Run reads lines until end of input, .exit or ctx is done. At end of input
// every queued command and running replay is allowed to finish first.
func (r *REPL) Run(ctx context.Context) error {
	defer r.close()

	if err := r.connect(ctx); err != nil {
		r.report.Warning(fmt.Sprintf("Not connected to backend at %s: %v", r.client.Address(), err))
		r.report.Notice("Commands will reconnect on failure; start the backend with 'pwrepl backend start'")
	}
	if r.interactive {
		r.report.Notice(fmt.Sprintf("Playwright REPL (%s). Type .help for commands.", r.client.Address()))
		r.prompt()
	}

	lines := r.readLines()
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case <-r.exit:
			r.shutdown()
			return nil
		case line, ok := <-lines:
			if !ok {
				r.finish(ctx)
				return nil
			}
			r.remember(line)
			r.seq.Submit(line)
		}
	}
}

// RunReplay connects, replays file and returns once it has finished. In step
// mode continuation lines are read from the input.
func (r *REPL) RunReplay(ctx context.Context, file string, step bool) error {
	defer r.close()

	if err := r.connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to backend at %s: %w", r.client.Address(), err)
	}
	if err := r.startReplay(file, step); err != nil {
		return err
	}

	if step {
		lines := r.readLines()
		go func() {
			for line := range lines {
				r.remember(line)
				r.seq.Submit(line)
			}
			r.waitIdle(ctx)
			r.endInput()
		}()
	}

	done := make(chan error, 1)
	go func() { done <- r.waitReplay() }()

	select {
	case err := <-done:
		r.waitIdle(ctx)
		return err
	case <-ctx.Done():
		r.stopReplay()
		r.shutdown()
		return ctx.Err()
	}
}

// readLines pumps input into a channel that is closed at end of input.
// A blocked read cannot be interrupted, so the goroutine may outlive Run.
func (r *REPL) readLines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-r.exit:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			r.logger.Warn("Input read failed", zap.Error(err))
		}
	}()
	return lines
}

// handle runs one queued line inside the drain loop.
func (r *REPL) handle(ctx context.Context, line string) error {
	err := r.dispatch(ctx, line)
	if r.interactive && r.seq.Len() == 0 {
		r.prompt()
	}
	return err
}

func (r *REPL) dispatch(ctx context.Context, line string) error {
	if r.exiting.Load() {
		return nil
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		r.continueReplay()
		return nil
	}

	if strings.HasPrefix(trimmed, session.MetaPrefix) {
		err := r.runMeta(ctx, trimmed)
		if err != nil {
			r.report.Error(err)
		}
		return err
	}

	cmd, ok := command.Parse(trimmed)
	if !ok {
		return nil
	}
	if err := cmd.Validate(); err != nil {
		r.report.Error(err)
		return err
	}
	// the executor reports its own outcome
	return r.exec.Execute(ctx, cmd)
}

// connect dials the backend, starting it first when auto-start is enabled.
func (r *REPL) connect(ctx context.Context) error {
	err := r.client.Connect(ctx)
	if err == nil || r.launcher == nil || !r.cfg.Backend.AutoStart {
		return err
	}

	r.report.Notice("Starting backend...")
	if lerr := r.launcher.EnsureRunning(ctx); lerr != nil {
		return fmt.Errorf("auto-start failed: %w", lerr)
	}
	return r.client.Connect(ctx)
}

func (r *REPL) onTransportError(err error) {
	if r.exiting.Load() {
		return
	}
	r.report.Warning(fmt.Sprintf("Backend connection error: %v", err))
}

func (r *REPL) onDisconnect() {
	if r.exiting.Load() {
		return
	}
	r.report.Warning("Disconnected from backend")
}

func (r *REPL) remember(line string) {
	if r.history == nil {
		return
	}
	if err := r.history.Add(line); err != nil {
		r.logger.Warn("Failed to record history", zap.Error(err))
	}
}

func (r *REPL) prompt() {
	if r.exiting.Load() {
		return
	}
	r.out.print(format.BoldIf(prompt, r.f.Options().UseColors))
}

// close drops the connection without reporting it as a disconnect.
func (r *REPL) close() {
	r.exiting.Store(true)
	r.client.Close()
}

func (r *REPL) requestExit() {
	r.exitOnce.Do(func() {
		r.exiting.Store(true)
		close(r.exit)
	})
}

func (r *REPL) endInput() {
	r.endInputOnce.Do(func() { close(r.inputEnded) })
}

// finish lets queued work complete after end of input. A step replay can
// never receive another continuation, so it stops at its next pause.
func (r *REPL) finish(ctx context.Context) {
	r.waitIdle(ctx)
	r.endInput()
	if err := r.waitReplay(); err != nil {
		r.logger.Warn("Replay failed", zap.Error(err))
	}
	r.waitIdle(ctx)
}

// shutdown abandons queued work: replays stop, remaining lines are skipped and
// an outstanding call fails when the client closes.
func (r *REPL) shutdown() {
	r.requestExit()
	r.stopReplay()
	r.client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.seq.Wait(ctx); err != nil {
		r.logger.Warn("Sequencer did not drain before exit", zap.Error(err))
	}
}

func (r *REPL) waitIdle(ctx context.Context) {
	if err := r.seq.Wait(ctx); err != nil {
		r.logger.Debug("Stopped waiting for queued commands", zap.Error(err))
	}
}
