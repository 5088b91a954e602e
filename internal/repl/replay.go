package repl

import (
	"fmt"
	"sync"

	"github.com/berrythewa/pwrepl/internal/session"
	"github.com/berrythewa/pwrepl/pkg/format"
	"golang.org/x/sync/errgroup"
)

// ReplayError reports the replayed command that aborted a replay.
type ReplayError struct {
	File     string
	Position int
	Command  string
	Err      error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay of %s aborted at command %d (%s): %v", e.File, e.Position, e.Command, e.Err)
}

func (e *ReplayError) Unwrap() error { return e.Err }

// replayDriver feeds one replay into the sequencer from its own goroutine, so
// the drain loop stays free to run the lines it submits.
type replayDriver struct {
	replay   *session.Replay
	cont     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func (d *replayDriver) halt() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// startReplay loads file and starts its driver.
func (r *REPL) startReplay(file string, step bool) error {
	rp, err := r.sessions.StartReplay(file, step)
	if err != nil {
		return err
	}

	d := &replayDriver{
		replay: rp,
		cont:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	g := &errgroup.Group{}
	r.mu.Lock()
	r.active = d
	r.replays = g
	r.mu.Unlock()

	msg := fmt.Sprintf("Replaying %s (%d commands)", rp.File, rp.Len())
	if step {
		msg += ", step mode: Enter or .next continues, .stop aborts"
	}
	r.report.Notice(msg)

	g.Go(func() error { return r.drive(d) })
	return nil
}

// waitReplay waits for the most recently started replay and returns its error.
func (r *REPL) waitReplay() error {
	r.mu.Lock()
	g := r.replays
	r.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

func (r *REPL) drive(d *replayDriver) error {
	defer func() {
		r.sessions.FinishReplay(d.replay)
		r.mu.Lock()
		if r.active == d {
			r.active = nil
		}
		r.mu.Unlock()
	}()

	total := d.replay.Len()
	n := 0
	for {
		line, ok := r.sessions.NextReplayLine(d.replay)
		if !ok {
			break
		}
		n++
		r.out.println(format.DimIf(fmt.Sprintf("[%d/%d] %s", n, total, line), r.f.Options().UseColors))

		if err := <-r.seq.Submit(line); err != nil {
			r.report.Warning(fmt.Sprintf("Replay aborted at command %d/%d", n, total))
			return &ReplayError{File: d.replay.File, Position: n, Command: line, Err: err}
		}

		if d.replay.Step && n < total {
			select {
			case <-d.cont:
			case <-d.stop:
				return nil
			case <-r.inputEnded:
				select {
				case <-d.cont:
				default:
					r.report.Notice(fmt.Sprintf("Replay stopped after %d commands: end of input", n))
					return nil
				}
			}
		}
		select {
		case <-d.stop:
			return nil
		default:
		}
	}

	if n == total {
		r.report.Success(fmt.Sprintf("Replay finished: %d commands", n))
	}
	return nil
}

// continueReplay releases a step replay waiting for its next command.
// It reports whether a step replay was active.
func (r *REPL) continueReplay() bool {
	r.mu.Lock()
	d := r.active
	r.mu.Unlock()
	if d == nil || !d.replay.Step {
		return false
	}
	select {
	case d.cont <- struct{}{}:
	default:
	}
	return true
}

// stopReplay ends the active replay, if any. A command already dispatched is
// left to finish.
func (r *REPL) stopReplay() (int, bool) {
	r.mu.Lock()
	d := r.active
	r.mu.Unlock()
	if d == nil {
		return 0, false
	}
	pos := r.sessions.Status().Position
	_ = r.sessions.EndReplay()
	d.halt()
	return pos, true
}
