// Package sequencer serializes command execution. Lines may arrive faster
// than they complete; they are queued in arrival order and executed one at a
// time by a single drain loop.
package sequencer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Handler executes one queued line.
type Handler interface {
	Handle(ctx context.Context, line string) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, line string) error

func (f HandlerFunc) Handle(ctx context.Context, line string) error { return f(ctx, line) }

type job struct {
	line string
	done chan error
}

// Sequencer is a FIFO queue with at most one active drain loop.
//
// Submit never blocks and never starts a second drain while one is running,
// so no two handlers run concurrently and lines run in arrival order.
type Sequencer struct {
	ctx     context.Context
	handler Handler
	logger  *zap.Logger

	mu        sync.Mutex
	idle      *sync.Cond
	queue     []job
	draining  bool
	drains    int
	processed int
}

// New creates a sequencer whose handlers run with ctx.
func New(ctx context.Context, h Handler, logger *zap.Logger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sequencer{ctx: ctx, handler: h, logger: logger}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Submit queues line and returns a channel that receives the handler's
// result once the line has been executed.
func (s *Sequencer) Submit(line string) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	s.queue = append(s.queue, job{line: line, done: done})
	start := !s.draining
	if start {
		s.draining = true
		s.drains++
	}
	depth := len(s.queue)
	s.mu.Unlock()

	if start {
		go s.drain()
	} else {
		s.logger.Debug("Queued behind running command", zap.Int("depth", depth))
	}
	return done
}

func (s *Sequencer) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.idle.Broadcast()
			s.mu.Unlock()
			return
		}
		j := s.queue[0]
		s.queue[0] = job{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		err := s.handler.Handle(s.ctx, j.line)

		s.mu.Lock()
		s.processed++
		s.mu.Unlock()
		j.done <- err
	}
}

// Wait blocks until the queue is empty and no line is executing, or ctx is done.
func (s *Sequencer) Wait(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.idle.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.draining || len(s.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.idle.Wait()
	}
	return nil
}

// Len returns the number of queued lines not yet started.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Processed returns how many lines have been executed.
func (s *Sequencer) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

// Drains returns how many drain loops have been started.
func (s *Sequencer) Drains() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drains
}
