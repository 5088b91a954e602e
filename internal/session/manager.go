// Package session records executed commands to .pw files and replays them.
//
// The lifecycle is a single state value (see Mode) changed only through the
// transition table in state.go; an operation the current mode does not allow
// fails with a StateConflictError and leaves everything untouched.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/berrythewa/pwrepl/internal/config"
	"go.uber.org/zap"
)

// MetaPrefix marks lines addressed to the client itself. They are never recorded.
const MetaPrefix = "."

// Recording is the in-memory buffer of an active recording.
type Recording struct {
	File    string
	Started time.Time
	Lines   []string
}

// Replay is a loaded session file. Its command list never changes; the
// cursor only moves forward.
type Replay struct {
	File  string
	Step  bool
	lines []string
	pos   int
}

// Len returns the number of commands in the replay.
func (r *Replay) Len() int { return len(r.lines) }

// Status is a snapshot of the manager for display.
type Status struct {
	Mode     Mode
	File     string
	Recorded int // commands in the recording buffer
	Position int // replay commands handed out so far
	Total    int // commands in the replay
	Step     bool
}

// Manager owns the recording buffer and the replay cursor.
type Manager struct {
	dir    string
	title  string
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	mode      Mode
	recording *Recording
	replay    *Replay
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock replaces time.Now, for file names and headers.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an idle manager storing sessions under cfg.Sessions.Dir.
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	m := &Manager{
		dir:    cfg.Sessions.Dir,
		title:  cfg.Sessions.Title,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	if m.title == "" {
		m.title = "Playwright REPL session"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mode returns the current mode.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Status returns a snapshot of the current session.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{Mode: m.mode}
	if m.recording != nil {
		st.File = m.recording.File
		st.Recorded = len(m.recording.Lines)
	}
	if m.replay != nil {
		st.File = m.replay.File
		st.Position = m.replay.pos
		st.Total = len(m.replay.lines)
		st.Step = m.replay.Step
	}
	return st
}

// StartRecording begins a recording and returns the resolved target file.
// An empty name is replaced by a timestamped one.
func (m *Manager) StartRecording(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, err := next(m.mode, evStartRecording)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = autoName(m.now())
	}
	file := m.resolve(withExt(name))

	m.recording = &Recording{File: file, Started: m.now()}
	m.mode = to
	m.logger.Info("Recording started", zap.String("file", file))
	return file, nil
}

// TogglePause switches between recording and paused and returns the new mode.
func (m *Manager) TogglePause() (Mode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, err := next(m.mode, evTogglePause)
	if err != nil {
		return m.mode, err
	}
	m.mode = to
	m.logger.Debug("Recording toggled", zap.Stringer("mode", to))
	return to, nil
}

// CommandExecuted appends a successfully executed line to an active,
// unpaused recording. Blank lines and meta-commands are skipped.
func (m *Manager) CommandExecuted(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, MetaPrefix) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != ModeRecording {
		return
	}
	m.recording.Lines = append(m.recording.Lines, line)
}

// Save writes the recording to its file and returns the file and the number
// of commands written. A failed write keeps the recording active.
func (m *Manager) Save() (string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, err := next(m.mode, evSave)
	if err != nil {
		return "", 0, err
	}

	rec := m.recording
	data := Format(m.title, m.now(), rec.Lines)
	if err := writeFile(rec.File, data); err != nil {
		return "", 0, err
	}

	m.recording = nil
	m.mode = to
	m.logger.Info("Recording saved", zap.String("file", rec.File), zap.Int("commands", len(rec.Lines)))
	return rec.File, len(rec.Lines), nil
}

// Discard drops the recording without writing it and returns how many
// commands were thrown away.
func (m *Manager) Discard() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, err := next(m.mode, evDiscard)
	if err != nil {
		return 0, err
	}
	n := len(m.recording.Lines)
	m.recording = nil
	m.mode = to
	m.logger.Info("Recording discarded", zap.Int("commands", n))
	return n, nil
}

// StartReplay loads a session file and enters replay mode.
func (m *Manager) StartReplay(name string, step bool) (*Replay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, err := next(m.mode, evStartReplay)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("replay requires a session file")
	}

	file := m.locate(name)
	lines, err := LoadFile(file)
	if err != nil {
		return nil, err
	}

	r := &Replay{File: file, Step: step, lines: lines}
	m.replay = r
	m.mode = to
	m.logger.Info("Replay started", zap.String("file", file), zap.Int("commands", len(lines)), zap.Bool("step", step))
	return r, nil
}

// NextReplayLine hands out r's next command. It returns false once r is
// exhausted or is no longer the active replay.
func (m *Manager) NextReplayLine(r *Replay) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.replay != r || r.pos >= len(r.lines) {
		return "", false
	}
	line := r.lines[r.pos]
	r.pos++
	return line, true
}

// EndReplay aborts the active replay. A command already dispatched is left to finish.
func (m *Manager) EndReplay() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endReplayLocked()
}

// FinishReplay ends r if it is still the active replay. It is a no-op when r
// was already ended, so a finished driver never ends a newer replay.
func (m *Manager) FinishReplay(r *Replay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replay == r {
		_ = m.endReplayLocked()
	}
}

func (m *Manager) endReplayLocked() error {
	to, err := next(m.mode, evEndReplay)
	if err != nil {
		return err
	}
	m.logger.Info("Replay ended", zap.String("file", m.replay.File), zap.Int("position", m.replay.pos))
	m.replay = nil
	m.mode = to
	return nil
}

// resolve places bare file names in the sessions directory.
func (m *Manager) resolve(name string) string {
	if filepath.IsAbs(name) || m.dir == "" || filepath.Base(name) != name {
		return name
	}
	return filepath.Join(m.dir, name)
}

// locate finds a file to replay: the name as given first, then the sessions directory.
func (m *Manager) locate(name string) string {
	for _, candidate := range []string{name, withExt(name)} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return m.resolve(withExt(name))
}

// IsStateConflict reports whether err is a lifecycle conflict.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrStateConflict)
}

// Describe renders a status line.
func (s Status) Describe() string {
	switch s.Mode {
	case ModeRecording, ModePaused:
		return fmt.Sprintf("%s %s (%d commands)", s.Mode, s.File, s.Recorded)
	case ModeReplaying:
		return fmt.Sprintf("replaying %s (%d/%d)", s.File, s.Position, s.Total)
	default:
		return s.Mode.String()
	}
}
