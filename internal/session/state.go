package session

import (
	"errors"
	"fmt"
)

// Mode is the session lifecycle state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeRecording
	ModePaused
	ModeReplaying
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRecording:
		return "recording"
	case ModePaused:
		return "paused"
	case ModeReplaying:
		return "replaying"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

type event int

const (
	evStartRecording event = iota
	evTogglePause
	evSave
	evDiscard
	evStartReplay
	evEndReplay
)

func (e event) String() string {
	switch e {
	case evStartRecording:
		return "start recording"
	case evTogglePause:
		return "pause"
	case evSave:
		return "save"
	case evDiscard:
		return "discard"
	case evStartReplay:
		return "start replay"
	case evEndReplay:
		return "end replay"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// transitions is the complete lifecycle table. Anything not listed is a conflict.
var transitions = map[Mode]map[event]Mode{
	ModeIdle: {
		evStartRecording: ModeRecording,
		evStartReplay:    ModeReplaying,
	},
	ModeRecording: {
		evTogglePause: ModePaused,
		evSave:        ModeIdle,
		evDiscard:     ModeIdle,
	},
	ModePaused: {
		evTogglePause: ModeRecording,
		evSave:        ModeIdle,
		evDiscard:     ModeIdle,
	},
	ModeReplaying: {
		evEndReplay: ModeIdle,
	},
}

// ErrStateConflict matches every StateConflictError.
var ErrStateConflict = errors.New("session state conflict")

// StateConflictError reports an operation the current mode does not allow.
type StateConflictError struct {
	Op   string
	Mode Mode
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.Mode)
}

func (e *StateConflictError) Is(target error) bool {
	return target == ErrStateConflict
}

// next returns the mode ev leads to from current, or a conflict.
func next(current Mode, ev event) (Mode, error) {
	if to, ok := transitions[current][ev]; ok {
		return to, nil
	}
	return current, &StateConflictError{Op: ev.String(), Mode: current}
}
