// SPDX-License-Identifier: MPL-2.0

package serve

import (
	"errors"
	"fmt"
)

const (
	// StateIdle indicates the supervisor was created but Run not called.
	StateIdle State = iota
	// StateWatching indicates the watcher is running and no build is in progress.
	StateWatching
	// StateBuilding indicates a build is in progress.
	StateBuilding
	// StateShuttingDown indicates Run is releasing the watcher, process and builder.
	StateShuttingDown
	// StateStopped is terminal.
	StateStopped
)

const (
	// OutcomeNone means no build has finished yet.
	OutcomeNone Outcome = iota
	// OutcomeServing means the last build succeeded and its process was started.
	OutcomeServing
	// OutcomeBuildFailed means the last build failed; any previous process keeps running.
	OutcomeBuildFailed
	// OutcomeSpawnFailed means the last build succeeded but its process could not be started.
	OutcomeSpawnFailed
)

// ErrInvalidState is returned when a State value is not one of the defined states.
var ErrInvalidState = errors.New("invalid state")

type (
	// State is the lifecycle state of a Supervisor.
	State int32

	// Outcome records how the most recent rebuild ended. The supervisor
	// always returns to StateWatching afterwards.
	Outcome int32

	// InvalidStateError is returned when a State value is not recognized.
	// It wraps ErrInvalidState for errors.Is() compatibility.
	InvalidStateError struct {
		Value State
	}
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateBuilding:
		return "building"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Error implements the error interface for InvalidStateError.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %d (valid: 0=idle, 1=watching, 2=building, 3=shutting-down, 4=stopped)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// Validate returns nil if the State is one of the defined states, or an
// error wrapping ErrInvalidState if it is not.
func (s State) Validate() error {
	switch s {
	case StateIdle, StateWatching, StateBuilding, StateShuttingDown, StateStopped:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// IsTerminal returns true for StateStopped.
func (s State) IsTerminal() bool {
	return s == StateStopped
}

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeServing:
		return "serving"
	case OutcomeBuildFailed:
		return "build-failed"
	case OutcomeSpawnFailed:
		return "spawn-failed"
	default:
		return "unknown"
	}
}
