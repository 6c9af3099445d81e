package model

import (
	"sync"

	"github.com/Brownie44l1/depth-api/internal/errors"
)

// State is the load state of an engine.
type State int32

const (
	Unloaded State = iota
	Loaded
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Lifecycle tracks an engine's state. Backends embed it.
//
// Unloaded moves to Loaded or Failed once; Loaded moves to Closed.
// Failed and Closed are terminal.
type Lifecycle struct {
	mu    sync.Mutex
	state State
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// MarkLoaded records a successful load.
func (l *Lifecycle) MarkLoaded() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Unloaded {
		l.state = Loaded
	}
}

// MarkFailed records a failed load.
func (l *Lifecycle) MarkFailed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Unloaded {
		l.state = Failed
	}
}

// MarkClosed moves to Closed and reports whether this call did so.
func (l *Lifecycle) MarkClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Closed {
		return false
	}
	l.state = Closed
	return true
}

// Ready returns ErrInference unless the engine is Loaded.
func (l *Lifecycle) Ready(op string) error {
	if s := l.State(); s != Loaded {
		return errors.Newf(errors.ErrInference, op, "engine is %s", s)
	}
	return nil
}
