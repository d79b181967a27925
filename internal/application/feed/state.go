// Package feed serves a per-session queue of candidate establishments to a
// swiping client and refills it in the background.
package feed

import (
	"github.com/sidequest/backend/internal/domain/entities"
)

// Phase is the externally visible state of a feed session
type Phase string

const (
	PhaseEmpty     Phase = "empty"
	PhaseLoading   Phase = "loading"
	PhaseReady     Phase = "ready"
	PhaseDraining  Phase = "draining"
	PhaseExhausted Phase = "exhausted"
	PhaseClosed    Phase = "closed"
)

// State is an immutable snapshot of a session. Reduce never mutates the
// State it is given.
type State struct {
	Queue        []*entities.Establishment
	Seen         map[string]struct{}
	LowWaterMark int
	Loading      bool
	// SourceDry is set when a replenishment brought nothing new; the session
	// reaches PhaseExhausted once the queue drains.
	SourceDry bool
	Closed    bool
	LastErr   error
}

// NewState returns the initial state of a session
func NewState(lowWaterMark int) State {
	return State{
		Queue:        []*entities.Establishment{},
		Seen:         map[string]struct{}{},
		LowWaterMark: lowWaterMark,
	}
}

// Phase derives the session phase from the snapshot
func (s State) Phase() Phase {
	switch {
	case s.Closed:
		return PhaseClosed
	case s.Loading && len(s.Queue) < s.LowWaterMark:
		return PhaseLoading
	case len(s.Queue) == 0 && s.SourceDry:
		return PhaseExhausted
	case len(s.Queue) == 0:
		return PhaseEmpty
	case len(s.Queue) < s.LowWaterMark:
		return PhaseDraining
	default:
		return PhaseReady
	}
}

// SeenIDs lists every id ever queued in this session
func (s State) SeenIDs() []string {
	ids := make([]string, 0, len(s.Seen))
	for id := range s.Seen {
		ids = append(ids, id)
	}
	return ids
}

// Event is an input to Reduce
type Event interface {
	isEvent()
}

// Opened starts the first load
type Opened struct{}

// Popped removes up to N items from the head of the queue
type Popped struct {
	N int
}

// Swiped removes ID from the head of the queue if it is the head
type Swiped struct {
	ID string
}

// ReplenishSucceeded delivers a candidate batch
type ReplenishSucceeded struct {
	Items []*entities.Establishment
}

// ReplenishFailed reports a failed candidate fetch
type ReplenishFailed struct {
	Err error
}

// Retried asks an exhausted or failed session to try loading again
type Retried struct{}

// Closed disposes the session
type Closed struct{}

func (Opened) isEvent()             {}
func (Popped) isEvent()             {}
func (Swiped) isEvent()             {}
func (ReplenishSucceeded) isEvent() {}
func (ReplenishFailed) isEvent()    {}
func (Retried) isEvent()            {}
func (Closed) isEvent()             {}

// Effect tells the session what to do after a transition
type Effect struct {
	// Replenish starts a background candidate fetch
	Replenish bool
	// Popped holds the items removed by a Popped event
	Popped []*entities.Establishment
	// Added is how many new items a replenishment appended
	Added int
	// Discarded is set when a result arrived for a closed session
	Discarded bool
}

// Reduce applies an event to a state and returns the next state and the
// effect the caller must carry out.
func Reduce(s State, ev Event) (State, Effect) {
	switch e := ev.(type) {
	case Opened:
		if s.Closed || s.Loading {
			return s, Effect{}
		}
		s.Loading = true
		return s, Effect{Replenish: true}

	case Popped:
		if s.Closed || e.N <= 0 {
			return s, Effect{}
		}
		n := e.N
		if n > len(s.Queue) {
			n = len(s.Queue)
		}
		popped := s.Queue[:n:n]
		s.Queue = s.Queue[n:]
		replenish := startLoadingIfLow(&s)
		return s, Effect{Popped: popped, Replenish: replenish}

	case Swiped:
		if s.Closed || len(s.Queue) == 0 || s.Queue[0].ID != e.ID {
			return s, Effect{}
		}
		popped := s.Queue[:1:1]
		s.Queue = s.Queue[1:]
		replenish := startLoadingIfLow(&s)
		return s, Effect{Popped: popped, Replenish: replenish}

	case ReplenishSucceeded:
		if s.Closed {
			return s, Effect{Discarded: true}
		}
		s.Loading = false
		s.LastErr = nil

		fresh := make([]*entities.Establishment, 0, len(e.Items))
		seen := make(map[string]struct{}, len(s.Seen)+len(e.Items))
		for id := range s.Seen {
			seen[id] = struct{}{}
		}
		for _, item := range e.Items {
			if item == nil {
				continue
			}
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			fresh = append(fresh, item)
		}
		s.Seen = seen
		// only a dry response onto an empty queue ends the feed
		if len(fresh) == 0 && len(s.Queue) == 0 {
			s.SourceDry = true
		}

		queue := make([]*entities.Establishment, 0, len(s.Queue)+len(fresh))
		queue = append(queue, s.Queue...)
		s.Queue = append(queue, fresh...)
		return s, Effect{Added: len(fresh)}

	case ReplenishFailed:
		if s.Closed {
			return s, Effect{Discarded: true}
		}
		s.Loading = false
		s.LastErr = e.Err
		return s, Effect{}

	case Retried:
		if s.Closed || s.Loading {
			return s, Effect{}
		}
		s.SourceDry = false
		s.LastErr = nil
		replenish := startLoadingIfLow(&s)
		return s, Effect{Replenish: replenish}

	case Closed:
		if s.Closed {
			return s, Effect{}
		}
		s.Closed = true
		s.Loading = false
		s.Queue = []*entities.Establishment{}
		return s, Effect{}
	}
	return s, Effect{}
}

// startLoadingIfLow flips next into Loading when the queue is below the low
// water mark and nothing blocks a refill.
func startLoadingIfLow(next *State) bool {
	if next.Loading || next.SourceDry || next.LastErr != nil || next.Closed {
		return false
	}
	if len(next.Queue) >= next.LowWaterMark {
		return false
	}
	next.Loading = true
	return true
}
