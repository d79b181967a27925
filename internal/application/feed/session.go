package feed

import (
	"context"
	"sync"
	"time"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/observability"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

// CandidateSource returns establishments the user has not seen
type CandidateSource interface {
	SelectCandidates(ctx context.Context, excludeIDs []string, limit int, category string) ([]*entities.Establishment, error)
}

// ProfileReader loads the profile whose liked and disliked lists are excluded
type ProfileReader interface {
	Get(ctx context.Context, uid string) (*entities.UserProfile, error)
}

// SwipeRecorder persists swipe decisions
type SwipeRecorder interface {
	Like(ctx context.Context, uid, establishmentID string) error
	Dislike(ctx context.Context, uid, establishmentID string) error
}

// Options tunes a session
type Options struct {
	BatchSize        int
	LowWaterMark     int
	ReplenishTimeout time.Duration
}

// DefaultOptions returns the standard feed tuning
func DefaultOptions() Options {
	return Options{
		BatchSize:        10,
		LowWaterMark:     2,
		ReplenishTimeout: 10 * time.Second,
	}
}

// ErrSessionClosed is returned by operations on a disposed session
var ErrSessionClosed = apperrors.NewNotFoundError("feed session closed")

// Session owns one user's feed queue. All state changes go through Reduce
// under mu. The reducer only emits a Replenish effect on the transition into
// Loading, so at most one fetch is in flight at a time.
type Session struct {
	id       string
	uid      string
	category string
	opts     Options

	source   CandidateSource
	profiles ProfileReader
	swipes   SwipeRecorder
	metrics  *observability.Metrics

	mu         sync.Mutex
	state      State
	lastActive time.Time
	// inflight is closed when the current replenishment has been applied
	inflight chan struct{}
}

// NewSession creates a session; call Open to start loading
func NewSession(id, uid, category string, opts Options, source CandidateSource, profiles ProfileReader, swipes SwipeRecorder, metrics *observability.Metrics) *Session {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.ReplenishTimeout <= 0 {
		opts.ReplenishTimeout = DefaultOptions().ReplenishTimeout
	}
	return &Session{
		id:         id,
		uid:        uid,
		category:   category,
		opts:       opts,
		source:     source,
		profiles:   profiles,
		swipes:     swipes,
		metrics:    metrics,
		state:      NewState(opts.LowWaterMark),
		lastActive: time.Now(),
	}
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// UserID returns the owning uid
func (s *Session) UserID() string { return s.uid }

// Category returns the category filter, empty for all
func (s *Session) Category() string { return s.category }

// Snapshot returns the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActive returns when the session was last used
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Open starts the first replenishment
func (s *Session) Open() {
	s.dispatch(Opened{})
}

// NextBatch pops up to n items. When the queue is empty and a replenishment
// is in flight it waits for it, bounded by ctx. An exhausted session returns
// nothing without touching the store.
func (s *Session) NextBatch(ctx context.Context, n int) ([]*entities.Establishment, State, error) {
	if n <= 0 {
		n = 1
	}

	items, state := s.pop(n)
	if state.Closed {
		return nil, state, ErrSessionClosed
	}
	if len(items) == 0 && state.Loading {
		if err := s.Wait(ctx); err != nil {
			return nil, s.Snapshot(), err
		}
		items, state = s.pop(n)
	}
	return items, state, nil
}

// OnSwipe records a like or dislike, then drops the establishment from the
// head of the queue if it is still there. The head check and the pop are one
// reducer step, so a concurrent NextBatch cannot make it drop another item.
func (s *Session) OnSwipe(ctx context.Context, establishmentID string, liked bool) (State, error) {
	if s.Snapshot().Closed {
		return s.Snapshot(), ErrSessionClosed
	}

	var err error
	if liked {
		err = s.swipes.Like(ctx, s.uid, establishmentID)
	} else {
		err = s.swipes.Dislike(ctx, s.uid, establishmentID)
	}
	if err != nil {
		return s.Snapshot(), err
	}

	s.dispatch(Swiped{ID: establishmentID})
	return s.Snapshot(), nil
}

// Retry clears exhaustion or a failed load and refills if needed
func (s *Session) Retry() State {
	s.dispatch(Retried{})
	return s.Snapshot()
}

// Close disposes the session. Results of an in-flight load are discarded.
func (s *Session) Close() {
	s.dispatch(Closed{})
}

// Wait blocks until the in-flight replenishment, if any, has been applied
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.inflight
	loading := s.state.Loading
	s.mu.Unlock()
	if !loading || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) pop(n int) ([]*entities.Establishment, State) {
	eff := s.dispatch(Popped{N: n})
	return eff.Popped, s.Snapshot()
}

func (s *Session) dispatch(ev Event) Effect {
	s.mu.Lock()
	next, eff := Reduce(s.state, ev)
	s.state = next
	s.lastActive = time.Now()
	var done chan struct{}
	var exclude []string
	if eff.Replenish {
		done = make(chan struct{})
		s.inflight = done
		exclude = next.SeenIDs()
	}
	s.mu.Unlock()

	if eff.Replenish {
		go s.replenish(done, exclude)
	}
	return eff
}

// replenish fetches one batch and applies it, then releases waiters
func (s *Session) replenish(done chan struct{}, exclude []string) {
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ReplenishTimeout)
	defer cancel()
	logger := observability.LoggerFromContext(ctx).With().
		Str("session_id", s.id).
		Str("uid", s.uid).
		Str("category", s.category).
		Logger()

	items, err := s.fetch(ctx, exclude)
	if err != nil {
		if ctx.Err() != nil && !apperrors.IsType(err, apperrors.ErrorTypeStoreTimeout) {
			err = apperrors.NewStoreTimeoutError("feed replenishment timed out", err)
		}
		eff := s.dispatch(ReplenishFailed{Err: err})
		outcome := "error"
		if eff.Discarded {
			outcome = "discarded"
		}
		observability.RecordFeedReplenish(ctx, s.metrics, outcome, 0)
		logger.Warn().Err(err).Msg("feed replenishment failed")
		return
	}

	eff := s.dispatch(ReplenishSucceeded{Items: items})
	switch {
	case eff.Discarded:
		observability.RecordFeedReplenish(ctx, s.metrics, "discarded", 0)
	case eff.Added == 0:
		observability.RecordFeedReplenish(ctx, s.metrics, "empty", 0)
		logger.Debug().Msg("feed source returned nothing new")
	default:
		observability.RecordFeedReplenish(ctx, s.metrics, "ok", eff.Added)
	}
}

func (s *Session) fetch(ctx context.Context, seen []string) ([]*entities.Establishment, error) {
	exclude := seen
	if s.profiles != nil {
		profile, err := s.profiles.Get(ctx, s.uid)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			exclude = uniqueIDs(append(exclude, profile.InteractedIDs()...))
		}
	}

	// The selector does not filter exclusion sets that fit in one IN clause,
	// so every excluded id may come back. Ask for enough to cover them.
	limit := s.opts.BatchSize
	if len(exclude) <= providers.MaxInClauseSize {
		limit += len(exclude)
	}

	items, err := s.source.SelectCandidates(ctx, exclude, limit, s.category)
	if err != nil {
		return nil, err
	}
	if len(items) > s.opts.BatchSize {
		items = items[:s.opts.BatchSize]
	}
	return items, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
