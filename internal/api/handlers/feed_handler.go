package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sidequest/backend/internal/application/feed"
	"github.com/sidequest/backend/internal/domain/entities"
)

const (
	defaultFeedBatch = 10
	maxFeedBatch     = 50
	// bounds how long GET next holds the request while a load is in flight
	defaultNextBatchWait = 8 * time.Second
)

// FeedSessions is the subset of feed.Manager the handler needs
type FeedSessions interface {
	Open(ctx context.Context, uid, category string) (*feed.Session, error)
	Get(id, uid string) (*feed.Session, error)
	Close(id, uid string) error
}

// FeedHandler serves swipe feed sessions
type FeedHandler struct {
	sessions FeedSessions
	wait     time.Duration
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(sessions FeedSessions) *FeedHandler {
	return &FeedHandler{sessions: sessions, wait: defaultNextBatchWait}
}

type openSessionRequest struct {
	Category string `json:"category"`
}

type swipeRequest struct {
	EstablishmentID string `json:"establishment_id"`
	Liked           bool   `json:"liked"`
}

type feedResponse struct {
	SessionID string                    `json:"session_id"`
	State     feed.Phase                `json:"state"`
	Items     []*entities.Establishment `json:"items"`
	Queued    int                       `json:"queued"`
	Error     string                    `json:"error,omitempty"`
}

func newFeedResponse(session *feed.Session, state feed.State, items []*entities.Establishment) feedResponse {
	if items == nil {
		items = []*entities.Establishment{}
	}
	resp := feedResponse{
		SessionID: session.ID(),
		State:     state.Phase(),
		Items:     items,
		Queued:    len(state.Queue),
	}
	if state.LastErr != nil {
		resp.Error = "candidate load failed, retry the session"
	}
	return resp
}

// OpenSession handles POST /api/feed/sessions
func (h *FeedHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req openSessionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.sessions.Open(r.Context(), uid, req.Category)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	items, state, err := h.nextBatch(r, session, defaultFeedBatch)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, newFeedResponse(session, state, items))
}

// NextBatch handles GET /api/feed/sessions/{id}/next?n=
func (h *FeedHandler) NextBatch(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	n, err := queryInt(r, "n", defaultFeedBatch, maxFeedBatch)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	items, state, err := h.nextBatch(r, session, n)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newFeedResponse(session, state, items))
}

// Swipe handles POST /api/feed/sessions/{id}/swipe
func (h *FeedHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req swipeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EstablishmentID == "" {
		respondWithError(w, http.StatusBadRequest, "establishment_id is required")
		return
	}

	state, err := session.OnSwipe(r.Context(), req.EstablishmentID, req.Liked)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newFeedResponse(session, state, nil))
}

// Retry handles POST /api/feed/sessions/{id}/retry
func (h *FeedHandler) Retry(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if session.Snapshot().Closed {
		respondWithAppError(w, r, feed.ErrSessionClosed)
		return
	}
	respondWithJSON(w, http.StatusAccepted, newFeedResponse(session, session.Retry(), nil))
}

// CloseSession handles DELETE /api/feed/sessions/{id}
func (h *FeedHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Close(r.PathValue("id"), uid); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FeedHandler) session(w http.ResponseWriter, r *http.Request) (*feed.Session, bool) {
	uid, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	session, err := h.sessions.Get(r.PathValue("id"), uid)
	if err != nil {
		respondWithAppError(w, r, err)
		return nil, false
	}
	return session, true
}

// nextBatch waits a bounded time for an in-flight load. Running out of time
// is not an error: the client gets an empty batch in the loading state.
func (h *FeedHandler) nextBatch(r *http.Request, session *feed.Session, n int) ([]*entities.Establishment, feed.State, error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.wait)
	defer cancel()

	items, state, err := session.NextBatch(ctx, n)
	if errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil {
		return nil, session.Snapshot(), nil
	}
	return items, state, err
}
