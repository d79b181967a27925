package handlers

import (
	"context"
	"net/http"

	"github.com/sidequest/backend/internal/application/loaders"
	"github.com/sidequest/backend/internal/domain/entities"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

// ProfileReader reads the caller's profile
type ProfileReader interface {
	GetOrCreate(ctx context.Context, uid, name string) (*entities.UserProfile, error)
	LikedEstablishments(ctx context.Context, uid string) ([]*entities.Establishment, error)
}

// ReviewLister lists a user's own reviews
type ReviewLister interface {
	ListByUser(ctx context.Context, uid string, limit int) ([]*entities.Review, error)
}

// ProfileMutator applies social and quest mutations to profiles
type ProfileMutator interface {
	SendFriendRequest(ctx context.Context, from, to string) error
	AcceptFriendRequest(ctx context.Context, self, other string) error
	CompleteQuest(ctx context.Context, uid, questID string) (bool, error)
}

// ProfileHandler handles the caller's profile, friends and quest progress
type ProfileHandler struct {
	profiles  ProfileReader
	reviews   ReviewLister
	mutations ProfileMutator
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles ProfileReader, reviews ReviewLister, mutations ProfileMutator) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, reviews: reviews, mutations: mutations}
}

type friendRequest struct {
	ToUID string `json:"to_uid"`
}

type friendSummary struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// GetProfile handles GET /api/profile. The first call creates the profile.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.GetOrCreate(r.Context(), uid, r.URL.Query().Get("name"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

// GetLiked handles GET /api/profile/liked
func (h *ProfileHandler) GetLiked(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	liked, err := h.profiles.LikedEstablishments(r.Context(), uid)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if liked == nil {
		liked = []*entities.Establishment{}
	}
	respondWithJSON(w, http.StatusOK, liked)
}

// GetReviews handles GET /api/profile/reviews. Establishments are resolved
// in one batch through the request's dataloader.
func (h *ProfileHandler) GetReviews(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 50, 200)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	reviews, err := h.reviews.ListByUser(r.Context(), uid, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	byID := map[string]*entities.Establishment{}
	if l := loaders.For(r.Context()); l != nil && len(reviews) > 0 {
		ids := make([]string, len(reviews))
		for i, review := range reviews {
			ids[i] = review.EstablishmentID
		}
		establishments, err := l.LoadEstablishments(r.Context(), ids)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		for _, e := range establishments {
			byID[e.ID] = e
		}
	}

	out := make([]entities.ReviewWithEstablishment, len(reviews))
	for i, review := range reviews {
		out[i] = entities.ReviewWithEstablishment{Review: review, Establishment: byID[review.EstablishmentID]}
	}
	respondWithJSON(w, http.StatusOK, out)
}

// ListFriends handles GET /api/friends
func (h *ProfileHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.GetOrCreate(r.Context(), uid, "")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	friends := []friendSummary{}
	if l := loaders.For(r.Context()); l != nil && len(profile.Friends) > 0 {
		profiles, err := l.LoadProfiles(r.Context(), profile.Friends)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		for _, p := range profiles {
			friends = append(friends, friendSummary{UID: p.UID, Name: p.Name, Level: p.Level})
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"friends":           friends,
		"incoming_requests": profile.IncomingRequests,
	})
}

// SendFriendRequest handles POST /api/friends/requests
func (h *ProfileHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req friendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.mutations.SendFriendRequest(r.Context(), uid, req.ToUID); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AcceptFriendRequest handles POST /api/friends/requests/{uid}/accept.
// A partially applied accept answers 202; repeating the call completes it.
func (h *ProfileHandler) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.mutations.AcceptFriendRequest(r.Context(), uid, r.PathValue("uid")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteQuest handles POST /api/quests/{id}/complete
func (h *ProfileHandler) CompleteQuest(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	questID := r.PathValue("id")
	if questID == "" {
		respondWithAppError(w, r, apperrors.NewValidationError("quest id is required"))
		return
	}

	flipped, err := h.mutations.CompleteQuest(r.Context(), uid, questID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"quest_id":        questID,
		"completed":       true,
		"newly_completed": flipped,
	})
}
