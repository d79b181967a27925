package handlers

import (
	"context"
	"net/http"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/repositories"
)

// EstablishmentReader loads and searches establishments
type EstablishmentReader interface {
	GetByID(ctx context.Context, id string) (*entities.Establishment, error)
	Search(ctx context.Context, params repositories.EstablishmentSearchParams) ([]*entities.Establishment, error)
}

// Swiper records likes and dislikes outside of a feed session
type Swiper interface {
	Like(ctx context.Context, uid, establishmentID string) error
	Dislike(ctx context.Context, uid, establishmentID string) error
}

// ReviewWriter creates and lists reviews
type ReviewWriter interface {
	Submit(ctx context.Context, uid, establishmentID string, rating int, text string) (*entities.Review, error)
	ListByEstablishment(ctx context.Context, establishmentID string, limit int) ([]*entities.Review, error)
}

// QuestCatalog generates and lists quests for an establishment
type QuestCatalog interface {
	Generate(ctx context.Context, establishmentID string) (*entities.Quest, error)
	ListByEstablishment(ctx context.Context, establishmentID string) ([]*entities.Quest, error)
}

// EstablishmentHandler handles establishment endpoints
type EstablishmentHandler struct {
	establishments EstablishmentReader
	swipes         Swiper
	reviews        ReviewWriter
	quests         QuestCatalog
}

// NewEstablishmentHandler creates a new establishment handler
func NewEstablishmentHandler(establishments EstablishmentReader, swipes Swiper, reviews ReviewWriter, quests QuestCatalog) *EstablishmentHandler {
	return &EstablishmentHandler{
		establishments: establishments,
		swipes:         swipes,
		reviews:        reviews,
		quests:         quests,
	}
}

type reviewRequest struct {
	Rating     int    `json:"rating"`
	ReviewText string `json:"review_text"`
}

// GetEstablishment handles GET /api/establishments/{id}
func (h *EstablishmentHandler) GetEstablishment(w http.ResponseWriter, r *http.Request) {
	establishment, err := h.establishments.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, establishment)
}

// SearchEstablishments handles GET /api/establishments/search?q=&category=
func (h *EstablishmentHandler) SearchEstablishments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20, 50)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	offset := 0
	if r.URL.Query().Has("offset") {
		if offset, err = queryInt(r, "offset", 0, 1000); err != nil {
			respondWithAppError(w, r, err)
			return
		}
	}

	category := r.URL.Query().Get("category")
	if category != "" && !entities.IsValidCategory(category) {
		respondWithError(w, http.StatusBadRequest, "unknown category: "+category)
		return
	}

	results, err := h.establishments.Search(r.Context(), repositories.EstablishmentSearchParams{
		Query:    r.URL.Query().Get("q"),
		Category: category,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if results == nil {
		results = []*entities.Establishment{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// Like handles POST /api/establishments/{id}/like
func (h *EstablishmentHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.swipe(w, r, h.swipes.Like)
}

// Dislike handles POST /api/establishments/{id}/dislike
func (h *EstablishmentHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.swipe(w, r, h.swipes.Dislike)
}

func (h *EstablishmentHandler) swipe(w http.ResponseWriter, r *http.Request, record func(context.Context, string, string) error) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := record(r.Context(), uid, r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListReviews handles GET /api/establishments/{id}/reviews
func (h *EstablishmentHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50, 200)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	reviews, err := h.reviews.ListByEstablishment(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if reviews == nil {
		reviews = []*entities.Review{}
	}
	respondWithJSON(w, http.StatusOK, reviews)
}

// SubmitReview handles POST /api/establishments/{id}/reviews
func (h *EstablishmentHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	review, err := h.reviews.Submit(r.Context(), uid, r.PathValue("id"), req.Rating, req.ReviewText)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, review)
}

// ListQuests handles GET /api/establishments/{id}/quests
func (h *EstablishmentHandler) ListQuests(w http.ResponseWriter, r *http.Request) {
	quests, err := h.quests.ListByEstablishment(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if quests == nil {
		quests = []*entities.Quest{}
	}
	respondWithJSON(w, http.StatusOK, quests)
}

// GenerateQuest handles POST /api/establishments/{id}/quests
func (h *EstablishmentHandler) GenerateQuest(w http.ResponseWriter, r *http.Request) {
	quest, err := h.quests.Generate(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, quest)
}
