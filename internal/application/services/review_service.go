package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

const maxReviewTextLength = 2000

// reviewNamespace scopes the name-based review ids
var reviewNamespace = uuid.MustParse("6f1c7a52-3b8e-4f5e-9d0a-2c4b1e7f8a90")

// ReviewID returns the id of the single review a user may hold for an establishment
func ReviewID(uid, establishmentID string) string {
	return uuid.NewSHA1(reviewNamespace, []byte(uid+"/"+establishmentID)).String()
}

// ReviewService handles establishment reviews
type ReviewService struct {
	store providers.DocumentStore
}

// NewReviewService creates a new review service
func NewReviewService(store providers.DocumentStore) *ReviewService {
	return &ReviewService{store: store}
}

// Submit creates the user's review of an establishment or replaces the one
// they already have.
func (s *ReviewService) Submit(ctx context.Context, uid, establishmentID string, rating int, text string) (*entities.Review, error) {
	if uid == "" || establishmentID == "" {
		return nil, apperrors.NewValidationError("uid and establishment id are required")
	}
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5")
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > maxReviewTextLength {
		return nil, apperrors.NewValidationError(fmt.Sprintf("review text exceeds %d characters", maxReviewTextLength))
	}

	est, err := s.store.Get(ctx, CollectionEstablishments, establishmentID)
	if err != nil {
		return nil, err
	}
	if est == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("establishment %s not found", establishmentID))
	}

	id := ReviewID(uid, establishmentID)
	now := time.Now().UTC()

	existing, err := s.store.Get(ctx, CollectionReviews, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		review, err := decodeReview(existing)
		if err != nil {
			return nil, err
		}
		if err := s.store.Update(ctx, CollectionReviews, id, []providers.FieldUpdate{
			providers.Set("rating", rating),
			providers.Set("reviewText", text),
			providers.Set("updatedAt", now),
		}); err != nil {
			return nil, err
		}
		review.Rating = rating
		review.ReviewText = text
		review.UpdatedAt = now
		return review, nil
	}

	review := &entities.Review{
		ID:              id,
		UserID:          uid,
		EstablishmentID: establishmentID,
		Rating:          rating,
		ReviewText:      text,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	data, err := entities.ToDocument(review)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode review", err)
	}
	if err := s.store.Set(ctx, CollectionReviews, id, data); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, CollectionUsers, uid, []providers.FieldUpdate{
		providers.ArrayUnion(entities.FieldReviews, id),
	}); err != nil {
		return nil, err
	}
	return review, nil
}

// ListByEstablishment returns reviews for an establishment
func (s *ReviewService) ListByEstablishment(ctx context.Context, establishmentID string, limit int) ([]*entities.Review, error) {
	return s.list(ctx, "establishmentId", establishmentID, limit)
}

// ListByUser returns the reviews a user has written
func (s *ReviewService) ListByUser(ctx context.Context, uid string, limit int) ([]*entities.Review, error) {
	return s.list(ctx, "userId", uid, limit)
}

func (s *ReviewService) list(ctx context.Context, field, value string, limit int) ([]*entities.Review, error) {
	if value == "" {
		return nil, apperrors.NewValidationError(field + " is required")
	}
	docs, err := s.store.Query(ctx, providers.Query{
		Collection: CollectionReviews,
		Filters:    []providers.Filter{{Field: field, Op: providers.OpEqual, Value: value}},
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	reviews := make([]*entities.Review, 0, len(docs))
	for _, doc := range docs {
		r, err := decodeReview(doc)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

func decodeReview(doc *providers.Document) (*entities.Review, error) {
	var r entities.Review
	if err := entities.FromDocument(doc.Data, &r); err != nil {
		return nil, apperrors.NewInternalError("failed to decode review "+doc.ID, err)
	}
	r.ID = doc.ID
	return &r, nil
}
