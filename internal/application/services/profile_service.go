package services

import (
	"context"
	"fmt"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

// ProfileService reads user profiles
type ProfileService struct {
	store   providers.DocumentStore
	chunked *ChunkedQueryService
}

// NewProfileService creates a new profile service
func NewProfileService(store providers.DocumentStore, chunked *ChunkedQueryService) *ProfileService {
	return &ProfileService{store: store, chunked: chunked}
}

// Get returns the profile, or nil if the user has none yet
func (s *ProfileService) Get(ctx context.Context, uid string) (*entities.UserProfile, error) {
	if uid == "" {
		return nil, apperrors.NewValidationError("uid is required")
	}
	doc, err := s.store.Get(ctx, CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return decodeProfile(doc)
}

// GetOrCreate returns the profile, creating an empty one on first sign-in
func (s *ProfileService) GetOrCreate(ctx context.Context, uid, name string) (*entities.UserProfile, error) {
	profile, err := s.Get(ctx, uid)
	if err != nil || profile != nil {
		return profile, err
	}

	profile = entities.NewUserProfile(uid, name)
	data, err := entities.ToDocument(profile)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode profile", err)
	}
	if err := s.store.Set(ctx, CollectionUsers, uid, data); err != nil {
		return nil, err
	}
	return profile, nil
}

// LikedEstablishments resolves the user's liked list
func (s *ProfileService) LikedEstablishments(ctx context.Context, uid string) ([]*entities.Establishment, error) {
	profile, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("profile %s not found", uid))
	}
	return s.chunked.FetchEstablishments(ctx, uniqueIDs(profile.LikedEstablishments))
}

func decodeProfile(doc *providers.Document) (*entities.UserProfile, error) {
	var p entities.UserProfile
	if err := entities.FromDocument(doc.Data, &p); err != nil {
		return nil, apperrors.NewInternalError("failed to decode profile "+doc.ID, err)
	}
	p.UID = doc.ID
	return &p, nil
}

// GetByIDs returns the profiles that exist among uids
func (s *ProfileService) GetByIDs(ctx context.Context, uids []string) ([]*entities.UserProfile, error) {
	docs, err := s.chunked.FetchByIDs(ctx, CollectionUsers, uids)
	if err != nil {
		return nil, err
	}
	profiles := make([]*entities.UserProfile, 0, len(docs))
	for _, doc := range docs {
		p, err := decodeProfile(doc)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
