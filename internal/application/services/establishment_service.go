package services

import (
	"context"
	"fmt"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/domain/repositories"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

// EstablishmentService serves establishment lookups and text search
type EstablishmentService struct {
	store   providers.DocumentStore
	chunked *ChunkedQueryService
	search  repositories.EstablishmentSearchRepository
}

// NewEstablishmentService creates a new establishment service. search may be nil.
func NewEstablishmentService(store providers.DocumentStore, chunked *ChunkedQueryService, search repositories.EstablishmentSearchRepository) *EstablishmentService {
	return &EstablishmentService{store: store, chunked: chunked, search: search}
}

// GetByID returns one establishment
func (s *EstablishmentService) GetByID(ctx context.Context, id string) (*entities.Establishment, error) {
	doc, err := s.store.Get(ctx, CollectionEstablishments, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("establishment %s not found", id))
	}
	return decodeEstablishment(doc)
}

// GetByIDs returns establishments for ids; missing ids are skipped
func (s *EstablishmentService) GetByIDs(ctx context.Context, ids []string) ([]*entities.Establishment, error) {
	return s.chunked.FetchEstablishments(ctx, ids)
}

// Search runs a text search and hydrates the hits in relevance order
func (s *EstablishmentService) Search(ctx context.Context, params repositories.EstablishmentSearchParams) ([]*entities.Establishment, error) {
	if s.search == nil {
		return nil, apperrors.NewExternalError("search is not configured", nil)
	}
	if params.Limit <= 0 || params.Limit > 50 {
		params.Limit = 20
	}

	ids, err := s.search.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	found, err := s.chunked.FetchEstablishments(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entities.Establishment, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	ordered := make([]*entities.Establishment, 0, len(found))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			ordered = append(ordered, e)
		}
	}
	return ordered, nil
}
