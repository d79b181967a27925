package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/repositories"
	tsclient "github.com/sidequest/backend/internal/infrastructure/clients/typesense"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

const queryFields = "name,tags,address,summary"

// TypesenseAdapter implements establishment search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.EstablishmentSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Index upserts an establishment
func (a *TypesenseAdapter) Index(ctx context.Context, establishment *entities.Establishment) error {
	if establishment == nil {
		return nil
	}
	_, err := a.client.Client().Collection(tsclient.EstablishmentsCollection).Documents().Upsert(ctx, establishmentDocument(establishment))
	if err != nil {
		return apperrors.NewExternalError("failed to index establishment "+establishment.ID, err)
	}
	return nil
}

// BulkIndex upserts establishments one by one and reports how many failed
func (a *TypesenseAdapter) BulkIndex(ctx context.Context, establishments []*entities.Establishment) error {
	failed := 0
	var lastErr error
	for _, e := range establishments {
		if err := a.Index(ctx, e); err != nil {
			failed++
			lastErr = err
			log.Warn().Err(err).Str("establishment_id", e.ID).Msg("failed to index establishment")
		}
	}
	if failed > 0 {
		return apperrors.NewExternalError(fmt.Sprintf("%d of %d establishments failed to index", failed, len(establishments)), lastErr)
	}
	return nil
}

// Delete removes an establishment from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.EstablishmentsCollection).Document(id).Delete(ctx)
	if err != nil {
		return apperrors.NewExternalError("failed to delete establishment from index", err)
	}
	return nil
}

// Search returns matching establishment ids in relevance order
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.EstablishmentSearchParams) ([]string, error) {
	result, err := a.client.Client().Collection(tsclient.EstablishmentsCollection).Documents().Search(ctx, buildSearchParams(params))
	if err != nil {
		return nil, apperrors.NewExternalError("failed to search establishments", err)
	}
	if result.Hits == nil {
		return []string{}, nil
	}

	ids := make([]string, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func buildSearchParams(params repositories.EstablishmentSearchParams) *api.SearchCollectionParams {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	q := strings.TrimSpace(params.Query)
	if q == "" {
		q = "*"
	}

	sp := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String(queryFields),
		Page:    pointer.Int(params.Offset/limit + 1),
		PerPage: pointer.Int(limit),
	}
	if params.Category != "" {
		sp.FilterBy = pointer.String(fmt.Sprintf("category:=%s", params.Category))
	}
	if q == "*" {
		sp.SortBy = pointer.String("rating:desc")
	}
	return sp
}

func establishmentDocument(e *entities.Establishment) map[string]interface{} {
	return map[string]interface{}{
		"id":                e.ID,
		"name":              e.Name,
		"category":          e.Category,
		"location":          []float64{e.Location.Latitude, e.Location.Longitude},
		"rating":            e.Rating,
		"user_rating_count": e.UserRatingCount,
		"address":           e.Address,
		"summary":           e.Summary,
		"tags":              buildEstablishmentTags(e),
		"updated_at":        e.UpdatedAt.Unix(),
	}
}
