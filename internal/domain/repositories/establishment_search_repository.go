package repositories

import (
	"context"

	"github.com/sidequest/backend/internal/domain/entities"
)

// EstablishmentSearchRepository defines text search over establishments (e.g. Typesense)
type EstablishmentSearchRepository interface {
	// Search returns matching establishment ids in relevance order
	Search(ctx context.Context, params EstablishmentSearchParams) ([]string, error)

	// Index upserts an establishment into the search index
	Index(ctx context.Context, establishment *entities.Establishment) error

	// BulkIndex upserts many establishments
	BulkIndex(ctx context.Context, establishments []*entities.Establishment) error

	// Delete removes an establishment from the index
	Delete(ctx context.Context, id string) error
}

// EstablishmentSearchParams defines establishment search parameters
type EstablishmentSearchParams struct {
	Query    string
	Category string
	Limit    int
	Offset   int
}
