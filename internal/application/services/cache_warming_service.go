package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
)

const defaultWarmPerCategory = 20

// CacheWarmingService loads the establishments a fresh feed session is most
// likely to ask for, so the first replenishments hit the cache. store must be
// the caching store; reading through it is what fills the cache.
type CacheWarmingService struct {
	store       providers.DocumentStore
	chunked     *ChunkedQueryService
	perCategory int
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(store providers.DocumentStore, chunked *ChunkedQueryService, perCategory int) *CacheWarmingService {
	if perCategory <= 0 {
		perCategory = defaultWarmPerCategory
	}
	return &CacheWarmingService{store: store, chunked: chunked, perCategory: perCategory}
}

// WarmCache reads the first page of every category through the cache and
// returns how many establishments were loaded. A failing category is logged
// and skipped.
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	start := time.Now()
	warmed := 0

	for _, category := range entities.Categories {
		docs, err := s.store.Query(ctx, providers.Query{
			Collection: CollectionEstablishments,
			Filters:    []providers.Filter{{Field: "category", Op: providers.OpEqual, Value: category}},
			Limit:      s.perCategory,
		})
		if err != nil {
			if ctx.Err() != nil {
				return warmed, ctx.Err()
			}
			log.Warn().Err(err).Str("category", category).Msg("failed to list establishments for warming")
			continue
		}
		if len(docs) == 0 {
			continue
		}

		ids := make([]string, len(docs))
		for i, doc := range docs {
			ids[i] = doc.ID
		}
		loaded, err := s.chunked.FetchByIDs(ctx, CollectionEstablishments, ids)
		if err != nil {
			if ctx.Err() != nil {
				return warmed, ctx.Err()
			}
			log.Warn().Err(err).Str("category", category).Msg("failed to warm establishments")
			continue
		}
		warmed += len(loaded)
	}

	log.Info().Int("establishments", warmed).Dur("took", time.Since(start)).Msg("cache warming completed")
	return warmed, nil
}
