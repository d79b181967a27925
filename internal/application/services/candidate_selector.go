package services

import (
	"context"
	"time"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/observability"
)

// CandidateSelector picks the next establishments a user has not seen yet
type CandidateSelector struct {
	store   providers.DocumentStore
	metrics *observability.Metrics
}

// NewCandidateSelector creates a new candidate selector
func NewCandidateSelector(store providers.DocumentStore, metrics *observability.Metrics) *CandidateSelector {
	return &CandidateSelector{store: store, metrics: metrics}
}

// SelectCandidates returns up to limit establishments in category whose id is
// not in excludeIDs, in store order. An empty category matches everything.
//
// Exclusion sets that fit in one IN clause are not pushed to the store; larger
// ones over-fetch by the exclusion size and filter client-side, which can
// under-fill. Fewer than limit results is a normal outcome.
func (s *CandidateSelector) SelectCandidates(ctx context.Context, excludeIDs []string, limit int, category string) ([]*entities.Establishment, error) {
	if limit <= 0 {
		return []*entities.Establishment{}, nil
	}

	ctx, span := observability.StartSpan(ctx, "CandidateSelector.SelectCandidates")
	defer span.End()

	exclude := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude[id] = struct{}{}
	}

	large := len(exclude) > providers.MaxInClauseSize
	queryLimit := limit
	if large {
		queryLimit = limit + len(exclude)
	}

	q := providers.Query{Collection: CollectionEstablishments, Limit: queryLimit}
	if category != "" {
		q.Filters = []providers.Filter{{Field: "category", Op: providers.OpEqual, Value: category}}
	}

	start := time.Now()
	docs, err := s.store.Query(ctx, q)
	observability.RecordDBMetric(ctx, s.metrics, "select_candidates", time.Since(start))
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	candidates := make([]*entities.Establishment, 0, limit)
	dropped := 0
	for _, doc := range docs {
		if _, skip := exclude[doc.ID]; skip {
			dropped++
			continue
		}
		e, err := decodeEstablishment(doc)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, e)
		if len(candidates) == limit {
			break
		}
	}

	if dropped > 0 {
		observability.RecordCandidateDrops(ctx, s.metrics, category, dropped)
		if !large {
			// Small exclusion sets are not filtered by the store, so a hit here
			// means the caller's batch will come back short.
			observability.LoggerFromContext(ctx).Debug().
				Int("dropped", dropped).
				Int("limit", limit).
				Str("category", category).
				Msg("excluded candidates returned by unfiltered query")
		}
	}

	return candidates, nil
}
