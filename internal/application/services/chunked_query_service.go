package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/observability"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

// ChunkedQueryService fetches documents by id lists of any length by
// splitting them into store-legal IN queries that run in parallel.
type ChunkedQueryService struct {
	store   providers.DocumentStore
	metrics *observability.Metrics
}

// NewChunkedQueryService creates a new chunked query service
func NewChunkedQueryService(store providers.DocumentStore, metrics *observability.Metrics) *ChunkedQueryService {
	return &ChunkedQueryService{store: store, metrics: metrics}
}

// ChunkIDs partitions ids into consecutive chunks of at most size elements
func ChunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = providers.MaxInClauseSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// FetchByIDs returns the documents of collection whose id is in ids.
// ids are chunked as given, so N ids always cost ceil(N/10) store calls;
// callers that may hold duplicates de-duplicate first. Results are
// concatenated in chunk order; order inside a chunk is whatever the store
// returns. Missing ids are skipped. If any chunk fails the whole call fails
// and no partial result is returned.
func (s *ChunkedQueryService) FetchByIDs(ctx context.Context, collection string, ids []string) ([]*providers.Document, error) {
	if len(ids) == 0 {
		return []*providers.Document{}, nil
	}
	for _, id := range ids {
		if id == "" {
			return nil, apperrors.NewValidationError("document ids must not be empty")
		}
	}

	ctx, span := observability.StartSpan(ctx, "ChunkedQueryService.FetchByIDs")
	defer span.End()

	chunks := ChunkIDs(ids, providers.MaxInClauseSize)
	results := make([][]*providers.Document, len(chunks))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			docs, err := s.store.QueryIn(gctx, collection, providers.FieldDocumentID, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
			}
			results[i] = docs
			return nil
		})
	}
	err := g.Wait()
	observability.RecordDBMetric(ctx, s.metrics, "fetch_by_ids", time.Since(start))
	if err != nil {
		observability.RecordError(span, err)
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("collection", collection).
			Int("ids", len(ids)).
			Int("chunks", len(chunks)).
			Msg("chunked fetch failed")
		return nil, err
	}

	out := make([]*providers.Document, 0, len(ids))
	for _, docs := range results {
		out = append(out, docs...)
	}
	return out, nil
}

// FetchEstablishments resolves establishment ids through FetchByIDs
func (s *ChunkedQueryService) FetchEstablishments(ctx context.Context, ids []string) ([]*entities.Establishment, error) {
	docs, err := s.FetchByIDs(ctx, CollectionEstablishments, ids)
	if err != nil {
		return nil, err
	}
	return decodeEstablishments(docs)
}

// uniqueIDs drops empty and repeated ids, keeping first-seen order
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func decodeEstablishments(docs []*providers.Document) ([]*entities.Establishment, error) {
	out := make([]*entities.Establishment, 0, len(docs))
	for _, doc := range docs {
		e, err := decodeEstablishment(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeEstablishment(doc *providers.Document) (*entities.Establishment, error) {
	var e entities.Establishment
	if err := entities.FromDocument(doc.Data, &e); err != nil {
		return nil, fmt.Errorf("establishment %s: %w", doc.ID, err)
	}
	e.ID = doc.ID
	return &e, nil
}
