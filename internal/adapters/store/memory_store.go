package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sidequest/backend/internal/domain/providers"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

// Store operation names reported by MemoryStore.Calls
const (
	OpGet      = "get"
	OpSet      = "set"
	OpUpdate   = "update"
	OpQuery    = "query"
	OpQueryIn  = "query_in"
	OpBatchSet = "batch_set"
)

// MemoryStore is an in-process DocumentStore. Queries return documents
// ordered by id, and QueryIn enforces the same IN limit as Firestore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
	calls       map[string]int
	failures    map[string]error
}

// NewMemoryStore creates an empty in-memory document store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]interface{}),
		calls:       make(map[string]int),
		failures:    make(map[string]error),
	}
}

// Calls returns how many times an operation has been invoked
func (s *MemoryStore) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// ResetCalls zeroes the call counters
func (s *MemoryStore) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// FailWith makes every later call to op return err; nil clears it
func (s *MemoryStore) FailWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *MemoryStore) begin(ctx context.Context, op string) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return apperrors.NewStoreTimeoutError(op+" cancelled", err)
	}
	return s.failures[op]
}

// Get fetches one document
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*providers.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpGet); err != nil {
		return nil, err
	}

	data, ok := s.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return &providers.Document{ID: id, Data: CloneData(data)}, nil
}

// Set creates or replaces a document
func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpSet); err != nil {
		return err
	}

	s.put(collection, id, data)
	return nil
}

// Update applies field updates to an existing document
func (s *MemoryStore) Update(ctx context.Context, collection, id string, updates []providers.FieldUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpUpdate); err != nil {
		return err
	}

	current, ok := s.collections[collection][id]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s/%s not found", collection, id))
	}

	next := CloneData(current)
	if err := ApplyUpdates(next, updates); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	s.collections[collection][id] = next
	return nil
}

// Query runs a predicate query
func (s *MemoryStore) Query(ctx context.Context, q providers.Query) ([]*providers.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpQuery); err != nil {
		return nil, err
	}

	return s.scan(q.Collection, q.Filters, q.Limit), nil
}

// QueryIn returns documents whose field matches one of ids
func (s *MemoryStore) QueryIn(ctx context.Context, collection, field string, ids []string) ([]*providers.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpQueryIn); err != nil {
		return nil, err
	}
	if len(ids) > providers.MaxInClauseSize {
		return nil, apperrors.NewValidationError(fmt.Sprintf("IN query supports at most %d values, got %d", providers.MaxInClauseSize, len(ids)))
	}
	if len(ids) == 0 {
		return []*providers.Document{}, nil
	}

	return s.scan(collection, []providers.Filter{{Field: field, Op: providers.OpIn, Value: ids}}, 0), nil
}

// BatchSet writes many documents in one step
func (s *MemoryStore) BatchSet(ctx context.Context, writes []providers.BatchWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpBatchSet); err != nil {
		return err
	}

	for _, w := range writes {
		s.put(w.Collection, w.ID, w.Data)
	}
	return nil
}

func (s *MemoryStore) put(collection, id string, data map[string]interface{}) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]map[string]interface{})
		s.collections[collection] = docs
	}
	docs[id] = CloneData(data)
}

func (s *MemoryStore) scan(collection string, filters []providers.Filter, limit int) []*providers.Document {
	docs := s.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*providers.Document, 0)
	for _, id := range ids {
		doc := &providers.Document{ID: id, Data: docs[id]}
		if !MatchesFilters(doc, filters) {
			continue
		}
		out = append(out, &providers.Document{ID: id, Data: CloneData(docs[id])})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
