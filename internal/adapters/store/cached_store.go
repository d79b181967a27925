package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/observability"
)

// documentTTL is how long a cached document lives, in seconds
const documentTTL = 300

// CachedStore puts a read-through cache in front of a DocumentStore for
// read-mostly collections. Writes through this store evict the cached copy.
type CachedStore struct {
	providers.DocumentStore
	cache       providers.CacheProvider
	collections map[string]struct{}
	metrics     *observability.Metrics
}

// NewCachedStore wraps store; only the named collections are cached
func NewCachedStore(store providers.DocumentStore, cache providers.CacheProvider, metrics *observability.Metrics, collections ...string) *CachedStore {
	set := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		set[c] = struct{}{}
	}
	return &CachedStore{
		DocumentStore: store,
		cache:         cache,
		collections:   set,
		metrics:       metrics,
	}
}

func documentCacheKey(collection, id string) string {
	return fmt.Sprintf("doc:%s:%s", collection, id)
}

func (s *CachedStore) cached(collection string) bool {
	_, ok := s.collections[collection]
	return ok
}

// Get serves cached collections from the cache when possible
func (s *CachedStore) Get(ctx context.Context, collection, id string) (*providers.Document, error) {
	if !s.cached(collection) {
		return s.DocumentStore.Get(ctx, collection, id)
	}

	key := documentCacheKey(collection, id)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var data map[string]interface{}
		if err := json.Unmarshal(raw, &data); err == nil {
			observability.RecordCacheHit(ctx, s.metrics, collection)
			return &providers.Document{ID: id, Data: data}, nil
		}
		log.Warn().Str("key", key).Msg("dropping undecodable cached document")
	}
	observability.RecordCacheMiss(ctx, s.metrics, collection)

	doc, err := s.DocumentStore.Get(ctx, collection, id)
	if err != nil || doc == nil {
		return doc, err
	}
	s.store(ctx, collection, doc)
	return doc, nil
}

// QueryIn answers id lookups on cached collections from the cache and
// only asks the store for the misses.
func (s *CachedStore) QueryIn(ctx context.Context, collection, field string, ids []string) ([]*providers.Document, error) {
	if !s.cached(collection) || field != providers.FieldDocumentID || len(ids) == 0 {
		return s.DocumentStore.QueryIn(ctx, collection, field, ids)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = documentCacheKey(collection, id)
	}
	hits, err := s.cache.GetMulti(ctx, keys)
	if err != nil {
		log.Warn().Err(err).Str("collection", collection).Msg("cache lookup failed, reading through")
		hits = nil
	}

	docs := make([]*providers.Document, 0, len(ids))
	var missing []string
	for i, id := range ids {
		if raw, ok := hits[keys[i]]; ok {
			var data map[string]interface{}
			if err := json.Unmarshal(raw, &data); err == nil {
				docs = append(docs, &providers.Document{ID: id, Data: data})
				continue
			}
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		fetched, err := s.DocumentStore.QueryIn(ctx, collection, field, missing)
		if err != nil {
			return nil, err
		}
		for _, doc := range fetched {
			s.store(ctx, collection, doc)
		}
		docs = append(docs, fetched...)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Set writes through and evicts
func (s *CachedStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	if err := s.DocumentStore.Set(ctx, collection, id, data); err != nil {
		return err
	}
	s.evict(ctx, collection, id)
	return nil
}

// Update writes through and evicts
func (s *CachedStore) Update(ctx context.Context, collection, id string, updates []providers.FieldUpdate) error {
	if err := s.DocumentStore.Update(ctx, collection, id, updates); err != nil {
		return err
	}
	s.evict(ctx, collection, id)
	return nil
}

// BatchSet writes through and evicts every touched document. Evictions
// also run after a failed batch since part of it may have landed.
func (s *CachedStore) BatchSet(ctx context.Context, writes []providers.BatchWrite) error {
	err := s.DocumentStore.BatchSet(ctx, writes)

	var keys []string
	for _, w := range writes {
		if s.cached(w.Collection) {
			keys = append(keys, documentCacheKey(w.Collection, w.ID))
		}
	}
	if len(keys) > 0 {
		if derr := s.cache.Delete(ctx, keys...); derr != nil {
			log.Warn().Err(derr).Int("keys", len(keys)).Msg("failed to evict cached documents")
		}
	}
	return err
}

func (s *CachedStore) store(ctx context.Context, collection string, doc *providers.Document) {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, documentCacheKey(collection, doc.ID), raw, documentTTL); err != nil {
		log.Warn().Err(err).Str("collection", collection).Str("id", doc.ID).Msg("failed to cache document")
	}
}

func (s *CachedStore) evict(ctx context.Context, collection, id string) {
	if !s.cached(collection) {
		return
	}
	if err := s.cache.Delete(ctx, documentCacheKey(collection, id)); err != nil {
		log.Warn().Err(err).Str("collection", collection).Str("id", id).Msg("failed to evict cached document")
	}
}
