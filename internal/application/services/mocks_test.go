package services_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sidequest/backend/internal/adapters/store"
	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/domain/repositories"
)

// Mocks

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Get(ctx context.Context, collection, id string) (*providers.Document, error) {
	args := m.Called(ctx, collection, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Document), args.Error(1)
}

func (m *MockDocumentStore) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	args := m.Called(ctx, collection, id, data)
	return args.Error(0)
}

func (m *MockDocumentStore) Update(ctx context.Context, collection, id string, updates []providers.FieldUpdate) error {
	args := m.Called(ctx, collection, id, updates)
	return args.Error(0)
}

func (m *MockDocumentStore) Query(ctx context.Context, q providers.Query) ([]*providers.Document, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*providers.Document), args.Error(1)
}

func (m *MockDocumentStore) QueryIn(ctx context.Context, collection, field string, ids []string) ([]*providers.Document, error) {
	args := m.Called(ctx, collection, field, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*providers.Document), args.Error(1)
}

func (m *MockDocumentStore) BatchSet(ctx context.Context, writes []providers.BatchWrite) error {
	args := m.Called(ctx, writes)
	return args.Error(0)
}

type MockQuestGenerator struct {
	mock.Mock
}

func (m *MockQuestGenerator) GenerateQuest(ctx context.Context, e *entities.Establishment) (string, error) {
	args := m.Called(ctx, e)
	return args.String(0), args.Error(1)
}

type MockPlaceSource struct {
	mock.Mock
}

func (m *MockPlaceSource) Search(ctx context.Context, lat, lon, radiusMeters float64, maxResults int) ([]*providers.Place, error) {
	args := m.Called(ctx, lat, lon, radiusMeters, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*providers.Place), args.Error(1)
}

func (m *MockPlaceSource) ResolvePhoto(ctx context.Context, photoRef string) (string, error) {
	args := m.Called(ctx, photoRef)
	return args.String(0), args.Error(1)
}

type MockSearchRepository struct {
	mock.Mock
}

func (m *MockSearchRepository) Search(ctx context.Context, params repositories.EstablishmentSearchParams) ([]string, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSearchRepository) Index(ctx context.Context, e *entities.Establishment) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockSearchRepository) BulkIndex(ctx context.Context, establishments []*entities.Establishment) error {
	args := m.Called(ctx, establishments)
	return args.Error(0)
}

func (m *MockSearchRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// flakyStore fails Update calls for one document a fixed number of times.
type flakyStore struct {
	*store.MemoryStore
	mu       sync.Mutex
	failID   string
	failures int
	err      error
}

func (f *flakyStore) Update(ctx context.Context, collection, id string, updates []providers.FieldUpdate) error {
	f.mu.Lock()
	if id == f.failID && f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		f.mu.Unlock()
		return f.err
	}
	f.mu.Unlock()
	return f.MemoryStore.Update(ctx, collection, id, updates)
}

// Fixtures

func seedEstablishment(s providers.DocumentStore, id, category string) {
	data, _ := entities.ToDocument(&entities.Establishment{ID: id, Name: "Place " + id, Category: category})
	_ = s.Set(context.Background(), "establishments", id, data)
}

func seedProfile(s providers.DocumentStore, p *entities.UserProfile) {
	data, _ := entities.ToDocument(p)
	_ = s.Set(context.Background(), "users", p.UID, data)
}

func establishmentDocs(ids ...string) []*providers.Document {
	docs := make([]*providers.Document, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, &providers.Document{ID: id, Data: map[string]interface{}{"name": "Place " + id}})
	}
	return docs
}
