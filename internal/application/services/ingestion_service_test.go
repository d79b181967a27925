package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sidequest/backend/internal/adapters/store"
	"github.com/sidequest/backend/internal/application/services"
	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
)

func TestCategoryForPlaceTypes(t *testing.T) {
	tests := []struct {
		name    string
		primary string
		types   []string
		want    string
	}{
		{"primary wins", "cafe", []string{"restaurant"}, entities.CategoryCafes},
		{"falls through to types", "", []string{"point_of_interest", "park"}, entities.CategoryOutdoors},
		{"restaurant suffix", "thai_restaurant", nil, entities.CategoryFood},
		{"bar suffix", "cocktail_bar", nil, entities.CategoryBars},
		{"store suffix", "book_store", nil, entities.CategoryShopping},
		{"case insensitive", "Museum", nil, entities.CategoryEntertainment},
		{"unknown", "dentist", []string{"health"}, entities.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, services.CategoryForPlaceTypes(tt.primary, tt.types))
		})
	}
}

func TestIngestionService_Ingest(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	seedEstablishment(mem, "p-existing", entities.CategoryFood)

	places := []*providers.Place{
		{ID: "p-new", Name: "Corner Cafe", PrimaryType: "cafe", Rating: 4.5, PhotoRefs: []string{"photo-1"}},
		{ID: "p-existing", Name: "Taco Stand", PrimaryType: "mexican_restaurant"},
		{ID: "", Name: "no id"},
	}
	source := new(MockPlaceSource)
	source.On("Search", mock.Anything, 40.7, -74.0, 1500.0, 20).Return(places, nil)
	source.On("ResolvePhoto", mock.Anything, "photo-1").Return("https://photos.example/1.jpg", nil)

	search := new(MockSearchRepository)
	search.On("BulkIndex", mock.Anything, mock.MatchedBy(func(es []*entities.Establishment) bool {
		return len(es) == 2
	})).Return(nil)

	gen := new(MockQuestGenerator)
	gen.On("GenerateQuest", mock.Anything, mock.MatchedBy(func(e *entities.Establishment) bool {
		return e.ID == "p-new"
	})).Return("Sketch the view from the window", nil)

	chunked := services.NewChunkedQueryService(mem, nil)
	svc := services.NewIngestionService(source, mem, chunked, search, services.NewQuestService(mem, gen, nil))

	summary, err := svc.Ingest(ctx, services.IngestionRequest{
		Latitude: 40.7, Longitude: -74.0, RadiusMeters: 1500, GenerateQuests: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.PlacesFetched)
	assert.Equal(t, 1, summary.EstablishmentsCreated)
	assert.Equal(t, 1, summary.EstablishmentsUpdated)
	assert.Equal(t, 1, summary.PhotosResolved)
	assert.Equal(t, 2, summary.Indexed)
	assert.Equal(t, 1, summary.QuestsCreated)

	got, err := services.NewEstablishmentService(mem, chunked, nil).GetByID(ctx, "p-new")
	require.NoError(t, err)
	assert.Equal(t, entities.CategoryCafes, got.Category)
	assert.Equal(t, "https://photos.example/1.jpg", got.PhotoURI)

	updated, err := services.NewEstablishmentService(mem, chunked, nil).GetByID(ctx, "p-existing")
	require.NoError(t, err)
	assert.Equal(t, "Taco Stand", updated.Name)

	source.AssertExpectations(t)
	search.AssertExpectations(t)
	gen.AssertExpectations(t)
}

func TestIngestionService_PhotoFailureIsNotFatal(t *testing.T) {
	mem := store.NewMemoryStore()
	source := new(MockPlaceSource)
	source.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]*providers.Place{{ID: "p1", Name: "Gallery", PrimaryType: "art_gallery", PhotoRefs: []string{"ref"}}}, nil)
	source.On("ResolvePhoto", mock.Anything, "ref").Return("", errors.New("quota"))

	svc := services.NewIngestionService(source, mem, services.NewChunkedQueryService(mem, nil), nil, nil)
	summary, err := svc.Ingest(context.Background(), services.IngestionRequest{RadiusMeters: 500, MaxResults: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EstablishmentsCreated)
	assert.Zero(t, summary.PhotosResolved)
	assert.Zero(t, summary.Indexed)
}

func TestIngestionService_SearchFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	source := new(MockPlaceSource)
	source.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("places down"))

	svc := services.NewIngestionService(source, mem, services.NewChunkedQueryService(mem, nil), nil, nil)
	_, err := svc.Ingest(context.Background(), services.IngestionRequest{})
	require.Error(t, err)
	assert.Zero(t, mem.Calls(store.OpBatchSet))
}
