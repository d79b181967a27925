package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sidequest/backend/internal/adapters/store"
	"github.com/sidequest/backend/internal/application/services"
	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/repositories"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

func TestEstablishmentService_GetByID(t *testing.T) {
	mem := store.NewMemoryStore()
	seedEstablishment(mem, "e1", entities.CategoryFood)
	svc := services.NewEstablishmentService(mem, services.NewChunkedQueryService(mem, nil), nil)

	got, err := svc.GetByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Place e1", got.Name)

	_, err = svc.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestEstablishmentService_SearchKeepsRelevanceOrder(t *testing.T) {
	mem := store.NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		seedEstablishment(mem, id, entities.CategoryBars)
	}

	search := new(MockSearchRepository)
	search.On("Search", mock.Anything, mock.MatchedBy(func(p repositories.EstablishmentSearchParams) bool {
		return p.Query == "jazz" && p.Limit == 20
	})).Return([]string{"c", "gone", "a"}, nil)

	svc := services.NewEstablishmentService(mem, services.NewChunkedQueryService(mem, nil), search)
	got, err := svc.Search(context.Background(), repositories.EstablishmentSearchParams{Query: "jazz"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	search.AssertExpectations(t)
}

func TestEstablishmentService_SearchNotConfigured(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := services.NewEstablishmentService(mem, services.NewChunkedQueryService(mem, nil), nil)

	_, err := svc.Search(context.Background(), repositories.EstablishmentSearchParams{Query: "x"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}
