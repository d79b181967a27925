package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidequest/backend/internal/domain/providers"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

var _ providers.DocumentStore = (*MemoryStore)(nil)

func seed(t *testing.T, s *MemoryStore, collection string, docs map[string]map[string]interface{}) {
	t.Helper()
	for id, data := range docs {
		require.NoError(t, s.Set(context.Background(), collection, id, data))
	}
}

func TestMemoryStore_GetMissingReturnsNil(t *testing.T) {
	s := NewMemoryStore()

	doc, err := s.Get(context.Background(), "users", "nobody")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestMemoryStore_SetDoesNotAliasCallerData(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	data := map[string]interface{}{"friends": []interface{}{"a"}}
	require.NoError(t, s.Set(ctx, "users", "u1", data))

	data["friends"] = []interface{}{"mutated"}

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a"}, doc.Data["friends"])
}

func TestMemoryStore_UpdateArrayOps(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seed(t, s, "users", map[string]map[string]interface{}{
		"u1": {"likedEstablishments": []interface{}{"e1"}, "dislikedEstablishments": []interface{}{"e2"}, "level": int64(1)},
	})

	err := s.Update(ctx, "users", "u1", []providers.FieldUpdate{
		providers.ArrayUnion("likedEstablishments", "e1", "e2"),
		providers.ArrayRemove("dislikedEstablishments", "e2"),
		providers.Max("level", 3),
	})
	require.NoError(t, err)

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"e1", "e2"}, doc.Data["likedEstablishments"])
	assert.Equal(t, []interface{}{}, doc.Data["dislikedEstablishments"])
	assert.Equal(t, int64(3), doc.Data["level"])
}

func TestApplyUpdates_MaxNeverLowers(t *testing.T) {
	data := map[string]interface{}{"level": float64(5), "name": "Ada"}

	require.NoError(t, ApplyUpdates(data, []providers.FieldUpdate{providers.Max("level", 2)}))
	assert.Equal(t, float64(5), data["level"])

	require.NoError(t, ApplyUpdates(data, []providers.FieldUpdate{providers.Max("level", 7)}))
	assert.Equal(t, int64(7), data["level"])

	require.NoError(t, ApplyUpdates(data, []providers.FieldUpdate{providers.Max("xp", 1)}))
	assert.Equal(t, int64(1), data["xp"])

	assert.Error(t, ApplyUpdates(data, []providers.FieldUpdate{providers.Max("name", 1)}))
}

func TestMemoryStore_UpdateMissingDocument(t *testing.T) {
	s := NewMemoryStore()

	err := s.Update(context.Background(), "users", "ghost", []providers.FieldUpdate{providers.Set("name", "x")})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestMemoryStore_QueryFiltersOrdersAndLimits(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "establishments", map[string]map[string]interface{}{
		"c": {"category": "Food"},
		"a": {"category": "Food"},
		"b": {"category": "Bars"},
		"d": {"category": "Food"},
	})

	docs, err := s.Query(context.Background(), providers.Query{
		Collection: "establishments",
		Filters:    []providers.Filter{{Field: "category", Op: providers.OpEqual, Value: "Food"}},
		Limit:      2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "c", docs[1].ID)
}

func TestMemoryStore_QueryNotInAndArrayContains(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "users", map[string]map[string]interface{}{
		"u1": {"friends": []interface{}{"x"}},
		"u2": {"friends": []interface{}{"y"}},
		"u3": {"friends": []interface{}{"x", "y"}},
	})

	docs, err := s.Query(context.Background(), providers.Query{
		Collection: "users",
		Filters: []providers.Filter{
			{Field: "friends", Op: providers.OpArrayContains, Value: "x"},
			{Field: providers.FieldDocumentID, Op: providers.OpNotIn, Value: []string{"u1"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "u3", docs[0].ID)
}

func TestMemoryStore_QueryInEnforcesLimit(t *testing.T) {
	s := NewMemoryStore()
	ids := make([]string, providers.MaxInClauseSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("e%d", i)
	}

	_, err := s.QueryIn(context.Background(), "establishments", providers.FieldDocumentID, ids)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestMemoryStore_QueryInByDocumentID(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "establishments", map[string]map[string]interface{}{
		"e1": {"name": "One"},
		"e2": {"name": "Two"},
		"e3": {"name": "Three"},
	})

	docs, err := s.QueryIn(context.Background(), "establishments", providers.FieldDocumentID, []string{"e3", "e1", "missing"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "e1", docs[0].ID)
	assert.Equal(t, "e3", docs[1].ID)
	assert.Equal(t, 1, s.Calls(OpQueryIn))
}

func TestMemoryStore_FailWith(t *testing.T) {
	s := NewMemoryStore()
	boom := apperrors.NewStoreUnavailableError("down", nil)
	s.FailWith(OpQuery, boom)

	_, err := s.Query(context.Background(), providers.Query{Collection: "x"})
	assert.ErrorIs(t, err, boom)

	s.FailWith(OpQuery, nil)
	_, err = s.Query(context.Background(), providers.Query{Collection: "x"})
	assert.NoError(t, err)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "users", "u1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStoreTimeout))
}

func TestApplyUpdates_NestedSet(t *testing.T) {
	data := map[string]interface{}{}
	require.NoError(t, ApplyUpdates(data, []providers.FieldUpdate{providers.Set("settings.theme", "dark")}))

	assert.Equal(t, map[string]interface{}{"theme": "dark"}, data["settings"])
}
