package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentCodec_UsesStoredFieldNames(t *testing.T) {
	p := NewUserProfile("u1", "Ada")
	p.LikedEstablishments = []string{"e1"}
	p.Level = 3

	doc, err := ToDocument(p)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"e1"}, doc[FieldLikedEstablishments])
	assert.EqualValues(t, 3, doc[FieldLevel])

	var back UserProfile
	require.NoError(t, FromDocument(doc, &back))
	assert.Equal(t, "u1", back.UID)
	assert.Equal(t, []string{"e1"}, back.LikedEstablishments)
	assert.Equal(t, 3, back.Level)
}

func TestFromDocument_AcceptsStoreNativeTypes(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := map[string]interface{}{
		"id":        "e1",
		"rating":    int64(4),
		"updatedAt": now,
		"location":  map[string]interface{}{"latitude": 1.5, "longitude": -2.25},
	}

	var e Establishment
	require.NoError(t, FromDocument(doc, &e))
	assert.Equal(t, 4.0, e.Rating)
	assert.True(t, now.Equal(e.UpdatedAt))
	assert.Equal(t, -2.25, e.Location.Longitude)
}

func TestUserProfile_Membership(t *testing.T) {
	p := NewUserProfile("u1", "")
	p.Friends = []string{"f1"}
	p.IncomingRequests = []string{"r1"}
	p.LikedEstablishments = []string{"a"}
	p.DislikedEstablishments = []string{"b"}

	assert.True(t, p.IsFriend("f1"))
	assert.False(t, p.IsFriend("r1"))
	assert.True(t, p.HasIncomingRequest("r1"))
	assert.ElementsMatch(t, []string{"a", "b"}, p.InteractedIDs())
}

func TestIsValidCategory(t *testing.T) {
	assert.True(t, IsValidCategory(CategoryBars))
	assert.False(t, IsValidCategory("bars"))
}
