package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sidequest/backend/pkg/errors"
)

func TestJWTAuthProvider_RoundTrip(t *testing.T) {
	token, err := IssueToken("s3cret", "u1", time.Hour)
	require.NoError(t, err)

	uid, err := NewJWTAuthProvider("s3cret").VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestJWTAuthProvider_Rejects(t *testing.T) {
	provider := NewJWTAuthProvider("s3cret")

	wrongKey, err := IssueToken("other", "u1", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken("s3cret", "u1", -time.Minute)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":     "",
		"garbage":   "not-a-token",
		"wrong key": wrongKey,
		"expired":   expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := provider.VerifyToken(context.Background(), token)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
		})
	}
}

func TestJWTAuthProvider_UserIDClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "legacy-user",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	uid, err := NewJWTAuthProvider("s3cret").VerifyToken(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "legacy-user", uid)
}

type stubVerifier struct {
	token *firebaseauth.Token
	err   error
}

func (s stubVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	return s.token, s.err
}

func TestFirebaseAuthProvider(t *testing.T) {
	ok := &FirebaseAuthProvider{verifier: stubVerifier{token: &firebaseauth.Token{UID: "fb-user"}}}
	uid, err := ok.VerifyToken(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, "fb-user", uid)

	bad := &FirebaseAuthProvider{verifier: stubVerifier{err: errors.New("expired")}}
	_, err = bad.VerifyToken(context.Background(), "id-token")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	_, err = ok.VerifyToken(context.Background(), "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
}
