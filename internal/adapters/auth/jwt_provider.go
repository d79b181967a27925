package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sidequest/backend/internal/domain/providers"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

// JWTAuthProvider verifies HS256 tokens signed with a shared secret. The uid
// is read from the "sub" claim, falling back to "user_id".
type JWTAuthProvider struct {
	secret []byte
}

// NewJWTAuthProvider creates a new JWT auth provider
func NewJWTAuthProvider(secret string) providers.AuthProvider {
	return &JWTAuthProvider{secret: []byte(secret)}
}

// VerifyToken validates the token signature and expiry and returns its uid
func (p *JWTAuthProvider) VerifyToken(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", apperrors.NewUnauthorizedError("missing bearer token")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", apperrors.NewUnauthorizedError("invalid or expired token")
	}

	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	if uid, ok := claims["user_id"].(string); ok && uid != "" {
		return uid, nil
	}
	return "", apperrors.NewUnauthorizedError("token has no subject")
}

// IssueToken signs a token for uid; used by local tooling and tests
func IssueToken(secret, uid string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}
