package auth

import (
	"context"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/observability"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

// tokenVerifier is the part of the Firebase auth client we use
type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseAuthProvider verifies Firebase ID tokens
type FirebaseAuthProvider struct {
	verifier tokenVerifier
}

// NewFirebaseAuthProvider creates a provider backed by a Firebase auth client
func NewFirebaseAuthProvider(client *firebaseauth.Client) providers.AuthProvider {
	return &FirebaseAuthProvider{verifier: client}
}

// VerifyToken checks an ID token and returns the Firebase uid
func (p *FirebaseAuthProvider) VerifyToken(ctx context.Context, idToken string) (string, error) {
	if idToken == "" {
		return "", apperrors.NewUnauthorizedError("missing bearer token")
	}

	token, err := p.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		observability.LoggerFromContext(ctx).Debug().Err(err).Msg("firebase token rejected")
		return "", apperrors.NewUnauthorizedError("invalid or expired token")
	}
	if token.UID == "" {
		return "", apperrors.NewUnauthorizedError("token has no uid")
	}
	return token.UID, nil
}
