package middleware

import (
	"net/http"

	"github.com/sidequest/backend/internal/application/loaders"
)

// Loaders attaches a fresh set of dataloaders to every request so batching
// and memoisation never leak between callers.
func Loaders(establishments loaders.EstablishmentFetcher, profiles loaders.ProfileFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := loaders.NewLoaders(establishments, profiles)
			next.ServeHTTP(w, r.WithContext(loaders.WithLoaders(r.Context(), l)))
		})
	}
}
