package routes

import (
	"net/http"

	"github.com/sidequest/backend/internal/api/handlers"
	"github.com/sidequest/backend/internal/api/middleware"
	"github.com/sidequest/backend/internal/application/loaders"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/observability"
)

// TTLs for responses that do not depend on the caller
const (
	establishmentCacheTTL = 600
	searchCacheTTL        = 120
)

// Dependencies groups everything the router wires into handlers
type Dependencies struct {
	Feed           *handlers.FeedHandler
	Establishments *handlers.EstablishmentHandler
	Profiles       *handlers.ProfileHandler
	Health         *handlers.HealthHandler

	Auth                 providers.AuthProvider
	EstablishmentFetcher loaders.EstablishmentFetcher
	ProfileFetcher       loaders.ProfileFetcher
	Cache                *middleware.CacheMiddleware
	Metrics              *observability.Metrics
	AllowedOrigins       []string
}

// Router holds all route handlers
type Router struct {
	mux  *http.ServeMux
	deps Dependencies

	authenticated func(http.Handler) http.Handler
}

// NewRouter creates a new router
func NewRouter(deps Dependencies) *Router {
	return &Router{
		mux:  http.NewServeMux(),
		deps: deps,
		authenticated: chain(
			middleware.Auth(deps.Auth),
			middleware.Loaders(deps.EstablishmentFetcher, deps.ProfileFetcher),
		),
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.public("GET /health", r.deps.Health.Health)

	// Profile and social graph
	r.api("GET /api/profile", r.deps.Profiles.GetProfile)
	r.api("GET /api/profile/liked", r.deps.Profiles.GetLiked)
	r.api("GET /api/profile/reviews", r.deps.Profiles.GetReviews)
	r.api("GET /api/friends", r.deps.Profiles.ListFriends)
	r.api("POST /api/friends/requests", r.deps.Profiles.SendFriendRequest)
	r.api("POST /api/friends/requests/{uid}/accept", r.deps.Profiles.AcceptFriendRequest)
	r.api("POST /api/quests/{id}/complete", r.deps.Profiles.CompleteQuest)

	// Feed sessions
	r.api("POST /api/feed/sessions", r.deps.Feed.OpenSession)
	r.api("GET /api/feed/sessions/{id}/next", r.deps.Feed.NextBatch)
	r.api("POST /api/feed/sessions/{id}/swipe", r.deps.Feed.Swipe)
	r.api("POST /api/feed/sessions/{id}/retry", r.deps.Feed.Retry)
	r.api("DELETE /api/feed/sessions/{id}", r.deps.Feed.CloseSession)

	// Establishments
	r.api("GET /api/establishments/search", r.deps.Establishments.SearchEstablishments, r.deps.Cache.Wrap(searchCacheTTL))
	r.api("GET /api/establishments/{id}", r.deps.Establishments.GetEstablishment, r.deps.Cache.Wrap(establishmentCacheTTL))
	r.api("POST /api/establishments/{id}/like", r.deps.Establishments.Like)
	r.api("POST /api/establishments/{id}/dislike", r.deps.Establishments.Dislike)
	r.api("GET /api/establishments/{id}/reviews", r.deps.Establishments.ListReviews)
	r.api("POST /api/establishments/{id}/reviews", r.deps.Establishments.SubmitReview)
	r.api("GET /api/establishments/{id}/quests", r.deps.Establishments.ListQuests)
	r.api("POST /api/establishments/{id}/quests", r.deps.Establishments.GenerateQuest)

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS is outermost so error and preflight responses carry its headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.Compression(handler)
	handler = middleware.CORS(r.deps.AllowedOrigins)(handler)

	return handler
}

func (r *Router) public(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, middleware.ObservabilityMiddleware(r.deps.Metrics, pattern)(h))
}

// api registers an authenticated route. Extra middleware runs after auth.
func (r *Router) api(pattern string, h http.HandlerFunc, extra ...func(http.Handler) http.Handler) {
	var handler http.Handler = h
	for i := len(extra) - 1; i >= 0; i-- {
		handler = extra[i](handler)
	}
	handler = r.authenticated(handler)
	handler = middleware.ObservabilityMiddleware(r.deps.Metrics, pattern)(handler)
	r.mux.Handle(pattern, handler)
}

func chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
