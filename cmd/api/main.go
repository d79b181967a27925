package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sidequest/backend/internal/adapters/auth"
	"github.com/sidequest/backend/internal/adapters/cache"
	"github.com/sidequest/backend/internal/adapters/database"
	"github.com/sidequest/backend/internal/adapters/events"
	"github.com/sidequest/backend/internal/adapters/providers/questgen"
	"github.com/sidequest/backend/internal/adapters/search"
	"github.com/sidequest/backend/internal/adapters/store"
	"github.com/sidequest/backend/internal/api/handlers"
	"github.com/sidequest/backend/internal/api/middleware"
	"github.com/sidequest/backend/internal/api/routes"
	"github.com/sidequest/backend/internal/application/feed"
	"github.com/sidequest/backend/internal/application/services"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/domain/repositories"
	"github.com/sidequest/backend/internal/infrastructure/clients/firebase"
	"github.com/sidequest/backend/internal/infrastructure/clients/openai"
	"github.com/sidequest/backend/internal/infrastructure/clients/postgres"
	"github.com/sidequest/backend/internal/infrastructure/clients/redis"
	"github.com/sidequest/backend/internal/infrastructure/clients/typesense"
	"github.com/sidequest/backend/internal/infrastructure/observability"
	"github.com/sidequest/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Env, cfg.App.LogLevel)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, &cfg.OTEL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	var fbClient *firebase.Client
	if cfg.Store.Backend == config.StoreBackendFirestore || cfg.Auth.Mode == config.AuthModeFirebase {
		fbClient, err = firebase.NewClient(ctx, &cfg.Firebase)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Firebase client")
		}
		defer fbClient.Close()
		log.Info().Str("project", cfg.Firebase.ProjectID).Msg("Firebase client initialized")
	}

	// Redis is optional: without it documents are not cached and profile
	// events stay inside this process.
	var redisClient *redis.Client
	var cacheProvider providers.CacheProvider
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize Redis client, continuing without cache")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient, "sidequest")
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
		}
	}

	documentStore, closeStore, storeCheck, err := buildStore(ctx, cfg, fbClient, metrics)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to initialize document store")
	}
	defer closeStore()
	if cacheProvider != nil {
		documentStore = store.NewCachedStore(documentStore, cacheProvider, metrics, services.CollectionEstablishments)
	}
	log.Info().Str("backend", cfg.Store.Backend).Bool("cached", cacheProvider != nil).Msg("document store ready")

	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient, "sidequest")
	} else {
		eventBus = events.NewInMemoryEventBus()
	}

	var searchRepo repositories.EstablishmentSearchRepository
	var typesenseClient *typesense.Client
	if cfg.Typesense.Enabled {
		typesenseClient, err = typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize Typesense client, search disabled")
		} else {
			searchRepo = search.NewTypesenseAdapter(typesenseClient)
			log.Info().Str("url", cfg.Typesense.URL).Msg("Typesense client initialized")
		}
	}

	authProvider, err := buildAuth(ctx, cfg, fbClient)
	if err != nil {
		log.Fatal().Err(err).Str("mode", cfg.Auth.Mode).Msg("failed to initialize auth provider")
	}

	// Quest names come from OpenAI when configured, with templates as fallback
	templates := questgen.NewTemplateQuestGenerator()
	var questGenerator providers.QuestGenerator = templates
	var questFallback providers.QuestGenerator
	if cfg.OpenAI.APIKey != "" {
		openaiClient, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize OpenAI client, using quest templates")
		} else {
			questGenerator = openaiClient
			questFallback = templates
		}
	}

	// Initialize services
	chunked := services.NewChunkedQueryService(documentStore, metrics)
	selector := services.NewCandidateSelector(documentStore, metrics)
	mutations := services.NewProfileMutationService(documentStore, eventBus, services.FriendAcceptRetryConfig())
	profileService := services.NewProfileService(documentStore, chunked)
	reviewService := services.NewReviewService(documentStore)
	questService := services.NewQuestService(documentStore, questGenerator, questFallback)
	establishmentService := services.NewEstablishmentService(documentStore, chunked, searchRepo)
	levelService := services.NewLevelService(documentStore, eventBus)

	if cacheProvider != nil {
		warmer := services.NewCacheWarmingService(documentStore, chunked, 0)
		go func() {
			if _, err := warmer.WarmCache(ctx); err != nil {
				log.Warn().Err(err).Msg("cache warming interrupted")
			}
		}()
	}

	feedManager := feed.NewManager(selector, profileService, mutations, metrics, feed.Options{
		BatchSize:        cfg.Feed.BatchSize,
		LowWaterMark:     cfg.Feed.LowWaterMark,
		ReplenishTimeout: cfg.Feed.ReplenishTimeout,
	}, cfg.Feed.SessionIdleTTL)
	go feedManager.Run(ctx)
	if err := observability.ObserveGauge(metrics, "feed.sessions.open", "Open feed sessions", feedManager.Len); err != nil {
		log.Warn().Err(err).Msg("failed to register feed session gauge")
	}

	go func() {
		if err := levelService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("level service stopped")
		}
	}()

	health := handlers.NewHealthHandler(feedManager)
	if storeCheck != nil {
		health.AddCheck("store", storeCheck)
	}
	if redisClient != nil {
		health.AddCheck("redis", redisClient.Ping)
	}
	if searchRepo != nil {
		health.AddCheck("search", typesenseClient.Ping)
	}

	router := routes.NewRouter(routes.Dependencies{
		Feed:                 handlers.NewFeedHandler(feedManager),
		Establishments:       handlers.NewEstablishmentHandler(establishmentService, mutations, reviewService, questService),
		Profiles:             handlers.NewProfileHandler(profileService, reviewService, mutations),
		Health:               health,
		Auth:                 authProvider,
		EstablishmentFetcher: establishmentService,
		ProfileFetcher:       profileService,
		Cache:                middleware.NewCacheMiddleware(cacheProvider, metrics),
		Metrics:              metrics,
		AllowedOrigins:       cfg.Server.AllowedOrigins,
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// next-batch requests may wait on an in-flight replenishment
		WriteTimeout: cfg.Feed.ReplenishTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	cancel()
	feedManager.Shutdown()

	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("error closing event bus")
	}

	log.Info().Msg("server stopped")
}

// buildStore opens the configured document store backend. The returned check
// is nil for backends without a cheap ping.
func buildStore(ctx context.Context, cfg *config.Config, fbClient *firebase.Client, metrics *observability.Metrics) (providers.DocumentStore, func(), handlers.HealthCheck, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendFirestore:
		return store.NewFirestoreAdapter(fbClient.Firestore()), func() {}, nil, nil

	case config.StoreBackendPostgres:
		pgClient, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		adapter := database.NewDocumentAdapter(pgClient, metrics)
		if err := adapter.EnsureSchema(ctx); err != nil {
			pgClient.Close()
			return nil, nil, nil, err
		}
		return adapter, func() { pgClient.Close() }, pgClient.Ping, nil

	default:
		log.Warn().Msg("using in-memory document store, data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil, nil
	}
}

// buildAuth returns the bearer token verifier for the configured mode
func buildAuth(ctx context.Context, cfg *config.Config, fbClient *firebase.Client) (providers.AuthProvider, error) {
	if cfg.Auth.Mode == config.AuthModeJWT {
		return auth.NewJWTAuthProvider(cfg.Auth.JWTSecret), nil
	}
	authClient, err := fbClient.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return auth.NewFirebaseAuthProvider(authClient), nil
}
