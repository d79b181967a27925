package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sidequest/backend/internal/adapters/cache"
	"github.com/sidequest/backend/internal/adapters/database"
	"github.com/sidequest/backend/internal/adapters/providers/places"
	"github.com/sidequest/backend/internal/adapters/providers/questgen"
	"github.com/sidequest/backend/internal/adapters/search"
	"github.com/sidequest/backend/internal/adapters/store"
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

type options struct {
	request    services.IngestionRequest
	resetIndex bool
}

func main() {
	var opts options
	var intervalFlag string
	flag.Float64Var(&opts.request.Latitude, "lat", 40.7128, "latitude of the sweep center")
	flag.Float64Var(&opts.request.Longitude, "lng", -74.0060, "longitude of the sweep center")
	flag.Float64Var(&opts.request.RadiusMeters, "radius", 1500, "sweep radius in meters")
	flag.IntVar(&opts.request.MaxResults, "max", 20, "maximum places to fetch")
	flag.BoolVar(&opts.request.GenerateQuests, "quests", false, "generate one quest per new establishment")
	flag.BoolVar(&opts.resetIndex, "reset-index", false, "delete the Typesense collection before indexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval (e.g. 6h, 30m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("INGEST_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		var err error
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("interval must be greater than zero")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger("sidequest-ingest", cfg.App.Env, cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := ingestOnce(ctx, cfg, opts); err != nil {
			log.Error().Err(err).Msg("ingestion failed")
		}

		if interval <= 0 {
			break
		}

		opts.resetIndex = false
		log.Info().Dur("next_in", interval).Msg("ingestion complete")
		select {
		case <-ctx.Done():
			log.Info().Msg("ingester shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func ingestOnce(ctx context.Context, cfg *config.Config, opts options) error {
	var cacheProvider providers.CacheProvider
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize Redis client, photo URIs will not be cached")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient, "sidequest")
		}
	}

	documentStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var placeSource providers.PlaceSource
	if cfg.Places.Provider == "google" && cfg.Places.APIKey != "" {
		placeSource = places.NewGooglePlaceSource(cfg.Places.APIKey, cacheProvider)
	} else {
		log.Warn().Str("provider", cfg.Places.Provider).Msg("using mock place source")
		placeSource = places.NewMockPlaceSource()
	}

	var searchRepo repositories.EstablishmentSearchRepository
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			return err
		}
		initSchema := tsClient.InitSchema
		if opts.resetIndex || os.Getenv("RESET_TYPESENSE") == "true" {
			log.Info().Str("collection", typesense.EstablishmentsCollection).Msg("rebuilding Typesense collection")
			initSchema = tsClient.ResetSchema
		}
		if err := initSchema(ctx); err != nil {
			return err
		}
		searchRepo = search.NewTypesenseAdapter(tsClient)
	}

	var questService *services.QuestService
	if opts.request.GenerateQuests {
		templates := questgen.NewTemplateQuestGenerator()
		var generator providers.QuestGenerator = templates
		if cfg.OpenAI.APIKey != "" {
			if client, err := openai.NewClient(&cfg.OpenAI); err == nil {
				generator = client
			} else {
				log.Warn().Err(err).Msg("failed to initialize OpenAI client, using quest templates")
			}
		}
		questService = services.NewQuestService(documentStore, generator, templates)
	}

	ingestion := services.NewIngestionService(
		placeSource,
		documentStore,
		services.NewChunkedQueryService(documentStore, nil),
		searchRepo,
		questService,
	)

	summary, err := ingestion.Ingest(ctx, opts.request)
	if err != nil {
		return err
	}

	log.Info().
		Int("fetched", summary.PlacesFetched).
		Int("created", summary.EstablishmentsCreated).
		Int("updated", summary.EstablishmentsUpdated).
		Int("photos", summary.PhotosResolved).
		Int("indexed", summary.Indexed).
		Int("quests", summary.QuestsCreated).
		Msg("ingestion summary")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (providers.DocumentStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendFirestore:
		fbClient, err := firebase.NewClient(ctx, &cfg.Firebase)
		if err != nil {
			return nil, nil, err
		}
		return store.NewFirestoreAdapter(fbClient.Firestore()), func() { fbClient.Close() }, nil

	case config.StoreBackendPostgres:
		pgClient, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		adapter := database.NewDocumentAdapter(pgClient, nil)
		if err := adapter.EnsureSchema(ctx); err != nil {
			pgClient.Close()
			return nil, nil, err
		}
		return adapter, func() { pgClient.Close() }, nil

	default:
		log.Warn().Msg("ingesting into the in-memory store, results are discarded on exit")
		return store.NewMemoryStore(), func() {}, nil
	}
}
