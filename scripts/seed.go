package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sidequest/backend/internal/adapters/auth"
	"github.com/sidequest/backend/internal/adapters/database"
	"github.com/sidequest/backend/internal/adapters/events"
	"github.com/sidequest/backend/internal/adapters/providers/places"
	"github.com/sidequest/backend/internal/adapters/providers/questgen"
	"github.com/sidequest/backend/internal/application/services"
	"github.com/sidequest/backend/internal/infrastructure/clients/postgres"
	"github.com/sidequest/backend/internal/infrastructure/observability"
	"github.com/sidequest/backend/pkg/config"
)

// demoUsers are created with a friendship between the first two
var demoUsers = []struct {
	uid  string
	name string
}{
	{uid: "demo-ada", name: "Ada"},
	{uid: "demo-grace", name: "Grace"},
	{uid: "demo-linus", name: "Linus"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("sidequest-seed", cfg.App.Env, cfg.App.LogLevel)

	ctx := context.Background()
	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer pgClient.Close()

	documentStore := database.NewDocumentAdapter(pgClient, nil)
	if err := documentStore.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create documents table")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating documents before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE documents`); err != nil {
			log.Fatal().Err(err).Msg("failed to reset documents")
		}
	}

	bus := events.NewInMemoryEventBus()
	defer bus.Close()

	chunked := services.NewChunkedQueryService(documentStore, nil)
	quests := services.NewQuestService(documentStore, questgen.NewTemplateQuestGenerator(), nil)
	profiles := services.NewProfileService(documentStore, chunked)
	mutations := services.NewProfileMutationService(documentStore, bus, services.FriendAcceptRetryConfig())
	reviews := services.NewReviewService(documentStore)

	// 1. Establishments and one quest each
	ingestion := services.NewIngestionService(places.NewMockPlaceSource(), documentStore, chunked, nil, quests)
	summary, err := ingestion.Ingest(ctx, services.IngestionRequest{
		Latitude:       40.7128,
		Longitude:      -74.0060,
		RadiusMeters:   20000,
		MaxResults:     20,
		GenerateQuests: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed establishments")
	}
	log.Info().Int("establishments", summary.EstablishmentsCreated).Int("quests", summary.QuestsCreated).Msg("seeded establishments")

	// 2. Users
	for _, u := range demoUsers {
		if _, err := profiles.GetOrCreate(ctx, u.uid, u.name); err != nil {
			log.Error().Err(err).Str("uid", u.uid).Msg("failed to create profile")
		}
	}

	// 3. A friendship and a review so every screen has data
	if err := mutations.SendFriendRequest(ctx, demoUsers[1].uid, demoUsers[0].uid); err != nil {
		log.Error().Err(err).Msg("failed to send friend request")
	} else if err := mutations.AcceptFriendRequest(ctx, demoUsers[0].uid, demoUsers[1].uid); err != nil {
		log.Error().Err(err).Msg("failed to accept friend request")
	}

	liked, err := profiles.LikedEstablishments(ctx, demoUsers[0].uid)
	if err == nil && len(liked) == 0 {
		establishments, err := services.NewCandidateSelector(documentStore, nil).SelectCandidates(ctx, nil, 2, "")
		if err != nil {
			log.Error().Err(err).Msg("failed to pick establishments for demo likes")
		}
		for _, e := range establishments {
			if err := mutations.Like(ctx, demoUsers[0].uid, e.ID); err != nil {
				log.Error().Err(err).Str("establishment", e.ID).Msg("failed to like establishment")
				continue
			}
			if _, err := reviews.Submit(ctx, demoUsers[0].uid, e.ID, 5, "Seeded review"); err != nil {
				log.Error().Err(err).Str("establishment", e.ID).Msg("failed to submit review")
			}
		}
	}

	// 4. Local tokens
	if cfg.Auth.Mode == config.AuthModeJWT {
		for _, u := range demoUsers {
			token, err := auth.IssueToken(cfg.Auth.JWTSecret, u.uid, 30*24*time.Hour)
			if err != nil {
				log.Error().Err(err).Str("uid", u.uid).Msg("failed to issue token")
				continue
			}
			fmt.Printf("%s\t%s\n", u.uid, token)
		}
	}

	log.Info().Msg("seeding completed")
}
