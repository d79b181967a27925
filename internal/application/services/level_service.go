package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
)

// QuestsPerLevel is how many completed quests it takes to gain a level
const QuestsPerLevel = 3

// LevelForQuestCount maps completed quests to a level, starting at 1
func LevelForQuestCount(completed int) int {
	return 1 + completed/QuestsPerLevel
}

// LevelService keeps profile levels in step with completed quests.
// Levels never go down.
type LevelService struct {
	store  providers.DocumentStore
	events providers.EventBus
}

// NewLevelService creates a new level service
func NewLevelService(store providers.DocumentStore, events providers.EventBus) *LevelService {
	return &LevelService{store: store, events: events}
}

// Recompute raises the stored level if completed quests warrant it and
// returns the level the quests warrant, or the stored one if higher. The
// write is a store-side max, so a replica acting on a stale read cannot
// lower a level another replica already raised.
func (s *LevelService) Recompute(ctx context.Context, uid string) (int, error) {
	doc, err := s.store.Get(ctx, CollectionUsers, uid)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, nil
	}
	profile, err := decodeProfile(doc)
	if err != nil {
		return 0, err
	}

	target := LevelForQuestCount(len(profile.Quests))
	if target <= profile.Level {
		return profile.Level, nil
	}
	if err := s.store.Update(ctx, CollectionUsers, uid, []providers.FieldUpdate{
		providers.Max(entities.FieldLevel, int64(target)),
	}); err != nil {
		return profile.Level, err
	}
	return target, nil
}

// Run consumes quest completion events until ctx is done
func (s *LevelService) Run(ctx context.Context) error {
	events, err := s.events.Subscribe(ctx, providers.EventChannelProfileUpdates)
	if err != nil {
		return err
	}
	log.Info().Msg("level service listening for profile events")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Type != entities.ProfileEventQuestCompleted {
				continue
			}
			level, err := s.Recompute(ctx, event.UserID)
			if err != nil {
				log.Error().Err(err).Str("uid", event.UserID).Msg("failed to recompute level")
				continue
			}
			log.Debug().Str("uid", event.UserID).Int("level", level).Msg("level recomputed")
		}
	}
}
