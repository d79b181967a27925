package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/observability"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

// QuestService creates quests and reports completion state
type QuestService struct {
	store     providers.DocumentStore
	generator providers.QuestGenerator
	fallback  providers.QuestGenerator
}

// NewQuestService creates a new quest service. fallback is used when the
// primary generator fails and may be nil.
func NewQuestService(store providers.DocumentStore, generator, fallback providers.QuestGenerator) *QuestService {
	return &QuestService{store: store, generator: generator, fallback: fallback}
}

// Generate creates and stores a new quest for the establishment
func (s *QuestService) Generate(ctx context.Context, establishmentID string) (*entities.Quest, error) {
	doc, err := s.store.Get(ctx, CollectionEstablishments, establishmentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("establishment %s not found", establishmentID))
	}
	establishment, err := decodeEstablishment(doc)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to decode establishment", err)
	}
	return s.GenerateFor(ctx, establishment)
}

// GenerateFor creates a quest for an establishment that is already loaded
func (s *QuestService) GenerateFor(ctx context.Context, establishment *entities.Establishment) (*entities.Quest, error) {
	name, err := s.questName(ctx, establishment)
	if err != nil {
		return nil, err
	}

	quest := &entities.Quest{
		QuestID:         uuid.New().String(),
		EstablishmentID: establishment.ID,
		QuestName:       name,
		CreatedAt:       time.Now().UTC(),
	}
	data, err := entities.ToDocument(quest)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode quest", err)
	}
	if err := s.store.Set(ctx, CollectionQuests, quest.QuestID, data); err != nil {
		return nil, err
	}
	return quest, nil
}

func (s *QuestService) questName(ctx context.Context, establishment *entities.Establishment) (string, error) {
	if s.generator != nil {
		name, err := s.generator.GenerateQuest(ctx, establishment)
		if err == nil {
			return name, nil
		}
		if s.fallback == nil {
			return "", err
		}
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("establishment_id", establishment.ID).
			Msg("quest generator failed, using fallback")
	}
	if s.fallback == nil {
		return "", apperrors.NewInternalError("no quest generator configured", nil)
	}
	return s.fallback.GenerateQuest(ctx, establishment)
}

// ListByEstablishment returns the quests attached to an establishment
func (s *QuestService) ListByEstablishment(ctx context.Context, establishmentID string) ([]*entities.Quest, error) {
	docs, err := s.store.Query(ctx, providers.Query{
		Collection: CollectionQuests,
		Filters:    []providers.Filter{{Field: "establishmentId", Op: providers.OpEqual, Value: establishmentID}},
	})
	if err != nil {
		return nil, err
	}

	quests := make([]*entities.Quest, 0, len(docs))
	for _, doc := range docs {
		var q entities.Quest
		if err := entities.FromDocument(doc.Data, &q); err != nil {
			return nil, apperrors.NewInternalError("failed to decode quest "+doc.ID, err)
		}
		q.QuestID = doc.ID
		quests = append(quests, &q)
	}
	return quests, nil
}

// IsCompleted reports whether uid has completed the quest
func (s *QuestService) IsCompleted(ctx context.Context, uid, questID string) (bool, error) {
	doc, err := s.store.Get(ctx, userQuestsCollection(uid), questID)
	if err != nil || doc == nil {
		return false, err
	}
	done, _ := doc.Data["completed"].(bool)
	return done, nil
}
