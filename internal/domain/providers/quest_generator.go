package providers

import (
	"context"

	"github.com/sidequest/backend/internal/domain/entities"
)

// QuestGenerator produces a quest name for an establishment
type QuestGenerator interface {
	GenerateQuest(ctx context.Context, establishment *entities.Establishment) (string, error)
}
