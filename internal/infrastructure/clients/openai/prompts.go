package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sidequest/backend/internal/domain/entities"
)

const maxQuestNameLength = 120

const questSystemPrompt = `You write short, playful real-world quests for a social discovery app. Given a place, invent ONE quest a visitor can complete on site in under an hour. Return ONLY valid JSON with this schema:
{
  "quest_name": string (imperative sentence, at most 12 words, no emojis)
}
The quest must be safe, legal, free or cheap, and respectful to staff and other guests. Do not mention prices or promotions.`

type questPayload struct {
	QuestName string `json:"quest_name"`
}

func buildQuestUserPrompt(e *entities.Establishment) string {
	return fmt.Sprintf(
		"Place name: %s\nCategory: %s\nSummary: %s\nAddress: %s\n",
		e.Name, e.Category, e.Summary, e.Address,
	)
}

func parseQuestPayload(data []byte) (string, error) {
	var payload questPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", err
	}
	name := strings.TrimSpace(payload.QuestName)
	if name == "" {
		return "", fmt.Errorf("quest_name is empty")
	}
	if len(name) > maxQuestNameLength {
		name = strings.TrimSpace(name[:maxQuestNameLength])
	}
	return name, nil
}
