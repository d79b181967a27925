package questgen

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
)

var templates = map[string][]string{
	entities.CategoryFood: {
		"Order something you have never tried at %s",
		"Ask the staff at %s for their favourite dish and order it",
		"Share a meal at %s with a friend",
	},
	entities.CategoryBars: {
		"Try the house special at %s",
		"Strike up a conversation with someone new at %s",
		"Find the oldest thing on the wall at %s",
	},
	entities.CategoryCafes: {
		"Order a drink you would never normally pick at %s",
		"Spend twenty phone-free minutes at %s",
		"Leave a kind note for the barista at %s",
	},
	entities.CategoryEntertainment: {
		"Catch something you know nothing about at %s",
		"Take a photo of your favourite moment at %s",
	},
	entities.CategoryOutdoors: {
		"Walk a full loop of %s",
		"Find a spot at %s you have never sat in before",
		"Snap a picture of wildlife at %s",
	},
	entities.CategoryShopping: {
		"Find the strangest item for sale at %s",
		"Buy a small gift for a friend at %s",
	},
}

var fallbackTemplates = []string{
	"Visit %s and check it in",
	"Take a photo in front of %s",
}

// TemplateQuestGenerator builds quests from fixed per-category templates.
// The same establishment always gets the same quest name.
type TemplateQuestGenerator struct{}

// NewTemplateQuestGenerator creates a template quest generator
func NewTemplateQuestGenerator() providers.QuestGenerator {
	return &TemplateQuestGenerator{}
}

// GenerateQuest picks a template for the establishment's category
func (g *TemplateQuestGenerator) GenerateQuest(ctx context.Context, establishment *entities.Establishment) (string, error) {
	if establishment == nil {
		return "", fmt.Errorf("establishment is required")
	}

	options, ok := templates[establishment.Category]
	if !ok {
		options = fallbackTemplates
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(establishment.ID))
	name := establishment.Name
	if name == "" {
		name = "this place"
	}
	return fmt.Sprintf(options[h.Sum32()%uint32(len(options))], name), nil
}
