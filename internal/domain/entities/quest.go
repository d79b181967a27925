package entities

import "time"

// Quest is a challenge scoped to a single establishment
type Quest struct {
	QuestID         string    `json:"questId"`
	EstablishmentID string    `json:"establishmentId"`
	QuestName       string    `json:"questName"`
	CreatedAt       time.Time `json:"createdAt"`
}

// QuestCompletion lives in users/{uid}/quests/{questId}
type QuestCompletion struct {
	QuestID     string     `json:"questId"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
