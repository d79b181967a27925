package entities

import "time"

// ProfileEventType identifies what happened to a profile
type ProfileEventType string

const (
	ProfileEventQuestCompleted  ProfileEventType = "quest_completed"
	ProfileEventFriendAccepted  ProfileEventType = "friend_accepted"
	ProfileEventReviewSubmitted ProfileEventType = "review_submitted"
)

// ProfileEvent is published on the event bus after a profile mutation
type ProfileEvent struct {
	ID              string           `json:"id"`
	Type            ProfileEventType `json:"type"`
	UserID          string           `json:"user_id"`
	QuestID         string           `json:"quest_id,omitempty"`
	EstablishmentID string           `json:"establishment_id,omitempty"`
	OtherUserID     string           `json:"other_user_id,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

// NewProfileEvent creates a profile event stamped with the current time
func NewProfileEvent(eventType ProfileEventType, userID string) *ProfileEvent {
	now := time.Now().UTC()
	return &ProfileEvent{
		ID:        userID + "-" + string(eventType) + "-" + now.Format("20060102150405.000000"),
		Type:      eventType,
		UserID:    userID,
		Timestamp: now,
	}
}
