package entities

import "time"

// UserProfile is the per-user document keyed by uid.
// An establishment id appears in at most one of LikedEstablishments and
// DislikedEstablishments; Friends and IncomingRequests are disjoint.
type UserProfile struct {
	UID                    string    `json:"uid"`
	Name                   string    `json:"name"`
	Bio                    string    `json:"bio"`
	Location               string    `json:"location"`
	Gender                 string    `json:"gender"`
	IsPrivate              bool      `json:"isPrivate"`
	NotificationsEnabled   bool      `json:"notificationsEnabled"`
	LikedEstablishments    []string  `json:"likedEstablishments"`
	DislikedEstablishments []string  `json:"dislikedEstablishments"`
	Friends                []string  `json:"friends"`
	IncomingRequests       []string  `json:"incomingRequests"`
	Quests                 []string  `json:"quests"`
	Reviews                []string  `json:"reviews"`
	Level                  int       `json:"level"`
	CreatedAt              time.Time `json:"createdAt"`
}

// Profile document field names used by targeted updates
const (
	FieldLikedEstablishments    = "likedEstablishments"
	FieldDislikedEstablishments = "dislikedEstablishments"
	FieldFriends                = "friends"
	FieldIncomingRequests       = "incomingRequests"
	FieldQuests                 = "quests"
	FieldReviews                = "reviews"
	FieldLevel                  = "level"
)

// NewUserProfile returns an empty profile for a first sign-in
func NewUserProfile(uid, name string) *UserProfile {
	return &UserProfile{
		UID:                    uid,
		Name:                   name,
		NotificationsEnabled:   true,
		LikedEstablishments:    []string{},
		DislikedEstablishments: []string{},
		Friends:                []string{},
		IncomingRequests:       []string{},
		Quests:                 []string{},
		Reviews:                []string{},
		Level:                  1,
		CreatedAt:              time.Now().UTC(),
	}
}

// IsFriend reports whether uid is already a friend
func (p *UserProfile) IsFriend(uid string) bool {
	return contains(p.Friends, uid)
}

// HasIncomingRequest reports whether uid has a pending request to this user
func (p *UserProfile) HasIncomingRequest(uid string) bool {
	return contains(p.IncomingRequests, uid)
}

// InteractedIDs returns liked and disliked establishment ids
func (p *UserProfile) InteractedIDs() []string {
	out := make([]string, 0, len(p.LikedEstablishments)+len(p.DislikedEstablishments))
	out = append(out, p.LikedEstablishments...)
	out = append(out, p.DislikedEstablishments...)
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
