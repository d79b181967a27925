package services

// Document store collection names
const (
	CollectionEstablishments = "establishments"
	CollectionUsers          = "users"
	CollectionQuests         = "quests"
	CollectionReviews        = "reviews"
)

// userQuestsCollection is the per-user completion sub-collection
func userQuestsCollection(uid string) string {
	return CollectionUsers + "/" + uid + "/" + CollectionQuests
}
