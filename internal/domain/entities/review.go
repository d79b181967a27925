package entities

import "time"

// Review is a user's rating of an establishment. At most one exists
// per (UserID, EstablishmentID).
type Review struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	EstablishmentID string    `json:"establishmentId"`
	Rating          int       `json:"rating"` // 1-5
	ReviewText      string    `json:"reviewText"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ReviewWithEstablishment pairs a review with the place it is about
type ReviewWithEstablishment struct {
	Review        *Review        `json:"review"`
	Establishment *Establishment `json:"establishment,omitempty"`
}
