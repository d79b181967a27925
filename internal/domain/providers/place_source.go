package providers

import (
	"context"
)

// Place is a raw result from a places lookup
type Place struct {
	ID              string
	Name            string
	Rating          float64
	UserRatingCount int
	Latitude        float64
	Longitude       float64
	Address         string
	Summary         string
	Phone           string
	Website         string
	OpeningHours    []string
	Types           []string
	PrimaryType     string
	PhotoRefs       []string
}

// PlaceSource defines the interface for third-party place lookup
type PlaceSource interface {
	// Search returns up to maxResults places around a center point
	Search(ctx context.Context, lat, lon float64, radiusMeters float64, maxResults int) ([]*Place, error)

	// ResolvePhoto turns a photo reference into a fetchable URI; empty when unavailable
	ResolvePhoto(ctx context.Context, photoRef string) (string, error)
}
