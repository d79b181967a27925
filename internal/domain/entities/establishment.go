package entities

import "time"

// Category tags assigned to establishments at ingestion time
const (
	CategoryFood          = "Food"
	CategoryBars          = "Bars"
	CategoryCafes         = "Cafes"
	CategoryEntertainment = "Entertainment"
	CategoryOutdoors      = "Outdoors"
	CategoryShopping      = "Shopping"
	CategoryOther         = "Other"
)

// Categories lists every category tag in display order
var Categories = []string{
	CategoryFood,
	CategoryBars,
	CategoryCafes,
	CategoryEntertainment,
	CategoryOutdoors,
	CategoryShopping,
	CategoryOther,
}

// GeoPoint is a latitude/longitude pair
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Establishment is a place users can discover, review and quest at.
// Written by the ingestion job and read by everything else.
type Establishment struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Rating          float64   `json:"rating"`
	UserRatingCount int       `json:"userRatingCount"`
	Location        GeoPoint  `json:"location"`
	OpeningHours    []string  `json:"openingHours"`
	Address         string    `json:"address"`
	Summary         string    `json:"summary"`
	Phone           string    `json:"phone"`
	PhotoRefs       []string  `json:"photoRefs"`
	PhotoURI        string    `json:"photoUri"`
	Website         string    `json:"website"`
	Category        string    `json:"category"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// IsValidCategory reports whether c is a known category tag
func IsValidCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
