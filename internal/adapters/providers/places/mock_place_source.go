package places

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sidequest/backend/internal/domain/providers"
)

// MockPlaceSource serves a fixed set of places for local development
type MockPlaceSource struct {
	places []*providers.Place
}

// NewMockPlaceSource creates a mock place source seeded with a few venues
// in lower Manhattan.
func NewMockPlaceSource() providers.PlaceSource {
	return &MockPlaceSource{places: defaultMockPlaces()}
}

// NewMockPlaceSourceWith creates a mock place source over the given places
func NewMockPlaceSourceWith(places []*providers.Place) providers.PlaceSource {
	return &MockPlaceSource{places: places}
}

// Search returns seeded places within the radius, nearest first
func (m *MockPlaceSource) Search(ctx context.Context, lat, lon float64, radiusMeters float64, maxResults int) ([]*providers.Place, error) {
	type hit struct {
		place    *providers.Place
		distance float64
	}

	var hits []hit
	for _, p := range m.places {
		d := DistanceMeters(lat, lon, p.Latitude, p.Longitude)
		if d <= radiusMeters {
			hits = append(hits, hit{place: p, distance: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })

	if maxResults > 0 && len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	out := make([]*providers.Place, len(hits))
	for i, h := range hits {
		out[i] = h.place
	}
	return out, nil
}

// ResolvePhoto returns a placeholder image URL
func (m *MockPlaceSource) ResolvePhoto(ctx context.Context, photoRef string) (string, error) {
	if photoRef == "" {
		return "", nil
	}
	return fmt.Sprintf("https://picsum.photos/seed/%s/800/600", photoRef), nil
}

// DistanceMeters returns the great-circle distance between two points
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusMeters = 6371000.0

	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	deltaLat := toRadians(lat2 - lat1)
	deltaLon := toRadians(lon2 - lon1)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func defaultMockPlaces() []*providers.Place {
	return []*providers.Place{
		{ID: "mock-joes-pizza", Name: "Joe's Pizza", Rating: 4.6, UserRatingCount: 2100, Latitude: 40.7306, Longitude: -74.0021, Address: "7 Carmine St, New York, NY", PrimaryType: "pizza_restaurant", Types: []string{"restaurant", "food"}, PhotoRefs: []string{"joes"}},
		{ID: "mock-dead-rabbit", Name: "The Dead Rabbit", Rating: 4.7, UserRatingCount: 5300, Latitude: 40.7033, Longitude: -74.0110, Address: "30 Water St, New York, NY", PrimaryType: "bar", Types: []string{"bar"}, PhotoRefs: []string{"rabbit"}},
		{ID: "mock-la-colombe", Name: "La Colombe Coffee", Rating: 4.5, UserRatingCount: 980, Latitude: 40.7194, Longitude: -74.0026, Address: "319 Church St, New York, NY", PrimaryType: "coffee_shop", Types: []string{"cafe"}},
		{ID: "mock-film-forum", Name: "Film Forum", Rating: 4.8, UserRatingCount: 1500, Latitude: 40.7286, Longitude: -74.0045, Address: "209 W Houston St, New York, NY", PrimaryType: "movie_theater"},
		{ID: "mock-hudson-river-park", Name: "Hudson River Park", Rating: 4.7, UserRatingCount: 12000, Latitude: 40.7270, Longitude: -74.0110, Address: "Hudson River Greenway, New York, NY", PrimaryType: "park"},
		{ID: "mock-strand", Name: "Strand Book Store", Rating: 4.7, UserRatingCount: 14000, Latitude: 40.7332, Longitude: -73.9907, Address: "828 Broadway, New York, NY", PrimaryType: "book_store"},
	}
}
