package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sidequest/backend/internal/domain/entities"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/domain/repositories"
)

// IngestionRequest describes one area sweep
type IngestionRequest struct {
	Latitude       float64
	Longitude      float64
	RadiusMeters   float64
	MaxResults     int
	GenerateQuests bool
}

// IngestionSummary reports what a sweep wrote
type IngestionSummary struct {
	PlacesFetched         int `json:"places_fetched"`
	EstablishmentsCreated int `json:"establishments_created"`
	EstablishmentsUpdated int `json:"establishments_updated"`
	PhotosResolved        int `json:"photos_resolved"`
	Indexed               int `json:"indexed"`
	QuestsCreated         int `json:"quests_created"`
}

// IngestionService pulls places from a PlaceSource into the establishments collection.
type IngestionService struct {
	places  providers.PlaceSource
	store   providers.DocumentStore
	chunked *ChunkedQueryService
	search  repositories.EstablishmentSearchRepository
	quests  *QuestService
}

// NewIngestionService creates a new ingestion service. search and quests may be nil.
func NewIngestionService(
	places providers.PlaceSource,
	store providers.DocumentStore,
	chunked *ChunkedQueryService,
	search repositories.EstablishmentSearchRepository,
	quests *QuestService,
) *IngestionService {
	return &IngestionService{
		places:  places,
		store:   store,
		chunked: chunked,
		search:  search,
		quests:  quests,
	}
}

// Ingest fetches places around a point and upserts them as establishments
func (s *IngestionService) Ingest(ctx context.Context, req IngestionRequest) (*IngestionSummary, error) {
	if s.places == nil {
		return nil, fmt.Errorf("place source not configured")
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 20
	}

	summary := &IngestionSummary{}
	places, err := s.places.Search(ctx, req.Latitude, req.Longitude, req.RadiusMeters, req.MaxResults)
	if err != nil {
		return summary, err
	}
	summary.PlacesFetched = len(places)
	if len(places) == 0 {
		return summary, nil
	}

	ids := make([]string, 0, len(places))
	for _, p := range places {
		ids = append(ids, p.ID)
	}
	existing, err := s.chunked.FetchByIDs(ctx, CollectionEstablishments, uniqueIDs(ids))
	if err != nil {
		return summary, err
	}
	known := make(map[string]struct{}, len(existing))
	for _, doc := range existing {
		known[doc.ID] = struct{}{}
	}

	now := time.Now().UTC()
	establishments := make([]*entities.Establishment, 0, len(places))
	writes := make([]providers.BatchWrite, 0, len(places))
	var created []*entities.Establishment

	for _, p := range places {
		if p.ID == "" {
			continue
		}
		e := establishmentFromPlace(p, now)
		if len(p.PhotoRefs) > 0 {
			uri, err := s.places.ResolvePhoto(ctx, p.PhotoRefs[0])
			if err != nil {
				log.Warn().Err(err).Str("place_id", p.ID).Msg("photo lookup failed")
			} else if uri != "" {
				e.PhotoURI = uri
				summary.PhotosResolved++
			}
		}

		data, err := entities.ToDocument(e)
		if err != nil {
			return summary, fmt.Errorf("encode establishment %s: %w", e.ID, err)
		}
		writes = append(writes, providers.BatchWrite{Collection: CollectionEstablishments, ID: e.ID, Data: data})
		establishments = append(establishments, e)

		if _, ok := known[e.ID]; ok {
			summary.EstablishmentsUpdated++
		} else {
			summary.EstablishmentsCreated++
			created = append(created, e)
		}
	}

	if err := s.store.BatchSet(ctx, writes); err != nil {
		return summary, err
	}

	if s.search != nil {
		if err := s.search.BulkIndex(ctx, establishments); err != nil {
			log.Error().Err(err).Int("count", len(establishments)).Msg("failed to index establishments")
		} else {
			summary.Indexed = len(establishments)
		}
	}

	if req.GenerateQuests && s.quests != nil {
		for _, e := range created {
			if _, err := s.quests.GenerateFor(ctx, e); err != nil {
				log.Warn().Err(err).Str("establishment_id", e.ID).Msg("quest generation failed")
				continue
			}
			summary.QuestsCreated++
		}
	}

	return summary, nil
}

func establishmentFromPlace(p *providers.Place, now time.Time) *entities.Establishment {
	return &entities.Establishment{
		ID:              p.ID,
		Name:            p.Name,
		Rating:          p.Rating,
		UserRatingCount: p.UserRatingCount,
		Location:        entities.GeoPoint{Latitude: p.Latitude, Longitude: p.Longitude},
		OpeningHours:    nonNil(p.OpeningHours),
		Address:         p.Address,
		Summary:         p.Summary,
		Phone:           p.Phone,
		PhotoRefs:       nonNil(p.PhotoRefs),
		Website:         p.Website,
		Category:        CategoryForPlaceTypes(p.PrimaryType, p.Types),
		UpdatedAt:       now,
	}
}

var placeTypeCategories = map[string]string{
	"restaurant":         entities.CategoryFood,
	"meal_takeaway":      entities.CategoryFood,
	"meal_delivery":      entities.CategoryFood,
	"bakery":             entities.CategoryFood,
	"food":               entities.CategoryFood,
	"bar":                entities.CategoryBars,
	"pub":                entities.CategoryBars,
	"wine_bar":           entities.CategoryBars,
	"night_club":         entities.CategoryBars,
	"cafe":               entities.CategoryCafes,
	"coffee_shop":        entities.CategoryCafes,
	"tea_house":          entities.CategoryCafes,
	"movie_theater":      entities.CategoryEntertainment,
	"bowling_alley":      entities.CategoryEntertainment,
	"amusement_park":     entities.CategoryEntertainment,
	"museum":             entities.CategoryEntertainment,
	"art_gallery":        entities.CategoryEntertainment,
	"tourist_attraction": entities.CategoryEntertainment,
	"aquarium":           entities.CategoryEntertainment,
	"zoo":                entities.CategoryEntertainment,
	"park":               entities.CategoryOutdoors,
	"hiking_area":        entities.CategoryOutdoors,
	"campground":         entities.CategoryOutdoors,
	"beach":              entities.CategoryOutdoors,
	"national_park":      entities.CategoryOutdoors,
	"shopping_mall":      entities.CategoryShopping,
	"store":              entities.CategoryShopping,
	"market":             entities.CategoryShopping,
}

// CategoryForPlaceTypes maps place types onto a category tag. The primary type
// wins, then the first recognised entry of types.
func CategoryForPlaceTypes(primary string, types []string) string {
	candidates := append([]string{primary}, types...)
	for _, t := range candidates {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if c, ok := placeTypeCategories[t]; ok {
			return c
		}
		switch {
		case strings.HasSuffix(t, "_restaurant"):
			return entities.CategoryFood
		case strings.HasSuffix(t, "_bar"):
			return entities.CategoryBars
		case strings.HasSuffix(t, "_store"):
			return entities.CategoryShopping
		}
	}
	return entities.CategoryOther
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
