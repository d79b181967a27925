package places

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sidequest/backend/internal/domain/providers"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

const (
	googlePlacesBaseURL = "https://places.googleapis.com/v1"
	maxNearbyResults    = 20
	photoMaxWidthPx     = 800
	photoCacheTTL       = 60 * 60 * 24
	defaultHTTPTimeout  = 8 * time.Second
)

// nearbyFieldMask lists the place fields requested from searchNearby
var nearbyFieldMask = strings.Join([]string{
	"places.id",
	"places.displayName",
	"places.rating",
	"places.userRatingCount",
	"places.location",
	"places.formattedAddress",
	"places.editorialSummary",
	"places.nationalPhoneNumber",
	"places.websiteUri",
	"places.regularOpeningHours.weekdayDescriptions",
	"places.types",
	"places.primaryType",
	"places.photos.name",
}, ",")

// GooglePlaceSource implements PlaceSource with the Google Places API.
type GooglePlaceSource struct {
	apiKey     string
	httpClient *http.Client
	cache      providers.CacheProvider
	baseURL    string
}

// NewGooglePlaceSource creates a new Google place source. cache may be nil.
func NewGooglePlaceSource(apiKey string, cache providers.CacheProvider) providers.PlaceSource {
	return NewGooglePlaceSourceWithOptions(apiKey, cache, googlePlacesBaseURL, nil)
}

// NewGooglePlaceSourceWithOptions allows overriding base URL and HTTP client (used for tests).
func NewGooglePlaceSourceWithOptions(apiKey string, cache providers.CacheProvider, baseURL string, httpClient *http.Client) providers.PlaceSource {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = googlePlacesBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GooglePlaceSource{
		apiKey:     apiKey,
		httpClient: httpClient,
		cache:      cache,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// Search returns up to maxResults places around a center point
func (g *GooglePlaceSource) Search(ctx context.Context, lat, lon float64, radiusMeters float64, maxResults int) ([]*providers.Place, error) {
	if g.apiKey == "" {
		return nil, apperrors.NewExternalError("google places api key is required", nil)
	}
	if radiusMeters <= 0 {
		return nil, apperrors.NewValidationError("radius must be positive")
	}
	if maxResults <= 0 || maxResults > maxNearbyResults {
		maxResults = maxNearbyResults
	}

	body, err := json.Marshal(nearbyRequest{
		MaxResultCount: maxResults,
		LocationRestriction: locationRestriction{
			Circle: circle{
				Center: latLng{Latitude: lat, Longitude: lon},
				Radius: radiusMeters,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode nearby search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/places:searchNearby", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build nearby search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", g.apiKey)
	req.Header.Set("X-Goog-FieldMask", nearbyFieldMask)

	var payload nearbyResponse
	if err := g.do(req, &payload); err != nil {
		return nil, err
	}

	places := make([]*providers.Place, 0, len(payload.Places))
	for _, p := range payload.Places {
		places = append(places, p.toPlace())
	}
	return places, nil
}

// ResolvePhoto turns a photo resource name into a fetchable URI
func (g *GooglePlaceSource) ResolvePhoto(ctx context.Context, photoRef string) (string, error) {
	photoRef = strings.TrimSpace(photoRef)
	if photoRef == "" {
		return "", nil
	}

	cacheKey := "places:photo:" + hashKey(photoRef)
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			return string(cached), nil
		}
	}

	params := url.Values{}
	params.Set("maxWidthPx", fmt.Sprintf("%d", photoMaxWidthPx))
	params.Set("skipHttpRedirect", "true")
	params.Set("key", g.apiKey)
	reqURL := fmt.Sprintf("%s/%s/media?%s", g.baseURL, strings.TrimPrefix(photoRef, "/"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build photo request: %w", err)
	}

	var payload photoMediaResponse
	if err := g.do(req, &payload); err != nil {
		return "", err
	}

	if g.cache != nil && payload.PhotoURI != "" {
		_ = g.cache.Set(ctx, cacheKey, []byte(payload.PhotoURI), photoCacheTTL)
	}
	return payload.PhotoURI, nil
}

func (g *GooglePlaceSource) do(req *http.Request, out interface{}) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return apperrors.NewExternalError("places request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return apperrors.NewExternalError(fmt.Sprintf("places request returned status %d: %s", resp.StatusCode, apiErr.Error.Message), nil)
		}
		return apperrors.NewExternalError(fmt.Sprintf("places request returned status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewExternalError("failed to decode places response", err)
	}
	return nil
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

type nearbyRequest struct {
	MaxResultCount      int                 `json:"maxResultCount"`
	LocationRestriction locationRestriction `json:"locationRestriction"`
}

type locationRestriction struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type localizedText struct {
	Text string `json:"text"`
}

type nearbyResponse struct {
	Places []googlePlace `json:"places"`
}

type googlePlace struct {
	ID                  string        `json:"id"`
	DisplayName         localizedText `json:"displayName"`
	Rating              float64       `json:"rating"`
	UserRatingCount     int           `json:"userRatingCount"`
	Location            latLng        `json:"location"`
	FormattedAddress    string        `json:"formattedAddress"`
	EditorialSummary    localizedText `json:"editorialSummary"`
	NationalPhoneNumber string        `json:"nationalPhoneNumber"`
	WebsiteURI          string        `json:"websiteUri"`
	RegularOpeningHours struct {
		WeekdayDescriptions []string `json:"weekdayDescriptions"`
	} `json:"regularOpeningHours"`
	Types       []string `json:"types"`
	PrimaryType string   `json:"primaryType"`
	Photos      []struct {
		Name string `json:"name"`
	} `json:"photos"`
}

func (p googlePlace) toPlace() *providers.Place {
	refs := make([]string, 0, len(p.Photos))
	for _, photo := range p.Photos {
		if photo.Name != "" {
			refs = append(refs, photo.Name)
		}
	}
	return &providers.Place{
		ID:              p.ID,
		Name:            p.DisplayName.Text,
		Rating:          p.Rating,
		UserRatingCount: p.UserRatingCount,
		Latitude:        p.Location.Latitude,
		Longitude:       p.Location.Longitude,
		Address:         p.FormattedAddress,
		Summary:         p.EditorialSummary.Text,
		Phone:           p.NationalPhoneNumber,
		Website:         p.WebsiteURI,
		OpeningHours:    p.RegularOpeningHours.WeekdayDescriptions,
		Types:           p.Types,
		PrimaryType:     p.PrimaryType,
		PhotoRefs:       refs,
	}
}

type photoMediaResponse struct {
	Name     string `json:"name"`
	PhotoURI string `json:"photoUri"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
