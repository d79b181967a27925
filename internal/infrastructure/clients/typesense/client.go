package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/sidequest/backend/pkg/config"
	"github.com/sidequest/backend/pkg/retry"
)

// EstablishmentsCollection is the search index ingestion writes to
const EstablishmentsCollection = "establishments"

// Client wraps the typesense-go client used for establishment search
type Client struct {
	client *typesense.Client
}

// NewClient connects to Typesense. Search is optional, so a server that is
// still down after a few attempts is reported instead of blocking startup.
func NewClient(ctx context.Context, cfg *config.TypesenseConfig) (*Client, error) {
	c := &Client{client: typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 5
	err := retry.DoWithLog(ctx, retryCfg, "Typesense", func() error {
		return c.Ping(ctx)
	}, func(attempt int, err error, nextDelay time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("Typesense not reachable yet")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return c, nil
}

func (c *Client) Client() *typesense.Client {
	return c.client
}

// Ping calls the health endpoint; an unhealthy answer is an error
func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.client.Health(ctx, 2*time.Second)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("typesense reports unhealthy")
	}
	return nil
}

// EstablishmentSchema is the search index layout for establishments
func EstablishmentSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: EstablishmentsCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "category", Type: "string", Facet: pointer.True()},
			{Name: "location", Type: "geopoint"},
			{Name: "rating", Type: "float", Facet: pointer.True()},
			{Name: "user_rating_count", Type: "int32"},
			{Name: "address", Type: "string", Optional: pointer.True()},
			{Name: "summary", Type: "string", Optional: pointer.True()},
			{Name: "tags", Type: "string[]", Optional: pointer.True()},
			{Name: "updated_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("updated_at"),
	}
}

// ResetSchema drops the establishments collection and creates it again
func (c *Client) ResetSchema(ctx context.Context) error {
	if _, err := c.client.Collection(EstablishmentsCollection).Delete(ctx); err != nil {
		log.Warn().Err(err).Str("collection", EstablishmentsCollection).Msg("failed to delete collection, creating anyway")
	}
	return c.InitSchema(ctx)
}

// InitSchema creates the establishments collection unless it exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == EstablishmentsCollection {
			log.Debug().Str("collection", EstablishmentsCollection).Msg("Typesense collection already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, EstablishmentSchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", EstablishmentsCollection).Msg("created Typesense collection")
	return nil
}
