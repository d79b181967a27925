package firebase

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sidequest/backend/pkg/config"
	"github.com/sidequest/backend/pkg/retry"
)

// Client holds the Firebase app and the service clients derived from it
type Client struct {
	app       *firebase.App
	firestore *firestore.Client
	auth      *auth.Client
}

// NewClient initializes the Firebase app and verifies Firestore is reachable
func NewClient(ctx context.Context, cfg *config.FirebaseConfig) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 5
	err = retry.DoWithLog(ctx, retryCfg, "Firestore",
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_, err := fs.Collection("_health").Doc("ping").Get(pingCtx)
			if err != nil && status.Code(err) != codes.NotFound {
				return err
			}
			return nil
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Msg("Firestore connection attempt failed")
		},
	)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to reach firestore: %w", err)
	}

	log.Info().Str("project_id", cfg.ProjectID).Msg("connected to Firestore")
	return &Client{app: app, firestore: fs}, nil
}

// Firestore returns the Firestore client
func (c *Client) Firestore() *firestore.Client {
	return c.firestore
}

// Auth returns the Firebase Auth client, creating it on first use
func (c *Client) Auth(ctx context.Context) (*auth.Client, error) {
	if c.auth != nil {
		return c.auth, nil
	}
	a, err := c.app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}
	c.auth = a
	return a, nil
}

// Close releases the Firestore connection
func (c *Client) Close() error {
	return c.firestore.Close()
}
