// Package loaders batches per-request id lookups so a handler resolving many
// references issues chunked IN queries instead of one read per id.
package loaders

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/sidequest/backend/internal/domain/entities"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

const batchWait = 2 * time.Millisecond

// EstablishmentFetcher loads establishments by id
type EstablishmentFetcher interface {
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Establishment, error)
}

// ProfileFetcher loads profiles by uid
type ProfileFetcher interface {
	GetByIDs(ctx context.Context, uids []string) ([]*entities.UserProfile, error)
}

// Loaders contains all the dataloaders for one request
type Loaders struct {
	EstablishmentLoader *dataloader.Loader[string, *entities.Establishment]
	ProfileLoader       *dataloader.Loader[string, *entities.UserProfile]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(establishments EstablishmentFetcher, profiles ProfileFetcher) *Loaders {
	return &Loaders{
		EstablishmentLoader: dataloader.NewBatchedLoader(
			batchFunc(establishments.GetByIDs, func(e *entities.Establishment) string { return e.ID }, "establishment"),
			dataloader.WithWait[string, *entities.Establishment](batchWait),
		),
		ProfileLoader: dataloader.NewBatchedLoader(
			batchFunc(profiles.GetByIDs, func(p *entities.UserProfile) string { return p.UID }, "profile"),
			dataloader.WithWait[string, *entities.UserProfile](batchWait),
		),
	}
}

func batchFunc[V any](fetch func(context.Context, []string) ([]V, error), key func(V) string, kind string) dataloader.BatchFunc[string, V] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[V] {
		results := make([]*dataloader.Result[V], len(keys))
		items, err := fetch(ctx, keys)

		byKey := make(map[string]V, len(items))
		if err == nil {
			for _, item := range items {
				byKey[key(item)] = item
			}
		}

		for i, k := range keys {
			if err != nil {
				results[i] = &dataloader.Result[V]{Error: err}
			} else if item, ok := byKey[k]; ok {
				results[i] = &dataloader.Result[V]{Data: item}
			} else {
				results[i] = &dataloader.Result[V]{Error: apperrors.NewNotFoundError(fmt.Sprintf("%s %s not found", kind, k))}
			}
		}
		return results
	}
}

// For returns the loaders for a given context, or nil if none are attached
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// LoadEstablishments resolves ids in order, skipping ids that do not exist
func (l *Loaders) LoadEstablishments(ctx context.Context, ids []string) ([]*entities.Establishment, error) {
	return collect(l.EstablishmentLoader.LoadMany(ctx, ids)())
}

// LoadProfiles resolves uids in order, skipping uids that do not exist
func (l *Loaders) LoadProfiles(ctx context.Context, uids []string) ([]*entities.UserProfile, error) {
	return collect(l.ProfileLoader.LoadMany(ctx, uids)())
}

func collect[V any](values []V, errs []error) ([]V, error) {
	out := make([]V, 0, len(values))
	for i, v := range values {
		if i < len(errs) && errs[i] != nil {
			if apperrors.IsType(errs[i], apperrors.ErrorTypeNotFound) {
				continue
			}
			return nil, errs[i]
		}
		out = append(out, v)
	}
	return out, nil
}
