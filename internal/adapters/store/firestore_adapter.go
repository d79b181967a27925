package store

import (
	"context"
	stderrors "errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/observability"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

// maxBatchWrites is Firestore's limit on writes per batch commit
const maxBatchWrites = 500

// FirestoreAdapter implements DocumentStore on Cloud Firestore
type FirestoreAdapter struct {
	client *firestore.Client
}

// NewFirestoreAdapter creates a Firestore-backed document store
func NewFirestoreAdapter(client *firestore.Client) providers.DocumentStore {
	return &FirestoreAdapter{client: client}
}

// Get fetches one document; a missing document yields (nil, nil)
func (a *FirestoreAdapter) Get(ctx context.Context, collection, id string) (*providers.Document, error) {
	ctx, span := observability.StartSpan(ctx, "firestore.Get")
	defer span.End()
	span.SetAttributes(attribute.String("db.collection", collection))

	snap, err := a.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		observability.RecordError(span, err)
		return nil, translateError("get "+collection+"/"+id, err)
	}
	return &providers.Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

// Set creates or replaces a document
func (a *FirestoreAdapter) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	ctx, span := observability.StartSpan(ctx, "firestore.Set")
	defer span.End()
	span.SetAttributes(attribute.String("db.collection", collection))

	if _, err := a.client.Collection(collection).Doc(id).Set(ctx, data); err != nil {
		observability.RecordError(span, err)
		return translateError("set "+collection+"/"+id, err)
	}
	return nil
}

// Update applies field transforms server-side so concurrent updates never lose array members
func (a *FirestoreAdapter) Update(ctx context.Context, collection, id string, updates []providers.FieldUpdate) error {
	ctx, span := observability.StartSpan(ctx, "firestore.Update")
	defer span.End()
	span.SetAttributes(attribute.String("db.collection", collection))

	ref := a.client.Collection(collection).Doc(id)
	var err error
	if needsTransaction(updates) {
		err = a.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			snap, err := tx.Get(ref)
			if err != nil {
				return err
			}
			fsUpdates, err := resolveUpdates(snap.Data(), updates)
			if err != nil {
				return err
			}
			if len(fsUpdates) == 0 {
				return nil
			}
			return tx.Update(ref, fsUpdates)
		})
	} else {
		var fsUpdates []firestore.Update
		fsUpdates, err = resolveUpdates(nil, updates)
		if err == nil {
			_, err = ref.Update(ctx, fsUpdates)
		}
	}
	if err != nil {
		observability.RecordError(span, err)
		var appErr *apperrors.AppError
		if stderrors.As(err, &appErr) {
			return err
		}
		if status.Code(err) == codes.NotFound {
			return apperrors.NewNotFoundError(fmt.Sprintf("%s/%s not found", collection, id))
		}
		return translateError("update "+collection+"/"+id, err)
	}
	return nil
}

// needsTransaction reports whether any update depends on the stored value
func needsTransaction(updates []providers.FieldUpdate) bool {
	for _, u := range updates {
		if u.Kind == providers.UpdateMax {
			return true
		}
	}
	return false
}

// resolveUpdates converts updates to Firestore transforms. Max updates are
// resolved against current and dropped when they would not raise the field.
func resolveUpdates(current map[string]interface{}, updates []providers.FieldUpdate) ([]firestore.Update, error) {
	fsUpdates := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		if u.Kind == providers.UpdateMax {
			stored := lookupPath(current, u.Path)
			raised, err := maxNumber(stored, u.Value)
			if err != nil {
				return nil, apperrors.NewValidationError(fmt.Sprintf("max %s: %v", u.Path, err))
			}
			if stored != nil && raised == stored {
				continue
			}
			fsUpdates = append(fsUpdates, firestore.Update{Path: u.Path, Value: raised})
			continue
		}
		value, err := toFirestoreValue(u)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		fsUpdates = append(fsUpdates, firestore.Update{Path: u.Path, Value: value})
	}
	return fsUpdates, nil
}

// Query runs a predicate query in Firestore's native order
func (a *FirestoreAdapter) Query(ctx context.Context, q providers.Query) ([]*providers.Document, error) {
	ctx, span := observability.StartSpan(ctx, "firestore.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.collection", q.Collection),
		attribute.Int("db.limit", q.Limit),
	)

	coll := a.client.Collection(q.Collection)
	query := coll.Query
	for _, f := range q.Filters {
		value := f.Value
		if f.Field == providers.FieldDocumentID {
			value = documentRefs(coll, f.Value)
		}
		query = query.Where(f.Field, string(f.Op), value)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	docs, err := a.collect(ctx, query)
	if err != nil {
		observability.RecordError(span, err)
		return nil, translateError("query "+q.Collection, err)
	}
	return docs, nil
}

// QueryIn runs a single IN query of at most MaxInClauseSize ids
func (a *FirestoreAdapter) QueryIn(ctx context.Context, collection, field string, ids []string) ([]*providers.Document, error) {
	if len(ids) > providers.MaxInClauseSize {
		return nil, apperrors.NewValidationError(fmt.Sprintf("IN query supports at most %d values, got %d", providers.MaxInClauseSize, len(ids)))
	}
	if len(ids) == 0 {
		return []*providers.Document{}, nil
	}

	return a.Query(ctx, providers.Query{
		Collection: collection,
		Filters:    []providers.Filter{{Field: field, Op: providers.OpIn, Value: ids}},
	})
}

// BatchSet commits writes in batches of at most 500
func (a *FirestoreAdapter) BatchSet(ctx context.Context, writes []providers.BatchWrite) error {
	ctx, span := observability.StartSpan(ctx, "firestore.BatchSet")
	defer span.End()
	span.SetAttributes(attribute.Int("db.writes", len(writes)))

	for start := 0; start < len(writes); start += maxBatchWrites {
		end := start + maxBatchWrites
		if end > len(writes) {
			end = len(writes)
		}

		batch := a.client.Batch()
		for _, w := range writes[start:end] {
			batch.Set(a.client.Collection(w.Collection).Doc(w.ID), w.Data)
		}
		if _, err := batch.Commit(ctx); err != nil {
			observability.RecordError(span, err)
			if start > 0 {
				return apperrors.NewPartialWriteError(fmt.Sprintf("batch commit failed after %d of %d writes", start, len(writes)), err)
			}
			return translateError("batch set", err)
		}
	}
	return nil
}

func (a *FirestoreAdapter) collect(ctx context.Context, query firestore.Query) ([]*providers.Document, error) {
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	docs := make([]*providers.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, &providers.Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

func toFirestoreValue(u providers.FieldUpdate) (interface{}, error) {
	switch u.Kind {
	case providers.UpdateSet:
		return u.Value, nil
	case providers.UpdateArrayUnion:
		return firestore.ArrayUnion(toSlice(u.Value)...), nil
	case providers.UpdateArrayRemove:
		return firestore.ArrayRemove(toSlice(u.Value)...), nil
	default:
		return nil, fmt.Errorf("unsupported update kind %d on %s", u.Kind, u.Path)
	}
}

// documentRefs converts id filter values into document references, which is
// what Firestore expects when filtering on __name__.
func documentRefs(coll *firestore.CollectionRef, value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return coll.Doc(v)
	default:
		items := toSlice(value)
		refs := make([]*firestore.DocumentRef, 0, len(items))
		for _, item := range items {
			if id, ok := item.(string); ok {
				refs = append(refs, coll.Doc(id))
			}
		}
		return refs
	}
}

func translateError(op string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewStoreTimeoutError(op, err)
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return apperrors.NewStoreTimeoutError(op, err)
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return apperrors.NewStoreUnavailableError(op, err)
	case codes.InvalidArgument, codes.FailedPrecondition:
		return apperrors.NewValidationError(fmt.Sprintf("%s: %v", op, err))
	default:
		return apperrors.NewInternalError(op, err)
	}
}
