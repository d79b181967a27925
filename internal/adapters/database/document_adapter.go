package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/lib/pq"

	"github.com/sidequest/backend/internal/adapters/store"
	"github.com/sidequest/backend/internal/domain/providers"
	"github.com/sidequest/backend/internal/infrastructure/clients/postgres"
	"github.com/sidequest/backend/internal/infrastructure/observability"
	apperrors "github.com/sidequest/backend/pkg/errors"
)

const (
	documentsTable = "documents"
	batchRows      = 500
)

// DocumentSchema creates the table backing DocumentAdapter
const DocumentSchema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    data       JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data jsonb_path_ops);
`

// DocumentAdapter stores documents as JSONB rows keyed by collection and id.
// Nested collections use their full path ("users/u1/quests") as the
// collection name.
type DocumentAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

var _ providers.DocumentStore = (*DocumentAdapter)(nil)

// NewDocumentAdapter creates a Postgres-backed document store
func NewDocumentAdapter(client *postgres.Client, metrics *observability.Metrics) *DocumentAdapter {
	return &DocumentAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// EnsureSchema creates the documents table if it is missing
func (a *DocumentAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.client.DB().ExecContext(ctx, DocumentSchema); err != nil {
		return translateSQLError("create documents table", err)
	}
	return nil
}

// Get fetches one document; a missing document yields nil
func (a *DocumentAdapter) Get(ctx context.Context, collection, id string) (*providers.Document, error) {
	defer a.observe(ctx, "get", time.Now())

	query, args, err := a.db.From(documentsTable).
		Select("data").
		Where(goqu.C("collection").Eq(collection), goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build document get query", err)
	}

	var raw []byte
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translateSQLError("get "+collection+"/"+id, err)
	}
	return decodeRow(id, raw)
}

// Set replaces a document
func (a *DocumentAdapter) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	defer a.observe(ctx, "set", time.Now())

	row, err := documentRecord(collection, id, data)
	if err != nil {
		return err
	}
	query, args, err := a.upsert(row).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build document upsert query", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return translateSQLError("set "+collection+"/"+id, err)
	}
	return nil
}

// Update applies field updates to an existing document inside a row lock
func (a *DocumentAdapter) Update(ctx context.Context, collection, id string, updates []providers.FieldUpdate) error {
	defer a.observe(ctx, "update", time.Now())

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return translateSQLError("begin update", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	selectSQL, args, err := a.db.From(documentsTable).
		Select("data").
		Where(goqu.C("collection").Eq(collection), goqu.C("id").Eq(id)).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build document lock query", err)
	}

	var raw []byte
	err = tx.QueryRowContext(ctx, selectSQL, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError(fmt.Sprintf("document %s/%s not found", collection, id))
	}
	if err != nil {
		return translateSQLError("lock "+collection+"/"+id, err)
	}

	doc, err := decodeRow(id, raw)
	if err != nil {
		return err
	}
	if err := store.ApplyUpdates(doc.Data, updates); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	encoded, err := json.Marshal(doc.Data)
	if err != nil {
		return apperrors.NewInternalError("failed to encode document", err)
	}

	updateSQL, args, err := a.db.Update(documentsTable).
		Set(goqu.Record{
			"data":       goqu.L("?::jsonb", string(encoded)),
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.C("collection").Eq(collection), goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build document update query", err)
	}
	if _, err := tx.ExecContext(ctx, updateSQL, args...); err != nil {
		return translateSQLError("update "+collection+"/"+id, err)
	}
	if err := tx.Commit(); err != nil {
		return translateSQLError("commit update", err)
	}
	return nil
}

// Query returns documents matching every filter, ordered by id
func (a *DocumentAdapter) Query(ctx context.Context, q providers.Query) ([]*providers.Document, error) {
	ctx, span := observability.StartSpan(ctx, "DocumentAdapter.Query")
	defer span.End()
	defer a.observe(ctx, "query", time.Now())

	where := []exp.Expression{goqu.C("collection").Eq(q.Collection)}
	for _, f := range q.Filters {
		expr, err := filterExpression(f)
		if err != nil {
			return nil, err
		}
		where = append(where, expr)
	}

	ds := a.db.From(documentsTable).
		Select("id", "data").
		Where(where...).
		Order(goqu.C("id").Asc())
	if q.Limit > 0 {
		ds = ds.Limit(uint(q.Limit))
	}

	docs, err := a.scanDocuments(ctx, ds)
	if err != nil {
		observability.RecordError(span, err)
	}
	return docs, err
}

// QueryIn returns documents whose field is one of ids
func (a *DocumentAdapter) QueryIn(ctx context.Context, collection, field string, ids []string) ([]*providers.Document, error) {
	if len(ids) > providers.MaxInClauseSize {
		return nil, apperrors.NewValidationError(fmt.Sprintf("in clause accepts at most %d values, got %d", providers.MaxInClauseSize, len(ids)))
	}
	if len(ids) == 0 {
		return []*providers.Document{}, nil
	}
	return a.Query(ctx, providers.Query{
		Collection: collection,
		Filters:    []providers.Filter{{Field: field, Op: providers.OpIn, Value: ids}},
	})
}

// BatchSet writes every document in one transaction
func (a *DocumentAdapter) BatchSet(ctx context.Context, writes []providers.BatchWrite) error {
	if len(writes) == 0 {
		return nil
	}
	defer a.observe(ctx, "batch_set", time.Now())

	// a single INSERT cannot touch the same key twice; last write wins
	index := make(map[string]int, len(writes))
	rows := make([]interface{}, 0, len(writes))
	for _, w := range writes {
		row, err := documentRecord(w.Collection, w.ID, w.Data)
		if err != nil {
			return err
		}
		key := w.Collection + "\x00" + w.ID
		if i, ok := index[key]; ok {
			rows[i] = row
			continue
		}
		index[key] = len(rows)
		rows = append(rows, row)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return translateSQLError("begin batch", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for start := 0; start < len(rows); start += batchRows {
		end := start + batchRows
		if end > len(rows) {
			end = len(rows)
		}
		query, args, err := a.upsert(rows[start:end]...).ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build batch upsert query", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return translateSQLError("batch upsert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return translateSQLError("commit batch", err)
	}
	return nil
}

func (a *DocumentAdapter) upsert(rows ...interface{}) *goqu.InsertDataset {
	return a.db.Insert(documentsTable).
		Rows(rows...).
		OnConflict(goqu.DoUpdate("collection, id", goqu.Record{
			"data":       goqu.L("EXCLUDED.data"),
			"updated_at": goqu.L("EXCLUDED.updated_at"),
		}))
}

func (a *DocumentAdapter) scanDocuments(ctx context.Context, ds *goqu.SelectDataset) ([]*providers.Document, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build document query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateSQLError("query documents", err)
	}
	defer rows.Close()

	docs := []*providers.Document{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, translateSQLError("scan document", err)
		}
		doc, err := decodeRow(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, translateSQLError("iterate documents", err)
	}
	return docs, nil
}

func (a *DocumentAdapter) observe(ctx context.Context, op string, start time.Time) {
	observability.RecordDBMetric(ctx, a.metrics, "documents."+op, time.Since(start))
}

func documentRecord(collection, id string, data map[string]interface{}) (goqu.Record, error) {
	if collection == "" || id == "" {
		return nil, apperrors.NewValidationError("collection and id are required")
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode document", err)
	}
	return goqu.Record{
		"collection": collection,
		"id":         id,
		"data":       goqu.L("?::jsonb", string(encoded)),
		"updated_at": time.Now().UTC(),
	}, nil
}

func decodeRow(id string, raw []byte) (*providers.Document, error) {
	data := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, apperrors.NewInternalError("failed to decode document "+id, err)
		}
	}
	return &providers.Document{ID: id, Data: data}, nil
}

// filterExpression turns a filter into a JSONB predicate. Equality and
// array membership use containment so they match non-string values too.
func filterExpression(f providers.Filter) (exp.Expression, error) {
	if f.Field == providers.FieldDocumentID {
		return idExpression(f)
	}

	switch f.Op {
	case providers.OpEqual:
		return containment(f.Field, f.Value)
	case providers.OpArrayContains:
		return containment(f.Field, []interface{}{f.Value})
	case providers.OpIn:
		values, err := stringValues(f.Value)
		if err != nil {
			return nil, err
		}
		return jsonText(f.Field).In(values...), nil
	case providers.OpNotIn:
		values, err := stringValues(f.Value)
		if err != nil {
			return nil, err
		}
		// rows without the field are kept, as the in-memory store does
		return goqu.Or(
			jsonText(f.Field).IsNull(),
			jsonText(f.Field).NotIn(values...),
		), nil
	}
	return nil, apperrors.NewValidationError("unsupported filter operator: " + string(f.Op))
}

func idExpression(f providers.Filter) (exp.Expression, error) {
	switch f.Op {
	case providers.OpEqual:
		return goqu.C("id").Eq(f.Value), nil
	case providers.OpIn, providers.OpNotIn:
		values, err := stringValues(f.Value)
		if err != nil {
			return nil, err
		}
		if f.Op == providers.OpIn {
			return goqu.C("id").In(values...), nil
		}
		return goqu.C("id").NotIn(values...), nil
	}
	return nil, apperrors.NewValidationError("unsupported operator on document id: " + string(f.Op))
}

func jsonText(field string) exp.LiteralExpression {
	return goqu.L(`"data" #>> ?`, "{"+strings.ReplaceAll(field, ".", ",")+"}")
}

func containment(field string, value interface{}) (exp.Expression, error) {
	parts := strings.Split(field, ".")
	var doc interface{} = value
	for i := len(parts) - 1; i >= 0; i-- {
		doc = map[string]interface{}{parts[i]: doc}
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.NewValidationError("filter value is not encodable: " + err.Error())
	}
	return goqu.L(`"data" @> ?::jsonb`, string(encoded)), nil
}

func stringValues(v interface{}) ([]interface{}, error) {
	switch vals := v.(type) {
	case []string:
		out := make([]interface{}, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(vals))
		for i, s := range vals {
			out[i] = fmt.Sprint(s)
		}
		return out, nil
	}
	return nil, apperrors.NewValidationError(fmt.Sprintf("in filter needs a list, got %T", v))
}

// translateSQLError maps driver failures onto store error types
func translateSQLError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewStoreTimeoutError(op+" timed out", err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return apperrors.NewStoreUnavailableError(op+" failed", err)
		}
		if pqErr.Code == "40001" || pqErr.Code == "40P01" {
			return apperrors.NewConflictError(op + " conflicted with a concurrent write")
		}
		return apperrors.NewInternalError(op+" failed", err)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return apperrors.NewStoreUnavailableError(op+" failed", err)
	}
	return apperrors.NewInternalError(op+" failed", err)
}
