package providers

import (
	"context"
)

// MaxInClauseSize is the largest id list a single IN query may carry
const MaxInClauseSize = 10

// FieldDocumentID addresses the document id in filters instead of a data field
const FieldDocumentID = "__name__"

// FilterOp is a predicate operator supported by the store
type FilterOp string

const (
	OpEqual         FilterOp = "=="
	OpIn            FilterOp = "in"
	OpNotIn         FilterOp = "not-in"
	OpArrayContains FilterOp = "array-contains"
)

// Filter is a single field predicate
type Filter struct {
	Field string
	Op    FilterOp
	Value interface{}
}

// Query describes a simple predicate query over one collection.
// Results come back in the store's order; Limit <= 0 means unbounded.
type Query struct {
	Collection string
	Filters    []Filter
	Limit      int
}

// Document is a stored record and its id
type Document struct {
	ID   string
	Data map[string]interface{}
}

// UpdateKind selects how a field update is applied
type UpdateKind int

const (
	// UpdateSet replaces the field value
	UpdateSet UpdateKind = iota
	// UpdateArrayUnion appends values not already present
	UpdateArrayUnion
	// UpdateArrayRemove removes every occurrence of the values
	UpdateArrayRemove
	// UpdateMax raises a numeric field to the value and never lowers it
	UpdateMax
)

// FieldUpdate is a targeted change to one field of a document
type FieldUpdate struct {
	Path  string
	Kind  UpdateKind
	Value interface{}
}

// Set replaces a field
func Set(path string, value interface{}) FieldUpdate {
	return FieldUpdate{Path: path, Kind: UpdateSet, Value: value}
}

// ArrayUnion adds values to an array field if absent
func ArrayUnion(path string, values ...interface{}) FieldUpdate {
	return FieldUpdate{Path: path, Kind: UpdateArrayUnion, Value: values}
}

// ArrayRemove removes values from an array field
func ArrayRemove(path string, values ...interface{}) FieldUpdate {
	return FieldUpdate{Path: path, Kind: UpdateArrayRemove, Value: values}
}

// Max raises a numeric field to value. A missing field is set; a field that
// already holds value or more is left alone. Stores apply it atomically with
// the read of the current value.
func Max(path string, value int64) FieldUpdate {
	return FieldUpdate{Path: path, Kind: UpdateMax, Value: value}
}

// BatchWrite is one full-document write inside a batch commit
type BatchWrite struct {
	Collection string
	ID         string
	Data       map[string]interface{}
}

// DocumentStore defines raw persistence for the application.
// Get returns (nil, nil) when the document does not exist. Update fails with a
// NOT_FOUND error when the document is missing. QueryIn rejects more than
// MaxInClauseSize ids.
type DocumentStore interface {
	// Get fetches one document
	Get(ctx context.Context, collection, id string) (*Document, error)

	// Set creates or replaces a document
	Set(ctx context.Context, collection, id string, data map[string]interface{}) error

	// Update applies field updates atomically to an existing document
	Update(ctx context.Context, collection, id string, updates []FieldUpdate) error

	// Query runs a predicate query
	Query(ctx context.Context, q Query) ([]*Document, error)

	// QueryIn returns the documents whose field value is one of ids
	QueryIn(ctx context.Context, collection, field string, ids []string) ([]*Document, error)

	// BatchSet writes many documents
	BatchSet(ctx context.Context, writes []BatchWrite) error
}
