// Package store provides a document-oriented persistence client for named
// collections together with the tenant scoping decorator every tenant-owned
// read and write goes through.
package store

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by FindOne when no document matches the filter.
	ErrNotFound = errors.New("store: document not found")
	// ErrTenantRequired is returned when a tenant-owned collection is accessed without a bound shop.
	ErrTenantRequired = errors.New("store: tenant required")
	// ErrTenantMismatch is returned when an explicit shop constraint differs from the bound shop
	// and the scoping policy rejects cross-tenant access.
	ErrTenantMismatch = errors.New("store: tenant mismatch")
	// ErrDuplicate is returned when a write collides with an existing id or unique key.
	ErrDuplicate = errors.New("store: duplicate document")
	// ErrInvalidAggregation indicates an unsupported aggregate operation or missing field.
	ErrInvalidAggregation = errors.New("store: invalid aggregation")
)

// TenantField is the document field carrying the shop key.
const TenantField = "shop"

// IDField is the document field carrying the document identifier.
const IDField = "id"

// Document is a single record inside a collection.
type Document map[string]any

// Filter is an equality predicate over top-level document fields. An empty
// filter matches every document in the collection.
type Filter map[string]any

// AggregateOp enumerates supported aggregate functions.
type AggregateOp string

const (
	AggSum   AggregateOp = "sum"
	AggAvg   AggregateOp = "avg"
	AggMin   AggregateOp = "min"
	AggMax   AggregateOp = "max"
	AggCount AggregateOp = "count"
)

// Aggregation describes an aggregate computed over one numeric field.
type Aggregation struct {
	Op    AggregateOp
	Field string
}

// Validate reports whether the aggregation can be executed.
func (a Aggregation) Validate() error {
	switch a.Op {
	case AggCount:
		return nil
	case AggSum, AggAvg, AggMin, AggMax:
		if strings.TrimSpace(a.Field) == "" {
			return ErrInvalidAggregation
		}
		return nil
	default:
		return ErrInvalidAggregation
	}
}

// FindOptions controls pagination and ordering for FindMany.
type FindOptions struct {
	Limit  int
	Offset int
	// SortBy orders results ascending by the given top-level field; prefix with "-" for descending.
	SortBy string
}

// Client is the generic keyed-record service used by repositories.
type Client interface {
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)
	FindMany(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, error)
	Create(ctx context.Context, collection string, doc Document) (Document, error)
	CreateMany(ctx context.Context, collection string, docs []Document) (int, error)
	Update(ctx context.Context, collection string, filter Filter, set Document) (int64, error)
	Upsert(ctx context.Context, collection string, filter Filter, doc Document) (Document, error)
	Delete(ctx context.Context, collection string, filter Filter) (int64, error)
	Count(ctx context.Context, collection string, filter Filter) (int64, error)
	Aggregate(ctx context.Context, collection string, filter Filter, agg Aggregation) (float64, error)
}

func (f Filter) clone() Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (d Document) clone() Document {
	out := make(Document, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	return out
}

func shopValue(m map[string]any) (string, bool) {
	v, ok := m[TenantField]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
