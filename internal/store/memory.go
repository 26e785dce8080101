package store

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Memory is an in-process Client backed by maps. It is safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]Document
	now         func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: map[string][]Document{}, now: time.Now}
}

// FindOne returns the first document matching filter.
func (m *Memory) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	docs, err := m.FindMany(ctx, collection, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// FindMany returns copies of all documents matching filter.
func (m *Memory) FindMany(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nf, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Document, 0)
	for _, doc := range m.collections[collection] {
		if matches(doc, nf) {
			out = append(out, deepCopy(doc))
		}
	}
	m.mu.RUnlock()
	sortDocuments(out, opts.SortBy)
	return paginate(out, opts), nil
}

// Create inserts doc, assigning an id when absent.
func (m *Memory) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nd, err := m.prepare(doc)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(collection, nd[IDField]) >= 0 {
		return nil, fmt.Errorf("%w: id %v in %s", ErrDuplicate, nd[IDField], collection)
	}
	m.collections[collection] = append(m.collections[collection], nd)
	return deepCopy(nd), nil
}

// CreateMany inserts every document; it stops at the first failure.
func (m *Memory) CreateMany(ctx context.Context, collection string, docs []Document) (int, error) {
	created := 0
	for _, doc := range docs {
		if _, err := m.Create(ctx, collection, doc); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// Update merges set into every matching document.
func (m *Memory) Update(ctx context.Context, collection string, filter Filter, set Document) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	nf, err := normalizeFilter(filter)
	if err != nil {
		return 0, err
	}
	ns, err := normalizeDocument(set)
	if err != nil {
		return 0, err
	}
	delete(ns, IDField)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, doc := range m.collections[collection] {
		if !matches(doc, nf) {
			continue
		}
		for k, v := range ns {
			doc[k] = v
		}
		doc["updatedAt"] = m.now().UTC().Format(time.RFC3339Nano)
		n++
	}
	return n, nil
}

// Upsert replaces the first document matching filter with doc merged over it,
// or inserts doc merged with the filter fields when nothing matches.
func (m *Memory) Upsert(ctx context.Context, collection string, filter Filter, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nf, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	nd, err := normalizeDocument(doc)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.collections[collection] {
		if !matches(existing, nf) {
			continue
		}
		for k, v := range nd {
			if k == IDField {
				continue
			}
			existing[k] = v
		}
		existing["updatedAt"] = m.now().UTC().Format(time.RFC3339Nano)
		return deepCopy(existing), nil
	}
	merged := nd.clone()
	for k, v := range nf {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	prepared, err := m.prepare(merged)
	if err != nil {
		return nil, err
	}
	m.collections[collection] = append(m.collections[collection], prepared)
	return deepCopy(prepared), nil
}

// Delete removes every matching document.
func (m *Memory) Delete(ctx context.Context, collection string, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	nf, err := normalizeFilter(filter)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.collections[collection][:0]
	var n int64
	for _, doc := range m.collections[collection] {
		if matches(doc, nf) {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	m.collections[collection] = kept
	return n, nil
}

// Count returns the number of matching documents.
func (m *Memory) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	docs, err := m.FindMany(ctx, collection, filter, FindOptions{})
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// Aggregate computes agg over matching documents. Documents without a numeric
// value for the field are skipped; an empty set yields zero.
func (m *Memory) Aggregate(ctx context.Context, collection string, filter Filter, agg Aggregation) (float64, error) {
	if err := agg.Validate(); err != nil {
		return 0, err
	}
	docs, err := m.FindMany(ctx, collection, filter, FindOptions{})
	if err != nil {
		return 0, err
	}
	if agg.Op == AggCount {
		return float64(len(docs)), nil
	}
	var (
		sum   float64
		count int
		lo    = math.Inf(1)
		hi    = math.Inf(-1)
	)
	for _, doc := range docs {
		v, ok := numericField(doc, agg.Field)
		if !ok {
			continue
		}
		sum += v
		count++
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if count == 0 {
		return 0, nil
	}
	switch agg.Op {
	case AggSum:
		return sum, nil
	case AggAvg:
		return sum / float64(count), nil
	case AggMin:
		return lo, nil
	default:
		return hi, nil
	}
}

// Reset clears all collections.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.collections = map[string][]Document{}
	m.mu.Unlock()
}

func (m *Memory) prepare(doc Document) (Document, error) {
	nd, err := normalizeDocument(doc)
	if err != nil {
		return nil, err
	}
	stamp(nd, m.now())
	return nd, nil
}

func (m *Memory) indexOf(collection string, id any) int {
	for i, doc := range m.collections[collection] {
		if doc[IDField] == id {
			return i
		}
	}
	return -1
}
