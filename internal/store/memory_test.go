package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created, err := m.Create(ctx, "pricing_configs", Document{"shop": "acme", "productId": "p1", "globalFee": 2})
	require.NoError(t, err)
	require.NotEmpty(t, created[IDField])
	require.NotEmpty(t, created["createdAt"])

	got, err := m.FindOne(ctx, "pricing_configs", Filter{"shop": "acme", "productId": "p1"})
	require.NoError(t, err)
	require.Equal(t, float64(2), got["globalFee"])

	_, err = m.FindOne(ctx, "pricing_configs", Filter{"shop": "other"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = m.Create(ctx, "pricing_configs", Document{IDField: created[IDField]})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryReturnsIsolatedCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, "c", Document{"id": "1", "nested": map[string]any{"a": 1}})
	require.NoError(t, err)

	got, err := m.FindOne(ctx, "c", Filter{"id": "1"})
	require.NoError(t, err)
	got["nested"].(map[string]any)["a"] = 99

	again, err := m.FindOne(ctx, "c", Filter{"id": "1"})
	require.NoError(t, err)
	require.Equal(t, float64(1), again["nested"].(map[string]any)["a"])
}

func TestMemoryFindManySortAndPaginate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	n, err := m.CreateMany(ctx, "promo_codes", []Document{
		{"code": "B", "value": 5},
		{"code": "A", "value": 10},
		{"code": "C", "value": 1},
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	docs, err := m.FindMany(ctx, "promo_codes", nil, FindOptions{SortBy: "-value"})
	require.NoError(t, err)
	require.Equal(t, []any{"A", "B", "C"}, []any{docs[0]["code"], docs[1]["code"], docs[2]["code"]})

	docs, err = m.FindMany(ctx, "promo_codes", nil, FindOptions{SortBy: "code", Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "B", docs[0]["code"])

	docs, err = m.FindMany(ctx, "promo_codes", nil, FindOptions{Offset: 10})
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestMemoryUpdateUpsertDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	doc, err := m.Upsert(ctx, "pricing_configs", Filter{"shop": "acme", "productId": "p1"}, Document{"globalFee": 1})
	require.NoError(t, err)
	require.Equal(t, "acme", doc["shop"])
	id := doc[IDField]

	doc, err = m.Upsert(ctx, "pricing_configs", Filter{"shop": "acme", "productId": "p1"}, Document{"globalFee": 3})
	require.NoError(t, err)
	require.Equal(t, id, doc[IDField])
	require.Equal(t, float64(3), doc["globalFee"])

	count, err := m.Count(ctx, "pricing_configs", Filter{"shop": "acme"})
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	updated, err := m.Update(ctx, "pricing_configs", Filter{"shop": "acme"}, Document{"globalFee": 4, IDField: "ignored"})
	require.NoError(t, err)
	require.EqualValues(t, 1, updated)
	doc, err = m.FindOne(ctx, "pricing_configs", Filter{"productId": "p1"})
	require.NoError(t, err)
	require.Equal(t, id, doc[IDField])
	require.Equal(t, float64(4), doc["globalFee"])

	deleted, err := m.Delete(ctx, "pricing_configs", Filter{"shop": "acme"})
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
	count, err = m.Count(ctx, "pricing_configs", nil)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMemoryNilFilterValueMatchesMissingField(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Create(ctx, "c", Document{"id": "1"})
	require.NoError(t, err)
	_, err = m.Create(ctx, "c", Document{"id": "2", "shop": "acme"})
	require.NoError(t, err)

	count, err := m.Count(ctx, "c", Filter{"shop": nil})
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestMemoryAggregate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.CreateMany(ctx, "promo_codes", []Document{
		{"shop": "acme", "usedCount": 2},
		{"shop": "acme", "usedCount": "6"},
		{"shop": "acme", "usedCount": "n/a"},
		{"shop": "other", "usedCount": 100},
	})
	require.NoError(t, err)

	cases := []struct {
		op   AggregateOp
		want float64
	}{
		{AggSum, 8},
		{AggAvg, 4},
		{AggMin, 2},
		{AggMax, 6},
		{AggCount, 3},
	}
	for _, tc := range cases {
		got, err := m.Aggregate(ctx, "promo_codes", Filter{"shop": "acme"}, Aggregation{Op: tc.op, Field: "usedCount"})
		require.NoError(t, err, tc.op)
		require.Equal(t, tc.want, got, tc.op)
	}

	empty, err := m.Aggregate(ctx, "promo_codes", Filter{"shop": "none"}, Aggregation{Op: AggMax, Field: "usedCount"})
	require.NoError(t, err)
	require.Zero(t, empty)

	_, err = m.Aggregate(ctx, "promo_codes", nil, Aggregation{Op: "median", Field: "usedCount"})
	require.ErrorIs(t, err, ErrInvalidAggregation)
	_, err = m.Aggregate(ctx, "promo_codes", nil, Aggregation{Op: AggSum})
	require.ErrorIs(t, err, ErrInvalidAggregation)
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().FindMany(ctx, "c", nil, FindOptions{})
	require.ErrorIs(t, err, context.Canceled)
}
