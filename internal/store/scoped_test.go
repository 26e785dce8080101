package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/designer-pricing/internal/obs"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

type countingClient struct {
	*Memory
	calls int
}

func (c *countingClient) FindMany(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, error) {
	c.calls++
	return c.Memory.FindMany(ctx, collection, filter, opts)
}

func (c *countingClient) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	c.calls++
	return c.Memory.Create(ctx, collection, doc)
}

func (c *countingClient) CreateMany(ctx context.Context, collection string, docs []Document) (int, error) {
	c.calls++
	return c.Memory.CreateMany(ctx, collection, docs)
}

func newScopedForTest(t *testing.T, policy ExplicitTenantPolicy) (*Scoped, *countingClient, *bytes.Buffer) {
	t.Helper()
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	inner := &countingClient{Memory: NewMemory()}
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)
	s, err := NewScoped(ScopedConfig{Inner: inner, Exempt: []string{"sessions", "fonts"}, Policy: policy, Logger: &logger})
	require.NoError(t, err)
	return s, inner, buf
}

func TestScopedRequiresTenantBeforeReachingInner(t *testing.T) {
	s, inner, _ := newScopedForTest(t, PolicyAllow)
	ctx := context.Background()
	before := testutil.ToFloat64(obs.StoreTenantRequiredTotal.WithLabelValues("find_many"))

	_, err := s.FindMany(ctx, "pricing_configs", Filter{"productId": "p1"}, FindOptions{})
	require.ErrorIs(t, err, ErrTenantRequired)
	_, err = s.Create(ctx, "pricing_configs", Document{"productId": "p1"})
	require.ErrorIs(t, err, ErrTenantRequired)
	_, err = s.FindOne(ctx, "promo_codes", nil)
	require.ErrorIs(t, err, ErrTenantRequired)
	_, err = s.Update(ctx, "promo_codes", nil, Document{"active": false})
	require.ErrorIs(t, err, ErrTenantRequired)
	_, err = s.Upsert(ctx, "promo_codes", Filter{"code": "X"}, Document{"code": "X"})
	require.ErrorIs(t, err, ErrTenantRequired)
	_, err = s.Delete(ctx, "promo_codes", nil)
	require.ErrorIs(t, err, ErrTenantRequired)
	_, err = s.Count(ctx, "promo_codes", nil)
	require.ErrorIs(t, err, ErrTenantRequired)
	_, err = s.Aggregate(ctx, "promo_codes", nil, Aggregation{Op: AggCount})
	require.ErrorIs(t, err, ErrTenantRequired)

	require.Zero(t, inner.calls)
	require.Equal(t, before+1, testutil.ToFloat64(obs.StoreTenantRequiredTotal.WithLabelValues("find_many")))
}

func TestScopedInjectsShopIntoFiltersAndPayloads(t *testing.T) {
	s, inner, _ := newScopedForTest(t, PolicyAllow)
	acme := tenant.With(context.Background(), "acme")
	bolt := tenant.With(context.Background(), "bolt")

	created, err := s.Create(acme, "pricing_configs", Document{"productId": "p1"})
	require.NoError(t, err)
	require.Equal(t, "acme", created[TenantField])

	_, err = s.Create(bolt, "pricing_configs", Document{"productId": "p1"})
	require.NoError(t, err)

	docs, err := s.FindMany(acme, "pricing_configs", Filter{"productId": "p1"}, FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "acme", docs[0][TenantField])

	n, err := s.Count(bolt, "pricing_configs", nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	deleted, err := s.Delete(acme, "pricing_configs", nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
	n, err = inner.Memory.Count(context.Background(), "pricing_configs", nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestScopedCreateManyStampsEveryElement(t *testing.T) {
	s, inner, _ := newScopedForTest(t, PolicyAllow)
	ctx := tenant.With(context.Background(), "acme")

	n, err := s.CreateMany(ctx, "promo_codes", []Document{{"code": "A"}, {"code": "B"}})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	docs, err := inner.Memory.FindMany(context.Background(), "promo_codes", Filter{TenantField: "acme"}, FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestScopedUpsertKeepsTenantOnInsert(t *testing.T) {
	s, _, _ := newScopedForTest(t, PolicyAllow)
	ctx := tenant.With(context.Background(), "acme")

	doc, err := s.Upsert(ctx, "pricing_configs", Filter{"productId": "p1"}, Document{"globalFee": 2})
	require.NoError(t, err)
	require.Equal(t, "acme", doc[TenantField])
	require.Equal(t, "p1", doc["productId"])

	other := tenant.With(context.Background(), "bolt")
	_, err = s.FindOne(other, "pricing_configs", Filter{"productId": "p1"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestScopedExemptCollectionsPassThrough(t *testing.T) {
	s, inner, _ := newScopedForTest(t, PolicyAllow)

	_, err := s.Create(context.Background(), "sessions", Document{"token": "abc"})
	require.NoError(t, err)
	docs, err := s.FindMany(context.Background(), "fonts", nil, FindOptions{})
	require.NoError(t, err)
	require.Empty(t, docs)
	require.Equal(t, 2, inner.calls)

	stored, err := inner.Memory.FindOne(context.Background(), "sessions", Filter{"token": "abc"})
	require.NoError(t, err)
	_, hasShop := stored[TenantField]
	require.False(t, hasShop)
}

func TestScopedExplicitTenantAllowPolicy(t *testing.T) {
	s, _, logs := newScopedForTest(t, PolicyAllow)
	acme := tenant.With(context.Background(), "acme")
	_, err := s.Create(tenant.With(context.Background(), "bolt"), "promo_codes", Document{"code": "B"})
	require.NoError(t, err)
	before := testutil.ToFloat64(obs.StoreExplicitTenantTotal.WithLabelValues("allow"))

	docs, err := s.FindMany(acme, "promo_codes", Filter{TenantField: "bolt"}, FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Contains(t, logs.String(), "explicit shop constraint")
	require.Equal(t, before+1, testutil.ToFloat64(obs.StoreExplicitTenantTotal.WithLabelValues("allow")))

	// Explicit shop with no bound shop is honoured too.
	docs, err = s.FindMany(context.Background(), "promo_codes", Filter{TenantField: "bolt"}, FindOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	// Matching explicit shop is not an override.
	_, err = s.FindMany(acme, "promo_codes", Filter{TenantField: "acme"}, FindOptions{})
	require.NoError(t, err)
	require.Equal(t, before+2, testutil.ToFloat64(obs.StoreExplicitTenantTotal.WithLabelValues("allow")))
}

func TestScopedExplicitTenantRejectPolicy(t *testing.T) {
	s, inner, _ := newScopedForTest(t, PolicyReject)
	acme := tenant.With(context.Background(), "acme")

	_, err := s.FindMany(acme, "promo_codes", Filter{TenantField: "bolt"}, FindOptions{})
	require.ErrorIs(t, err, ErrTenantMismatch)
	_, err = s.Create(acme, "promo_codes", Document{TenantField: "bolt", "code": "X"})
	require.ErrorIs(t, err, ErrTenantMismatch)
	require.Zero(t, inner.calls)

	_, err = s.Create(acme, "promo_codes", Document{TenantField: "acme", "code": "X"})
	require.NoError(t, err)
}

func TestParseExplicitTenantPolicy(t *testing.T) {
	require.Equal(t, PolicyReject, ParseExplicitTenantPolicy(" Reject "))
	require.Equal(t, PolicyAllow, ParseExplicitTenantPolicy(""))
	require.Equal(t, PolicyAllow, ParseExplicitTenantPolicy("whatever"))
}

func TestNewScopedRequiresInner(t *testing.T) {
	_, err := NewScoped(ScopedConfig{})
	require.Error(t, err)
}

func TestScopedUpdateCannotMoveDocumentsUnderReject(t *testing.T) {
	s, _, _ := newScopedForTest(t, PolicyReject)
	acme := tenant.With(context.Background(), "acme")
	bolt := tenant.With(context.Background(), "bolt")
	_, err := s.Create(acme, "pricing_configs", Document{"productId": "p1"})
	require.NoError(t, err)

	n, err := s.Update(acme, "pricing_configs", Filter{"productId": "p1"}, Document{TenantField: "bolt"})
	require.ErrorIs(t, err, ErrTenantMismatch)
	require.Zero(t, n)

	// Blank and non-string shops are dropped rather than written.
	for _, v := range []any{nil, "", 42} {
		n, err = s.Update(acme, "pricing_configs", Filter{"productId": "p1"}, Document{TenantField: v, "note": "kept"})
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	}

	// Restating the bound shop is not a move.
	_, err = s.Update(acme, "pricing_configs", Filter{"productId": "p1"}, Document{TenantField: "acme"})
	require.NoError(t, err)

	count, err := s.Count(acme, "pricing_configs", nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	count, err = s.Count(bolt, "pricing_configs", nil)
	require.NoError(t, err)
	require.Zero(t, count)

	doc, err := s.FindOne(acme, "pricing_configs", Filter{"productId": "p1"})
	require.NoError(t, err)
	require.Equal(t, "acme", doc[TenantField])
	require.Equal(t, "kept", doc["note"])
}

func TestScopedUpdateMoveIsRecordedUnderAllow(t *testing.T) {
	s, _, logs := newScopedForTest(t, PolicyAllow)
	acme := tenant.With(context.Background(), "acme")
	_, err := s.Create(acme, "pricing_configs", Document{"productId": "p1"})
	require.NoError(t, err)
	before := testutil.ToFloat64(obs.StoreExplicitTenantTotal.WithLabelValues("allow"))

	n, err := s.Update(acme, "pricing_configs", Filter{"productId": "p1"}, Document{TenantField: "bolt"})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Equal(t, before+1, testutil.ToFloat64(obs.StoreExplicitTenantTotal.WithLabelValues("allow")))
	require.Contains(t, logs.String(), `"operation":"update"`)
}
