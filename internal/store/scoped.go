package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/designer-pricing/internal/obs"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

// ExplicitTenantPolicy decides what happens when a caller supplies a shop
// constraint that differs from the shop bound to the context.
type ExplicitTenantPolicy string

const (
	// PolicyAllow honours the explicit constraint and records the override.
	PolicyAllow ExplicitTenantPolicy = "allow"
	// PolicyReject fails the operation with ErrTenantMismatch.
	PolicyReject ExplicitTenantPolicy = "reject"
)

// ParseExplicitTenantPolicy maps configuration values onto a policy, defaulting to PolicyAllow.
func ParseExplicitTenantPolicy(value string) ExplicitTenantPolicy {
	if strings.EqualFold(strings.TrimSpace(value), string(PolicyReject)) {
		return PolicyReject
	}
	return PolicyAllow
}

// Scoped decorates a Client so that every operation on a tenant-owned
// collection is constrained to the shop bound to the context.
type Scoped struct {
	inner  Client
	exempt map[string]struct{}
	policy ExplicitTenantPolicy
	logger *zerolog.Logger
}

// ScopedConfig groups Scoped dependencies.
type ScopedConfig struct {
	Inner Client
	// Exempt lists collections that bypass scoping (session bootstrap, shared reference data).
	Exempt []string
	Policy ExplicitTenantPolicy
	Logger *zerolog.Logger
}

// NewScoped wraps cfg.Inner with tenant scoping.
func NewScoped(cfg ScopedConfig) (*Scoped, error) {
	if cfg.Inner == nil {
		return nil, fmt.Errorf("store: inner client is required")
	}
	exempt := make(map[string]struct{}, len(cfg.Exempt))
	for _, name := range cfg.Exempt {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			exempt[trimmed] = struct{}{}
		}
	}
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyAllow
	}
	return &Scoped{inner: cfg.Inner, exempt: exempt, policy: policy, logger: cfg.Logger}, nil
}

// IsExempt reports whether collection bypasses tenant scoping.
func (s *Scoped) IsExempt(collection string) bool {
	_, ok := s.exempt[collection]
	return ok
}

// FindOne implements Client.
func (s *Scoped) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	scoped, err := s.scopeFilter(ctx, "find_one", collection, filter)
	if err != nil {
		return nil, err
	}
	return s.inner.FindOne(ctx, collection, scoped)
}

// FindMany implements Client.
func (s *Scoped) FindMany(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, error) {
	scoped, err := s.scopeFilter(ctx, "find_many", collection, filter)
	if err != nil {
		return nil, err
	}
	return s.inner.FindMany(ctx, collection, scoped, opts)
}

// Create implements Client.
func (s *Scoped) Create(ctx context.Context, collection string, doc Document) (Document, error) {
	scoped, err := s.scopeDocument(ctx, "create", collection, doc)
	if err != nil {
		return nil, err
	}
	return s.inner.Create(ctx, collection, scoped)
}

// CreateMany implements Client, stamping every element individually.
func (s *Scoped) CreateMany(ctx context.Context, collection string, docs []Document) (int, error) {
	scoped := make([]Document, 0, len(docs))
	for _, doc := range docs {
		d, err := s.scopeDocument(ctx, "create_many", collection, doc)
		if err != nil {
			return 0, err
		}
		scoped = append(scoped, d)
	}
	return s.inner.CreateMany(ctx, collection, scoped)
}

// Update implements Client. A shop in set would move the matched documents
// to that shop, so it is treated as an explicit constraint.
func (s *Scoped) Update(ctx context.Context, collection string, filter Filter, set Document) (int64, error) {
	scoped, err := s.scopeFilter(ctx, "update", collection, filter)
	if err != nil {
		return 0, err
	}
	if _, present := set[TenantField]; present && !s.IsExempt(collection) {
		explicit, ok := shopValue(set)
		if !ok {
			// A blank or non-string shop would orphan the documents.
			set = set.clone()
			delete(set, TenantField)
		} else {
			bound, hasBound := tenant.From(ctx)
			if err := s.checkExplicit("update", collection, bound, hasBound, explicit); err != nil {
				return 0, err
			}
		}
	}
	return s.inner.Update(ctx, collection, scoped, set)
}

// Upsert implements Client; both the match filter and the inserted payload are scoped.
func (s *Scoped) Upsert(ctx context.Context, collection string, filter Filter, doc Document) (Document, error) {
	scopedFilter, err := s.scopeFilter(ctx, "upsert", collection, filter)
	if err != nil {
		return nil, err
	}
	scopedDoc, err := s.scopeDocument(ctx, "upsert", collection, doc)
	if err != nil {
		return nil, err
	}
	return s.inner.Upsert(ctx, collection, scopedFilter, scopedDoc)
}

// Delete implements Client.
func (s *Scoped) Delete(ctx context.Context, collection string, filter Filter) (int64, error) {
	scoped, err := s.scopeFilter(ctx, "delete", collection, filter)
	if err != nil {
		return 0, err
	}
	return s.inner.Delete(ctx, collection, scoped)
}

// Count implements Client.
func (s *Scoped) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	scoped, err := s.scopeFilter(ctx, "count", collection, filter)
	if err != nil {
		return 0, err
	}
	return s.inner.Count(ctx, collection, scoped)
}

// Aggregate implements Client.
func (s *Scoped) Aggregate(ctx context.Context, collection string, filter Filter, agg Aggregation) (float64, error) {
	scoped, err := s.scopeFilter(ctx, "aggregate", collection, filter)
	if err != nil {
		return 0, err
	}
	return s.inner.Aggregate(ctx, collection, scoped, agg)
}

func (s *Scoped) scopeFilter(ctx context.Context, op, collection string, filter Filter) (Filter, error) {
	if s.IsExempt(collection) {
		return filter, nil
	}
	bound, hasBound := tenant.From(ctx)
	if explicit, ok := shopValue(filter); ok {
		if err := s.checkExplicit(op, collection, bound, hasBound, explicit); err != nil {
			return nil, err
		}
		return filter, nil
	}
	if !hasBound {
		return nil, s.tenantRequired(op, collection)
	}
	scoped := filter.clone()
	scoped[TenantField] = bound
	return scoped, nil
}

func (s *Scoped) scopeDocument(ctx context.Context, op, collection string, doc Document) (Document, error) {
	if s.IsExempt(collection) {
		return doc, nil
	}
	bound, hasBound := tenant.From(ctx)
	if explicit, ok := shopValue(doc); ok {
		if err := s.checkExplicit(op, collection, bound, hasBound, explicit); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if !hasBound {
		return nil, s.tenantRequired(op, collection)
	}
	scoped := doc.clone()
	scoped[TenantField] = bound
	return scoped, nil
}

func (s *Scoped) checkExplicit(op, collection, bound string, hasBound bool, explicit string) error {
	if hasBound && bound == explicit {
		return nil
	}
	if obs.StoreExplicitTenantTotal != nil {
		obs.StoreExplicitTenantTotal.WithLabelValues(string(s.policy)).Inc()
	}
	if s.logger != nil {
		s.logger.Warn().
			Str("operation", op).
			Str("collection", collection).
			Str("bound_shop", bound).
			Str("explicit_shop", explicit).
			Str("policy", string(s.policy)).
			Msg("explicit shop constraint differs from bound shop")
	}
	if s.policy == PolicyReject {
		return fmt.Errorf("%w: %s on %s", ErrTenantMismatch, op, collection)
	}
	return nil
}

func (s *Scoped) tenantRequired(op, collection string) error {
	if obs.StoreTenantRequiredTotal != nil {
		obs.StoreTenantRequiredTotal.WithLabelValues(op).Inc()
	}
	if s.logger != nil {
		s.logger.Warn().Str("operation", op).Str("collection", collection).Msg("tenant-owned collection accessed without shop")
	}
	return fmt.Errorf("%w: %s on %s", ErrTenantRequired, op, collection)
}
