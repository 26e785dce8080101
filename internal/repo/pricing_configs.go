package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/noah-isme/designer-pricing/internal/pricing"
	"github.com/noah-isme/designer-pricing/internal/store"
)

// PricingConfigs stores one pricing configuration per (shop, productId).
type PricingConfigs struct {
	Store store.Client
}

// Get returns the configuration stored for productID. A miss is not an error.
func (r PricingConfigs) Get(ctx context.Context, productID string) (pricing.StoredConfig, bool, error) {
	doc, err := r.Store.FindOne(ctx, CollectionPricingConfigs, store.Filter{"productId": strings.TrimSpace(productID)})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return pricing.StoredConfig{}, false, nil
		}
		return pricing.StoredConfig{}, false, err
	}
	var out pricing.StoredConfig
	if err := fromDocument(doc, &out); err != nil {
		return pricing.StoredConfig{}, false, err
	}
	return out, true, nil
}

// Save creates or replaces the configuration for productID.
func (r PricingConfigs) Save(ctx context.Context, productID string, cfg pricing.Configuration) (pricing.StoredConfig, error) {
	productID = strings.TrimSpace(productID)
	doc, err := toDocument(pricing.StoredConfig{ProductID: productID, Config: cfg})
	if err != nil {
		return pricing.StoredConfig{}, err
	}
	saved, err := r.Store.Upsert(ctx, CollectionPricingConfigs, store.Filter{"productId": productID}, stripManaged(doc))
	if err != nil {
		return pricing.StoredConfig{}, err
	}
	var out pricing.StoredConfig
	if err := fromDocument(saved, &out); err != nil {
		return pricing.StoredConfig{}, err
	}
	return out, nil
}

// Delete removes the configuration for productID and reports whether one existed.
func (r PricingConfigs) Delete(ctx context.Context, productID string) (bool, error) {
	n, err := r.Store.Delete(ctx, CollectionPricingConfigs, store.Filter{"productId": strings.TrimSpace(productID)})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns configurations ordered by product id.
func (r PricingConfigs) List(ctx context.Context, limit, offset int) ([]pricing.StoredConfig, error) {
	docs, err := r.Store.FindMany(ctx, CollectionPricingConfigs, store.Filter{}, store.FindOptions{Limit: limit, Offset: offset, SortBy: "productId"})
	if err != nil {
		return nil, err
	}
	out := make([]pricing.StoredConfig, 0, len(docs))
	for _, doc := range docs {
		var cfg pricing.StoredConfig
		if err := fromDocument(doc, &cfg); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// Count returns the number of stored configurations.
func (r PricingConfigs) Count(ctx context.Context) (int64, error) {
	return r.Store.Count(ctx, CollectionPricingConfigs, store.Filter{})
}
