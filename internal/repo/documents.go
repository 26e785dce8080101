// Package repo provides typed repositories over the tenant-scoped document
// store. Repositories never take a shop argument; the shop bound to the
// context is applied by the store.
package repo

import (
	"encoding/json"
	"fmt"

	"github.com/noah-isme/designer-pricing/internal/store"
)

// Collection names.
const (
	CollectionPricingConfigs   = "pricing_configs"
	CollectionPromoCodes       = "promo_codes"
	CollectionPromoRedemptions = "promo_redemptions"
)

func toDocument(v any) (store.Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

func fromDocument(doc store.Document, dst any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// stripManaged removes fields the store owns so updates never overwrite them.
func stripManaged(doc store.Document) store.Document {
	for _, k := range []string{store.IDField, store.TenantField, "createdAt", "updatedAt"} {
		delete(doc, k)
	}
	return doc
}
