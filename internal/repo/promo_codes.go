package repo

import (
	"context"
	"errors"

	"github.com/noah-isme/designer-pricing/internal/promo"
	"github.com/noah-isme/designer-pricing/internal/store"
)

// PromoCodes stores promo codes, unique per (shop, code), and their redemptions.
type PromoCodes struct {
	Store store.Client
}

func (r PromoCodes) find(ctx context.Context, filter store.Filter) (promo.Code, bool, error) {
	doc, err := r.Store.FindOne(ctx, CollectionPromoCodes, filter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return promo.Code{}, false, nil
		}
		return promo.Code{}, false, err
	}
	var out promo.Code
	if err := fromDocument(doc, &out); err != nil {
		return promo.Code{}, false, err
	}
	return out, true, nil
}

// FindActive looks up an active code, matching case-insensitively.
func (r PromoCodes) FindActive(ctx context.Context, code string) (promo.Code, bool, error) {
	return r.find(ctx, store.Filter{"code": promo.Normalize(code), "active": true})
}

// Get looks up a code regardless of its active flag.
func (r PromoCodes) Get(ctx context.Context, code string) (promo.Code, bool, error) {
	return r.find(ctx, store.Filter{"code": promo.Normalize(code)})
}

// Save creates the code or updates the existing one with the same code.
func (r PromoCodes) Save(ctx context.Context, c promo.Code) (promo.Code, error) {
	c.Code = promo.Normalize(c.Code)
	doc, err := toDocument(c)
	if err != nil {
		return promo.Code{}, err
	}
	// Upsert merges, so cleared optional limits must be written explicitly.
	for _, k := range []string{"usageLimit", "minOrderAmount"} {
		if _, ok := doc[k]; !ok {
			doc[k] = nil
		}
	}
	saved, err := r.Store.Upsert(ctx, CollectionPromoCodes, store.Filter{"code": c.Code}, stripManaged(doc))
	if err != nil {
		return promo.Code{}, err
	}
	var out promo.Code
	if err := fromDocument(saved, &out); err != nil {
		return promo.Code{}, err
	}
	return out, nil
}

// Delete removes the code and reports whether it existed.
func (r PromoCodes) Delete(ctx context.Context, code string) (bool, error) {
	n, err := r.Store.Delete(ctx, CollectionPromoCodes, store.Filter{"code": promo.Normalize(code)})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns codes ordered by code.
func (r PromoCodes) List(ctx context.Context, limit, offset int) ([]promo.Code, error) {
	docs, err := r.Store.FindMany(ctx, CollectionPromoCodes, store.Filter{}, store.FindOptions{Limit: limit, Offset: offset, SortBy: "code"})
	if err != nil {
		return nil, err
	}
	out := make([]promo.Code, 0, len(docs))
	for _, doc := range docs {
		var c promo.Code
		if err := fromDocument(doc, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Count returns the number of codes.
func (r PromoCodes) Count(ctx context.Context) (int64, error) {
	return r.Store.Count(ctx, CollectionPromoCodes, store.Filter{})
}

// TotalUsage sums usageCount across all codes.
func (r PromoCodes) TotalUsage(ctx context.Context) (int64, error) {
	v, err := r.Store.Aggregate(ctx, CollectionPromoCodes, store.Filter{}, store.Aggregation{Op: store.AggSum, Field: "usageCount"})
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// IncrementUsage adds one to the code's usageCount. Callers serialise
// increments per code; the store offers no atomic counter.
func (r PromoCodes) IncrementUsage(ctx context.Context, code string) (promo.Code, error) {
	current, found, err := r.Get(ctx, code)
	if err != nil {
		return promo.Code{}, err
	}
	if !found {
		return promo.Code{}, promo.ErrNotFound
	}
	current.UsageCount++
	if _, err := r.Store.Update(ctx, CollectionPromoCodes, store.Filter{"code": current.Code}, store.Document{"usageCount": current.UsageCount}); err != nil {
		return promo.Code{}, err
	}
	return current, nil
}

// RecordRedemption stores a redemption once per (code, order). It reports
// false when the order already redeemed the code.
func (r PromoCodes) RecordRedemption(ctx context.Context, red promo.Redemption) (bool, error) {
	red.Code = promo.Normalize(red.Code)
	filter := store.Filter{"code": red.Code, "orderId": red.OrderID}
	if _, err := r.Store.FindOne(ctx, CollectionPromoRedemptions, filter); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	doc, err := toDocument(red)
	if err != nil {
		return false, err
	}
	delete(doc, store.IDField)
	if _, err := r.Store.Create(ctx, CollectionPromoRedemptions, doc); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RemoveRedemption deletes the redemption of code by orderID.
func (r PromoCodes) RemoveRedemption(ctx context.Context, code, orderID string) error {
	_, err := r.Store.Delete(ctx, CollectionPromoRedemptions, store.Filter{"code": promo.Normalize(code), "orderId": orderID})
	return err
}

// Redemptions counts recorded redemptions of code.
func (r PromoCodes) Redemptions(ctx context.Context, code string) (int64, error) {
	return r.Store.Count(ctx, CollectionPromoRedemptions, store.Filter{"code": promo.Normalize(code)})
}
