// Package audit records merchant configuration changes per shop.
package audit

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/designer-pricing/internal/common"
	"github.com/noah-isme/designer-pricing/internal/obs"
	"github.com/noah-isme/designer-pricing/internal/store"
)

// CollectionAuditLogs holds one document per recorded change.
const CollectionAuditLogs = "audit_logs"

// Fixed-width so that entries sort lexically by time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is a recorded merchant action.
type Entry struct {
	ID         string    `json:"id,omitempty"`
	Shop       string    `json:"shop,omitempty"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resourceId,omitempty"`
	Status     int       `json:"status"`
	RequestID  string    `json:"requestId,omitempty"`
	IP         string    `json:"ip,omitempty"`
	At         time.Time `json:"at"`
}

// Service persists audit entries through the tenant-scoped store, so each
// entry lands under the shop bound to the request.
type Service struct {
	Store   store.Client
	Enabled bool
	Now     func() time.Time
}

// Record stores an entry for req. Disabled services record nothing.
func (s Service) Record(ctx context.Context, req *http.Request, resource, resourceID string, status int) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	actor := "anonymous"
	if a, ok := common.ActorFrom(ctx); ok {
		actor = a.Subject
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	doc := store.Document{
		"actor":      actor,
		"action":     req.Method + " " + obs.Route(req),
		"resource":   resource,
		"resourceId": strings.TrimSpace(resourceID),
		"status":     status,
		"requestId":  middleware.GetReqID(ctx),
		"ip":         common.ClientIP(req),
		"at":         now().UTC().Format(timeLayout),
	}
	_, err := s.Store.Create(ctx, CollectionAuditLogs, doc)
	return err
}

// List returns the newest entries first.
func (s Service) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	docs, err := s.Store.FindMany(ctx, CollectionAuditLogs, store.Filter{}, store.FindOptions{Limit: limit, Offset: offset, SortBy: "-at"})
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDocument(doc))
	}
	return out, nil
}

// Count returns the number of recorded entries.
func (s Service) Count(ctx context.Context) (int64, error) {
	return s.Store.Count(ctx, CollectionAuditLogs, store.Filter{})
}

func fromDocument(doc store.Document) Entry {
	e := Entry{
		ID:         str(doc[store.IDField]),
		Shop:       str(doc[store.TenantField]),
		Actor:      str(doc["actor"]),
		Action:     str(doc["action"]),
		Resource:   str(doc["resource"]),
		ResourceID: str(doc["resourceId"]),
		RequestID:  str(doc["requestId"]),
		IP:         str(doc["ip"]),
	}
	switch v := doc["status"].(type) {
	case int:
		e.Status = v
	case int64:
		e.Status = int(v)
	case float64:
		e.Status = int(v)
	}
	if at, err := time.Parse(timeLayout, str(doc["at"])); err == nil {
		e.At = at
	}
	return e
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
