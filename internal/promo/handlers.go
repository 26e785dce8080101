package promo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/designer-pricing/internal/common"
	"github.com/noah-isme/designer-pricing/internal/store"
	"github.com/noah-isme/designer-pricing/internal/tenant"
)

// CodeStore is the admin-facing promo code repository.
type CodeStore interface {
	Get(ctx context.Context, code string) (Code, bool, error)
	Save(ctx context.Context, c Code) (Code, error)
	Delete(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]Code, error)
	Count(ctx context.Context) (int64, error)
}

// Handler exposes merchant promo code management and redemption intake.
type Handler struct {
	codes    CodeStore
	queue    Enqueuer
	validate *validator.Validate
	logger   *zerolog.Logger
	pageSize int
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Codes     CodeStore
	Queue     Enqueuer
	Validator *validator.Validate
	Logger    *zerolog.Logger
	PageSize  int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validator
	if v == nil {
		v = common.NewValidator()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Handler{codes: cfg.Codes, queue: cfg.Queue, validate: v, logger: cfg.Logger, pageSize: pageSize}
}

type redeemRequest struct {
	Code    string `json:"code" validate:"required,max=64"`
	OrderID string `json:"orderId" validate:"required,max=128"`
}

// List handles GET /api/v1/admin/promo-codes.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePage(r, h.pageSize)
	items, err := h.codes.List(r.Context(), page.PerPage, page.Offset())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	total, err := h.codes.Count(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.List(w, items, page.Meta(total))
}

// Get handles GET /api/v1/admin/promo-codes/{code}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, found, err := h.codes.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !found {
		common.WriteError(w, common.NewAppError("NOT_FOUND", "promo code not found", http.StatusNotFound, nil))
		return
	}
	common.Data(w, http.StatusOK, c)
}

// Create handles POST /api/v1/admin/promo-codes. An existing code is a conflict.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decodeCode(w, r)
	if !ok {
		return
	}
	_, exists, err := h.codes.Get(r.Context(), c.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if exists {
		common.WriteError(w, common.NewAppError("CONFLICT", "promo code already exists", http.StatusConflict, nil))
		return
	}
	saved, err := h.codes.Save(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusCreated, saved)
}

// Update handles PUT /api/v1/admin/promo-codes/{code}. The usage count is
// owned by redemptions and cannot be edited.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := h.decodeCode(w, r)
	if !ok {
		return
	}
	code := Normalize(chi.URLParam(r, "code"))
	if c.Code != code {
		common.WriteError(w, common.NewAppError("BAD_REQUEST", "code in body does not match path", http.StatusBadRequest, nil))
		return
	}
	current, found, err := h.codes.Get(r.Context(), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !found {
		common.WriteError(w, common.NewAppError("NOT_FOUND", "promo code not found", http.StatusNotFound, nil))
		return
	}
	c.UsageCount = current.UsageCount
	saved, err := h.codes.Save(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, saved)
}

// Delete handles DELETE /api/v1/admin/promo-codes/{code}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.codes.Delete(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		common.WriteError(w, common.NewAppError("NOT_FOUND", "promo code not found", http.StatusNotFound, nil))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Redeem handles POST /api/v1/promo-redemptions. The redemption is applied
// asynchronously by the worker.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		appErr := common.NewAppError("VALIDATION_FAILED", "invalid redemption", http.StatusBadRequest, err)
		appErr.Details = common.FieldErrors(err)
		common.WriteError(w, appErr)
		return
	}
	shop := tenant.Current(r.Context())
	if shop == "" {
		h.writeError(w, r, store.ErrTenantRequired)
		return
	}
	if h.queue == nil {
		common.WriteError(w, common.NewAppError("UNAVAILABLE", "redemption queue not configured", http.StatusServiceUnavailable, nil))
		return
	}
	payload := RedeemPayload{Shop: shop, Code: req.Code, OrderID: strings.TrimSpace(req.OrderID)}
	if err := EnqueueRedeem(r.Context(), h.queue, payload); err != nil {
		if h.logger != nil {
			h.logger.Error().Err(err).Str("shop", shop).Str("order_id", payload.OrderID).Msg("enqueue promo redemption failed")
		}
		common.WriteError(w, common.NewAppError("UNAVAILABLE", "redemption queue unavailable", http.StatusServiceUnavailable, err))
		return
	}
	common.Data(w, http.StatusAccepted, map[string]string{
		"code":    Normalize(payload.Code),
		"orderId": payload.OrderID,
		"status":  "queued",
	})
}

func (h *Handler) decodeCode(w http.ResponseWriter, r *http.Request) (Code, bool) {
	var c Code
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		common.WriteError(w, common.NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err))
		return Code{}, false
	}
	c.Code = Normalize(c.Code)
	if err := h.validate.Struct(c); err != nil {
		appErr := common.NewAppError("VALIDATION_FAILED", "invalid promo code", http.StatusBadRequest, err)
		appErr.Details = common.FieldErrors(err)
		common.WriteError(w, appErr)
		return Code{}, false
	}
	return c, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrTenantRequired):
		common.WriteError(w, common.NewAppError("TENANT_REQUIRED", "shop is required", http.StatusBadRequest, err))
	case errors.Is(err, store.ErrTenantMismatch):
		common.WriteError(w, common.NewAppError("TENANT_MISMATCH", "cross-shop access denied", http.StatusForbidden, err))
	case errors.Is(err, store.ErrDuplicate):
		common.WriteError(w, common.NewAppError("CONFLICT", "promo code already exists", http.StatusConflict, err))
	default:
		if h.logger != nil {
			h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("promo handler failed")
		}
		common.WriteError(w, err)
	}
}
