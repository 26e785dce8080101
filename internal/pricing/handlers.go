package pricing

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
)

// ConfigStore is the admin-facing configuration repository.
type ConfigStore interface {
	ConfigSource
	Save(ctx context.Context, productID string, cfg Configuration) (StoredConfig, error)
	Delete(ctx context.Context, productID string) (bool, error)
	List(ctx context.Context, limit, offset int) ([]StoredConfig, error)
	Count(ctx context.Context) (int64, error)
}

// Handler exposes the storefront calculation endpoint and the merchant
// configuration endpoints.
type Handler struct {
	service  *Service
	configs  ConfigStore
	cache    ConfigCache
	validate *validator.Validate
	logger   *zerolog.Logger
	pageSize int
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service   *Service
	Configs   ConfigStore
	Cache     ConfigCache
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
	return &Handler{
		service:  cfg.Service,
		configs:  cfg.Configs,
		cache:    cfg.Cache,
		validate: v,
		logger:   cfg.Logger,
		pageSize: pageSize,
	}
}

// Calculate handles POST /api/v1/pricing/calculate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		appErr := common.NewAppError("VALIDATION_FAILED", "invalid pricing request", http.StatusBadRequest, err)
		appErr.Details = common.FieldErrors(err)
		common.WriteError(w, appErr)
		return
	}
	breakdown, err := h.service.Calculate(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, breakdown)
}

// GetConfig handles GET /api/v1/admin/pricing-configs/{productId}.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	stored, found, err := h.configs.Get(r.Context(), productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !found {
		common.WriteError(w, common.NewAppError("NOT_FOUND", "pricing configuration not found", http.StatusNotFound, nil))
		return
	}
	common.Data(w, http.StatusOK, stored)
}

// ListConfigs handles GET /api/v1/admin/pricing-configs.
func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePage(r, h.pageSize)
	items, err := h.configs.List(r.Context(), page.PerPage, page.Offset())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	total, err := h.configs.Count(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.List(w, items, page.Meta(total))
}

// PutConfig handles PUT /api/v1/admin/pricing-configs/{productId}.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	if productID == "" {
		common.WriteError(w, common.NewAppError("BAD_REQUEST", "productId is required", http.StatusBadRequest, nil))
		return
	}
	var cfg Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		common.WriteError(w, common.NewAppError("BAD_REQUEST", "invalid payload", http.StatusBadRequest, err))
		return
	}
	if err := h.validate.Struct(cfg); err != nil {
		appErr := common.NewAppError("VALIDATION_FAILED", "invalid pricing configuration", http.StatusBadRequest, err)
		appErr.Details = common.FieldErrors(err)
		common.WriteError(w, appErr)
		return
	}
	stored, err := h.configs.Save(r.Context(), productID, cfg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidate(r.Context(), productID)
	common.Data(w, http.StatusOK, stored)
}

// DeleteConfig handles DELETE /api/v1/admin/pricing-configs/{productId}.
func (h *Handler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	deleted, err := h.configs.Delete(r.Context(), productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		common.WriteError(w, common.NewAppError("NOT_FOUND", "pricing configuration not found", http.StatusNotFound, nil))
		return
	}
	h.invalidate(r.Context(), productID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) invalidate(ctx context.Context, productID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, productID); err != nil && h.logger != nil {
		h.logger.Warn().Err(err).Str("product_id", productID).Msg("pricing config cache invalidation failed")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrTenantRequired):
		common.WriteError(w, common.NewAppError("TENANT_REQUIRED", "shop is required", http.StatusBadRequest, err))
	case errors.Is(err, store.ErrTenantMismatch):
		common.WriteError(w, common.NewAppError("TENANT_MISMATCH", "cross-shop access denied", http.StatusForbidden, err))
	case errors.Is(err, ErrFetchFailed):
		common.WriteError(w, common.NewAppError("FETCH_FAILED", "pricing data temporarily unavailable", http.StatusServiceUnavailable, err))
	default:
		if h.logger != nil {
			h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("pricing handler failed")
		}
		common.WriteError(w, err)
	}
}
