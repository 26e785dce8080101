package audit

import (
	"net/http"

	"github.com/noah-isme/designer-pricing/internal/common"
)

// Handler exposes the audit trail of the current shop.
type Handler struct {
	Service Service
}

// List handles GET /api/v1/admin/audit-logs.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePage(r, 50)
	items, err := h.Service.List(r.Context(), page.PerPage, page.Offset())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	total, err := h.Service.Count(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.List(w, items, page.Meta(total))
}
