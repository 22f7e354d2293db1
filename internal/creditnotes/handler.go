package creditnotes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	"github.com/stockyard-wms/stockyard/internal/platform/httpx"
)

// Handler exposes credit note read endpoints. Notes are created and
// mutated through the receiving flow only.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers credit note routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/credit-notes", h.list)
	r.Get("/credit-notes/{code}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if orderCode := r.URL.Query().Get("order"); orderCode != "" {
		note, err := h.service.GetByOrder(r.Context(), orderCode)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": []CreditNote{note}, "total": 1})
		return
	}
	items, total, err := h.service.List(r.Context(), shared.FiltersFromRequest(r))
	if err != nil {
		h.logger.Error("list credit notes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, note)
}
