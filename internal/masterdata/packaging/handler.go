package packaging

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	"github.com/stockyard-wms/stockyard/internal/masterdata/units"
	"github.com/stockyard-wms/stockyard/internal/platform/httpx"
)

// Handler exposes package type endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	units    *units.Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, unitSvc *units.Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, units: unitSvc, validate: validate}
}

// MountRoutes registers package routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/packages", h.list)
	r.Get("/packages/{name}", h.get)
	r.Post("/packages", h.create)
	r.Delete("/packages/{id}", h.delete)
}

type packageRequest struct {
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	UnitOfMeasure string          `json:"unit_of_measure"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.service.List(r.Context(), shared.FiltersFromRequest(r))
	if err != nil {
		h.logger.Error("list packages", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.service.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pkg)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pkg := PackageType{Name: req.Name, Description: req.Description, Amount: req.Amount}
	if req.UnitOfMeasure != "" {
		unit, err := h.units.GetByName(r.Context(), req.UnitOfMeasure)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		pkg.UnitOfMeasure = &unit
	}
	created, err := h.service.Create(r.Context(), pkg)
	if err != nil {
		h.logger.Error("create package", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
