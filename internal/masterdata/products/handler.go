package products

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	"github.com/stockyard-wms/stockyard/internal/masterdata/units"
	"github.com/stockyard-wms/stockyard/internal/platform/httpx"
)

// Handler exposes product endpoints.
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

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{code}", h.get)
	r.Post("/products", h.create)
	r.Put("/products/{code}", h.update)
}

type productRequest struct {
	Code          string          `json:"code" validate:"required"`
	Name          string          `json:"name" validate:"required"`
	Type          string          `json:"type"`
	Group         string          `json:"group"`
	UnitOfMeasure string          `json:"unit_of_measure" validate:"required"`
	UnitWeight    decimal.Decimal `json:"unit_weight"`
	Currency      string          `json:"currency"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	BasePrice     decimal.Decimal `json:"base_price"`
	Attributes    map[string]any  `json:"attributes"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.service.List(r.Context(), shared.FiltersFromRequest(r))
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	product, ok := h.decode(w, r, "")
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), product)
	if err != nil {
		h.logger.Error("create product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	product, ok := h.decode(w, r, code)
	if !ok {
		return
	}
	if err := h.service.Update(r.Context(), code, product); err != nil {
		h.logger.Error("update product", slog.Any("error", err), slog.String("code", code))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, code string) (Product, bool) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return Product{}, false
	}
	if code != "" {
		req.Code = code
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Product{}, false
	}
	unit, err := h.units.GetByName(r.Context(), req.UnitOfMeasure)
	if err != nil {
		httpx.RespondError(w, err)
		return Product{}, false
	}
	return Product{
		Code:          req.Code,
		Name:          req.Name,
		Type:          req.Type,
		Group:         req.Group,
		UnitOfMeasure: unit,
		UnitWeight:    req.UnitWeight,
		Currency:      req.Currency,
		PurchasePrice: req.PurchasePrice,
		BasePrice:     req.BasePrice,
		Attributes:    req.Attributes,
	}, true
}
