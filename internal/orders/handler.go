package orders

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	"github.com/stockyard-wms/stockyard/internal/platform/httpx"
)

// Handler exposes purchase order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.list)
	r.Get("/orders/{code}", h.get)
	r.Post("/orders", h.upsert)
	r.Post("/orders/{code}/items", h.addItem)
	r.Delete("/orders/{code}/items/{product}", h.removeItem)
	r.Post("/orders/{code}/transition", h.transition)
}

type upsertRequest struct {
	Code     string         `json:"code"`
	Supplier string         `json:"supplier"`
	Currency string         `json:"currency"`
	Metadata map[string]any `json:"metadata"`
	Lines    []lineRequest  `json:"lines" validate:"dive"`
}

type lineRequest struct {
	Product   string          `json:"product" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type transitionRequest struct {
	State string `json:"state" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.service.List(r.Context(), shared.FiltersFromRequest(r))
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := UpsertInput{Code: req.Code, Supplier: req.Supplier, Currency: req.Currency, Metadata: req.Metadata}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{Product: line.Product, Amount: line.Amount, UnitPrice: line.UnitPrice})
	}
	order, err := h.service.UpdateOrCreate(r.Context(), input)
	if err != nil {
		h.logger.Error("upsert order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if req.Code == "" {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, order)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req lineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.AddItem(r.Context(), code, LineInput{Product: req.Product, Amount: req.Amount, UnitPrice: req.UnitPrice})
	if err != nil {
		h.logger.Error("add order item", slog.Any("error", err), slog.String("code", code))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	order, err := h.service.RemoveItem(r.Context(), code, chi.URLParam(r, "product"))
	if err != nil {
		h.logger.Error("remove order item", slog.Any("error", err), slog.String("code", code))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Transition(r.Context(), code, State(req.State)); err != nil {
		h.logger.Error("transition order", slog.Any("error", err), slog.String("code", code))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
