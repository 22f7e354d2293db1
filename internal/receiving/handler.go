package receiving

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/stockyard-wms/stockyard/internal/masterdata/shared"
	"github.com/stockyard-wms/stockyard/internal/platform/httpx"
)

// Handler exposes receiving order and warehouse item endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/receiving", h.list)
	r.Get("/receiving/{code}", h.get)
	r.Get("/receiving/{code}/movements", h.movements)
	r.Post("/receiving", h.create)
	r.Post("/receiving/{code}/items", h.addOrRemoveItems)
	r.Post("/receiving/{code}/items/{item}/tracking", h.setupTracking)
	r.Post("/receiving/{code}/items/{item}/dissolve", h.dissolve)
	r.Post("/receiving/{code}/items/{item}/carve", h.carve)
	r.Post("/receiving/{code}/items/{item}/putaway", h.putaway)
	r.Post("/receiving/{code}/confirm", h.confirm)
	r.Post("/receiving/{code}/reset", h.reset)
	r.Post("/receiving/{code}/cancel", h.cancel)
	r.Get("/packaging-preview", h.previewPackaging)
	r.Post("/items/{item}/recalculate-price", h.recalculatePrice)
	r.Get("/availability/{product}", h.availability)
}

type createRequest struct {
	PurchaseOrder   string `json:"purchase_order" validate:"required"`
	StagingLocation string `json:"staging_location" validate:"required"`
}

type itemsRequest struct {
	Remove []string   `json:"remove"`
	Add    []ItemSpec `json:"add"`
}

type trackingRequest struct {
	Destinations []ItemSpec `json:"destinations" validate:"required,min=1"`
}

type carveRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type putawayRequest struct {
	Destination string `json:"destination" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.service.List(r.Context(), shared.FiltersFromRequest(r))
	if err != nil {
		h.logger.Error("list receiving orders", slog.Any("error", err))
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

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	moves, err := h.service.Movements(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": moves})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.CreateFromPurchaseOrder(r.Context(), req.PurchaseOrder, req.StagingLocation)
	if err != nil {
		h.logger.Error("create receiving order", slog.Any("error", err), slog.String("purchase_order", req.PurchaseOrder))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) addOrRemoveItems(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req itemsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := h.service.AddOrRemoveItems(r.Context(), code, req.Remove, req.Add)
	if err != nil {
		h.logger.Error("add/remove items", slog.Any("error", err), slog.String("code", code))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) setupTracking(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	item := chi.URLParam(r, "item")
	var req trackingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.SetupTracking(r.Context(), code, item, req.Destinations)
	if err != nil {
		h.logger.Error("setup tracking", slog.Any("error", err), slog.String("code", code), slog.String("item", item))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) dissolve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	item := chi.URLParam(r, "item")
	order, err := h.service.Dissolve(r.Context(), code, item)
	if err != nil {
		h.logger.Error("dissolve item", slog.Any("error", err), slog.String("code", code), slog.String("item", item))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) carve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	item := chi.URLParam(r, "item")
	var req carveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := h.service.CarveToCreditNote(r.Context(), code, item, req.Amount)
	if err != nil {
		h.logger.Error("carve to credit note", slog.Any("error", err), slog.String("code", code), slog.String("item", item))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) putaway(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	item := chi.URLParam(r, "item")
	var req putawayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Putaway(r.Context(), code, item, req.Destination); err != nil {
		h.logger.Error("putaway", slog.Any("error", err), slog.String("code", code), slog.String("item", item))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.service.Confirm(r.Context(), code); err != nil {
		h.logger.Error("confirm receiving order", slog.Any("error", err), slog.String("code", code))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.service.ResetToDraft(r.Context(), code); err != nil {
		h.logger.Error("reset receiving order", slog.Any("error", err), slog.String("code", code))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.service.Cancel(r.Context(), code); err != nil {
		h.logger.Error("cancel receiving order", slog.Any("error", err), slog.String("code", code))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) previewPackaging(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid amount")
		return
	}
	previews, err := h.service.PreviewPackaging(r.Context(), q.Get("item"), q.Get("product"), q.Get("package"), amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": previews})
}

func (h *Handler) recalculatePrice(w http.ResponseWriter, r *http.Request) {
	item := chi.URLParam(r, "item")
	price, err := h.service.RecalculateAveragePurchasePrice(r.Context(), item)
	if err != nil {
		h.logger.Error("recalculate price", slog.Any("error", err), slog.String("item", item))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_price": price})
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	product := chi.URLParam(r, "product")
	total, err := h.service.Availability(r.Context(), product)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product": product, "available": total})
}
