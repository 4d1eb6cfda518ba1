package purchase

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/loom-erp/loom-erp/internal/platform/httpx"
	"github.com/loom-erp/loom-erp/internal/shared"
)

// Handler wires HTTP endpoints for purchase vouchers.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the purchase handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/purchases", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{purchaseID}", h.get)
		r.Put("/{purchaseID}", h.update)
		r.Delete("/{purchaseID}", h.delete)
	})
}

type itemRequest struct {
	ProductID   string          `json:"product_id" validate:"required"`
	HSN         string          `json:"hsn,omitempty"`
	Size        string          `json:"size,omitempty"`
	Description string          `json:"description,omitempty"`
	Rate        decimal.Decimal `json:"rate"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	Total       decimal.Decimal `json:"total"`
}

type purchaseRequest struct {
	VendorID    string          `json:"vendor_id" validate:"required"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []itemRequest   `json:"items" validate:"required,min=1,dive"`
}

func (r purchaseRequest) toInput() Input {
	input := Input{VendorID: r.VendorID, TotalAmount: r.TotalAmount}
	for _, item := range r.Items {
		input.Items = append(input.Items, ItemInput{
			ProductID:   item.ProductID,
			HSN:         item.HSN,
			Size:        item.Size,
			Description: item.Description,
			Rate:        item.Rate,
			Quantity:    item.Quantity,
			Total:       item.Total,
		})
	}
	return input
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return Input{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Input{}, false
	}
	return req.toInput(), true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.service.Create(r.Context(), tenant.ShopID, input)
	if err != nil {
		h.logger.Warn("create purchase rejected", slog.String("vendor", input.VendorID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":         p.ID,
		"invoice_no": p.InvoiceNo,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	purchases, err := h.service.List(r.Context(), tenant.ShopID, r.URL.Query().Get("invoice_no"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchases)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	p, err := h.service.Get(r.Context(), tenant.ShopID, chi.URLParam(r, "purchaseID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.service.Update(r.Context(), tenant.ShopID, chi.URLParam(r, "purchaseID"), input)
	if err != nil {
		h.logger.Warn("update purchase rejected", slog.String("purchase", chi.URLParam(r, "purchaseID")), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	if err := h.service.Delete(r.Context(), tenant.ShopID, chi.URLParam(r, "purchaseID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}
