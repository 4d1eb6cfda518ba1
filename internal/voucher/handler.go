package voucher

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/loom-erp/loom-erp/internal/account"
	"github.com/loom-erp/loom-erp/internal/platform/httpx"
	"github.com/loom-erp/loom-erp/internal/shared"
)

// MetricsPort counts created vouchers.
type MetricsPort interface {
	CountVoucher(voucherType string)
}

// Handler wires HTTP endpoints for vouchers.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  MetricsPort
	validate *validator.Validate
}

// NewHandler constructs the voucher handler. metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, metrics MetricsPort) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers voucher routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/vouchers", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{voucherID}", h.get)
		r.Put("/{voucherID}", h.update)
		r.Delete("/{voucherID}", h.delete)
	})
}

type itemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	Rate      decimal.Decimal `json:"rate"`
	Total     decimal.Decimal `json:"total"`
}

type voucherRequest struct {
	AccountID     string          `json:"account_id" validate:"required"`
	Type          string          `json:"type" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	GSTRate       decimal.Decimal `json:"gst_rate"`
	Date          string          `json:"date,omitempty"`
	Description   string          `json:"description,omitempty"`
	Items         []itemRequest   `json:"items,omitempty" validate:"dive"`
}

func (h *Handler) toInput(w http.ResponseWriter, req voucherRequest) (Input, bool) {
	input := Input{
		AccountID:     req.AccountID,
		Type:          account.TxnType(req.Type),
		Amount:        req.Amount,
		TaxableAmount: req.TaxableAmount,
		TaxAmount:     req.TaxAmount,
		GSTRate:       req.GSTRate,
		Description:   req.Description,
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be yyyy-mm-dd")
			return Input{}, false
		}
		input.Date = date
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Rate:      item.Rate,
			Total:     item.Total,
		})
	}
	return input, true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	var req voucherRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, ok := h.toInput(w, req)
	if !ok {
		return
	}

	v, err := h.service.Create(r.Context(), tenant.ShopID, input)
	if err != nil {
		h.logger.Warn("create voucher rejected", slog.String("type", req.Type), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.CountVoucher(string(v.Type))
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":         v.ID,
		"invoice_no": v.InvoiceNo,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	vouchers, err := h.service.List(r.Context(), tenant.ShopID, q.Get("account_id"), account.TxnType(q.Get("type")), shared.Pagination{Page: page, PerPage: perPage})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vouchers)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	v, err := h.service.Get(r.Context(), tenant.ShopID, chi.URLParam(r, "voucherID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	var req voucherRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, ok := h.toInput(w, req)
	if !ok {
		return
	}

	v, err := h.service.Update(r.Context(), tenant.ShopID, chi.URLParam(r, "voucherID"), input)
	if err != nil {
		h.logger.Warn("update voucher rejected", slog.String("type", req.Type), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	if err := h.service.Delete(r.Context(), tenant.ShopID, chi.URLParam(r, "voucherID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}
