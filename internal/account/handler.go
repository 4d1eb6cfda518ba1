package account

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/loom-erp/loom-erp/internal/platform/httpx"
	"github.com/loom-erp/loom-erp/internal/shared"
)

// Handler wires HTTP endpoints for accounts and their ledgers.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the account handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.list)
	r.Post("/accounts", h.create)
	r.Get("/accounts/{id}", h.get)
	r.Put("/accounts/{id}", h.update)
	r.Delete("/accounts/{id}", h.delete)
	r.Get("/accounts/{id}/statement", h.statement)
	r.Post("/accounts/{id}/recompute", h.recompute)
}

type accountRequest struct {
	Name         string          `json:"name" validate:"required"`
	Type         string          `json:"type" validate:"required,oneof=CUSTOMER VENDOR BANK CASH INVENTORY EXPENSE REVENUE INTERNAL"`
	Phone        string          `json:"phone,omitempty"`
	Address      string          `json:"address,omitempty"`
	GSTIN        string          `json:"gstin,omitempty"`
	Pincode      string          `json:"pincode,omitempty"`
	Through      string          `json:"through,omitempty"`
	ThroughGSTIN string          `json:"through_gstin,omitempty"`
	Balance      decimal.Decimal `json:"balance,omitempty"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*accountRequest, *shared.Tenant, bool) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return nil, nil, false
	}
	var req accountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return nil, nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return nil, nil, false
	}
	return &req, tenant, true
}

func (req *accountRequest) toInput() CreateInput {
	return CreateInput{
		Name:         req.Name,
		Type:         Type(req.Type),
		Phone:        req.Phone,
		Address:      req.Address,
		GSTIN:        req.GSTIN,
		Pincode:      req.Pincode,
		Through:      req.Through,
		ThroughGSTIN: req.ThroughGSTIN,
		Balance:      req.Balance,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, tenant, ok := h.decode(w, r)
	if !ok {
		return
	}
	acct, err := h.service.Create(r.Context(), tenant.ShopID, req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acct)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	accounts, err := h.service.List(r.Context(), tenant.ShopID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	acct, err := h.service.Get(r.Context(), tenant.ShopID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	req, tenant, ok := h.decode(w, r)
	if !ok {
		return
	}
	acct, err := h.service.Update(r.Context(), tenant.ShopID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	if err := h.service.Delete(r.Context(), tenant.ShopID, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	from := parseDate(r.URL.Query().Get("from"))
	to := parseDate(r.URL.Query().Get("to"))
	st, err := h.service.GetStatement(r.Context(), tenant.ShopID, chi.URLParam(r, "id"), from, to)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	balance, err := h.service.RecomputeBalance(r.Context(), tenant.ShopID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
