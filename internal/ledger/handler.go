package ledger

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/loom-erp/loom-erp/internal/platform/httpx"
	"github.com/loom-erp/loom-erp/internal/shared"
)

// MetricsPort counts posted movements.
type MetricsPort interface {
	CountMovement(movementType string)
}

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  MetricsPort
	validate *validator.Validate
}

// NewHandler constructs the ledger handler. metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, metrics MetricsPort) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock", h.applyMovement)
	r.Get("/stock/{productID}", h.history)
	r.Post("/stock/{productID}/recompute", h.recompute)
}

type movementRequest struct {
	ProductID   string          `json:"product_id" validate:"required"`
	Type        string          `json:"type" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	ReferenceID string          `json:"reference_id,omitempty"`
	Note        string          `json:"note,omitempty"`
}

func (h *Handler) applyMovement(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}

	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	movement, newStock, err := h.service.ApplyMovement(r.Context(), MovementInput{
		ShopID:      tenant.ShopID,
		ProductID:   req.ProductID,
		Type:        MovementType(req.Type),
		Quantity:    req.Quantity,
		ReferenceID: req.ReferenceID,
		Note:        req.Note,
	})
	if err != nil {
		h.logger.Warn("apply movement rejected", slog.String("product", req.ProductID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.CountMovement(string(movement.Type))
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":       movement.ID,
		"newStock": newStock,
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.History(r.Context(), tenant.ShopID, chi.URLParam(r, "productID"), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
		return
	}
	stock, err := h.service.RecomputeStock(r.Context(), tenant.ShopID, chi.URLParam(r, "productID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock": stock})
}
