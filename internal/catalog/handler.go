package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/loom-erp/loom-erp/internal/platform/httpx"
	"github.com/loom-erp/loom-erp/internal/shared"
)

// Handler wires HTTP endpoints for the catalog.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.Post("/", h.createCategory)
		r.Get("/", h.listCategories)
		r.Put("/{categoryID}", h.updateCategory)
		r.Delete("/{categoryID}", h.deleteCategory)
	})
	r.Route("/sub-categories", func(r chi.Router) {
		r.Post("/", h.createSubCategory)
		r.Get("/", h.listSubCategories)
		r.Put("/{subCategoryID}", h.updateSubCategory)
		r.Delete("/{subCategoryID}", h.deleteSubCategory)
	})
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.createProduct)
		r.Get("/", h.listProducts)
		r.Get("/{productID}", h.getProduct)
		r.Put("/{productID}", h.updateProduct)
		r.Delete("/{productID}", h.deleteProduct)
	})
}

func tenantOf(w http.ResponseWriter, r *http.Request) *shared.Tenant {
	tenant := shared.TenantFromContext(r.Context())
	if tenant == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant")
	}
	return tenant
}

type nameRequest struct {
	Name       string `json:"name" validate:"required"`
	CategoryID string `json:"category_id,omitempty"`
}

type productRequest struct {
	Name          string          `json:"name" validate:"required"`
	CategoryID    string          `json:"category_id,omitempty"`
	SubCategoryID string          `json:"sub_category_id,omitempty"`
	Size          string          `json:"size,omitempty"`
	HSN           string          `json:"hsn,omitempty"`
	Rate          decimal.Decimal `json:"rate"`
	OpeningStock  decimal.Decimal `json:"opening_stock"`
}

func (r productRequest) toInput() ProductInput {
	return ProductInput{
		Name:          r.Name,
		CategoryID:    r.CategoryID,
		SubCategoryID: r.SubCategoryID,
		Size:          r.Size,
		HSN:           r.HSN,
		Rate:          r.Rate,
		OpeningStock:  r.OpeningStock,
	}
}

func (h *Handler) decodeName(w http.ResponseWriter, r *http.Request) (nameRequest, bool) {
	var req nameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return nameRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return nameRequest{}, false
	}
	return req, true
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	req, ok := h.decodeName(w, r)
	if !ok {
		return
	}
	c, err := h.service.CreateCategory(r.Context(), tenant.ShopID, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	categories, err := h.service.ListCategories(r.Context(), tenant.ShopID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	req, ok := h.decodeName(w, r)
	if !ok {
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), tenant.ShopID, chi.URLParam(r, "categoryID"), req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	if err := h.service.DeleteCategory(r.Context(), tenant.ShopID, chi.URLParam(r, "categoryID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) createSubCategory(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	req, ok := h.decodeName(w, r)
	if !ok {
		return
	}
	sc, err := h.service.CreateSubCategory(r.Context(), tenant.ShopID, req.CategoryID, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sc)
}

func (h *Handler) listSubCategories(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	subs, err := h.service.ListSubCategories(r.Context(), tenant.ShopID, r.URL.Query().Get("category_id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, subs)
}

func (h *Handler) updateSubCategory(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	req, ok := h.decodeName(w, r)
	if !ok {
		return
	}
	sc, err := h.service.UpdateSubCategory(r.Context(), tenant.ShopID, chi.URLParam(r, "subCategoryID"), req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sc)
}

func (h *Handler) deleteSubCategory(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	if err := h.service.DeleteSubCategory(r.Context(), tenant.ShopID, chi.URLParam(r, "subCategoryID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.CreateProduct(r.Context(), tenant.ShopID, req.toInput())
	if err != nil {
		h.logger.Warn("create product rejected", slog.String("name", req.Name), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	products, err := h.service.ListProducts(r.Context(), tenant.ShopID, r.URL.Query().Get("category_id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	p, err := h.service.GetProduct(r.Context(), tenant.ShopID, chi.URLParam(r, "productID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), tenant.ShopID, chi.URLParam(r, "productID"), req.toInput())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	tenant := tenantOf(w, r)
	if tenant == nil {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), tenant.ShopID, chi.URLParam(r, "productID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}
