package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/loom-erp/loom-erp/internal/account"
	"github.com/loom-erp/loom-erp/internal/auth"
	"github.com/loom-erp/loom-erp/internal/catalog"
	"github.com/loom-erp/loom-erp/internal/ledger"
	"github.com/loom-erp/loom-erp/internal/observability"
	"github.com/loom-erp/loom-erp/internal/purchase"
	"github.com/loom-erp/loom-erp/internal/shared"
	"github.com/loom-erp/loom-erp/internal/voucher"
)

type stubShopRepo struct {
	shop *auth.Shop
}

func (r *stubShopRepo) FindByUsername(ctx context.Context, username string) (*auth.Shop, error) {
	if r.shop == nil || r.shop.Username != username {
		return nil, shared.ErrNotFound
	}
	return r.shop, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authService := auth.NewService(&stubShopRepo{shop: &auth.Shop{
		ID:           "shop-1",
		Name:         "Test Shop",
		Username:     "demo",
		PasswordHash: string(hash),
		IsActive:     true,
	}}, "router-test-secret", time.Hour)

	return NewRouter(RouterParams{
		Logger:          logger,
		Config:          &Config{AppEnv: "test", RateLimit: 1000, RateLimitWindow: time.Minute},
		AuthHandler:     auth.NewHandler(logger, authService),
		CatalogHandler:  catalog.NewHandler(logger, nil),
		LedgerHandler:   ledger.NewHandler(logger, nil, nil),
		PurchaseHandler: purchase.NewHandler(logger, nil),
		VoucherHandler:  voucher.NewHandler(logger, nil, nil),
		AccountHandler:  account.NewHandler(logger, nil),
		Metrics:         observability.NewMetrics(),
	})
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/api/products", "/api/stock/p1", "/api/accounts", "/api/vouchers"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestLoginIssuesToken(t *testing.T) {
	router := newTestRouter(t)

	body := strings.NewReader(`{"username":"demo","password":"secret"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	router := newTestRouter(t)

	body := strings.NewReader(`{"username":"demo","password":"wrong"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", body))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
