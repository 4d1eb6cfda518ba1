package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/loom-erp/loom-erp/internal/shared"
)

type memoryRepo struct {
	shops map[string]*Shop
}

func (r *memoryRepo) FindByUsername(ctx context.Context, username string) (*Shop, error) {
	shop, ok := r.shops[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return shop, nil
}

func newTestService(t *testing.T) (*Service, *Shop) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	shop := &Shop{
		ID:           "shop-1",
		Name:         "Loom Textiles",
		Username:     "loom",
		PasswordHash: string(hash),
		IsActive:     true,
	}
	repo := &memoryRepo{shops: map[string]*Shop{"loom": shop}}
	return NewService(repo, "test-signing-key", time.Hour), shop
}

func TestAuthenticate(t *testing.T) {
	svc, shop := newTestService(t)

	got, err := svc.Authenticate(context.Background(), "loom", "secret123")
	require.NoError(t, err)
	require.Equal(t, shop.ID, got.ID)

	_, err = svc.Authenticate(context.Background(), "loom", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody", "secret123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateInactiveShop(t *testing.T) {
	svc, shop := newTestService(t)
	shop.IsActive = false

	_, err := svc.Authenticate(context.Background(), "loom", "secret123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	svc, shop := newTestService(t)

	token, err := svc.IssueToken(shop)
	require.NoError(t, err)

	tenant, err := svc.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, "shop-1", tenant.ShopID)
	require.Equal(t, "Loom Textiles", tenant.ShopName)
}

func TestVerifyTokenRejectsForgery(t *testing.T) {
	svc, shop := newTestService(t)
	other := NewService(&memoryRepo{}, "different-key", time.Hour)

	token, err := svc.IssueToken(shop)
	require.NoError(t, err)

	_, err = other.VerifyToken(token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.VerifyToken("not-a-token")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestMiddleware(t *testing.T) {
	svc, shop := newTestService(t)
	handler := NewHandler(nil, svc)

	var seen *shared.Tenant
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.TenantFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	token, err := svc.IssueToken(shop)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.Middleware(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "shop-1", seen.ShopID)

	rec = httptest.NewRecorder()
	handler.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
