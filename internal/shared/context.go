package shared

import "context"

// Tenant identifies the shop a request acts on behalf of.
type Tenant struct {
	ShopID   string
	ShopName string
}

type tenantContextKey struct{}

// ContextWithTenant stores the tenant in context.
func ContextWithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, t)
}

// TenantFromContext extracts the tenant from context.
func TenantFromContext(ctx context.Context) *Tenant {
	t, _ := ctx.Value(tenantContextKey{}).(*Tenant)
	return t
}
