package obs

import (
	"context"
	"testing"
)

func TestScopeKeepsRouteAndShop(t *testing.T) {
	ctx := WithShopDomain(context.Background(), "snow.myshopify.com")
	ctx = WithRoutePattern(ctx, "/v1/cart-transform/run")

	if got := RoutePatternFromContext(ctx); got != "/v1/cart-transform/run" {
		t.Fatalf("unexpected route %q", got)
	}
	if got := ShopDomainFromContext(ctx); got != "snow.myshopify.com" {
		t.Fatalf("route overwrote shop, got %q", got)
	}
	if got := ShopDomainFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty shop, got %q", got)
	}
}
