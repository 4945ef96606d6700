package obs

import "context"

type scopeKey struct{}

// scope is the per-request routing metadata shared by logs, metrics and spans.
type scope struct {
	route string
	shop  string
}

func scopeFrom(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, s scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithRoutePattern records the matched chi pattern, keeping any shop already set.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	s := scopeFrom(ctx)
	s.route = pattern
	return withScope(ctx, s)
}

// RoutePatternFromContext returns the recorded route pattern, or "".
func RoutePatternFromContext(ctx context.Context) string {
	return scopeFrom(ctx).route
}

// WithShopDomain records the storefront a cart pass runs for.
func WithShopDomain(ctx context.Context, shop string) context.Context {
	s := scopeFrom(ctx)
	s.shop = shop
	return withScope(ctx, s)
}

// ShopDomainFromContext returns the recorded shop domain, or "".
func ShopDomainFromContext(ctx context.Context) string {
	return scopeFrom(ctx).shop
}
