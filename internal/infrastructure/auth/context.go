package auth

import "context"

type principalKey struct{}

// WithPrincipal stores the authenticated principal in ctx
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// BearerToken returns the caller's raw access token for forwarding to
// downstream services, or "" when the request is unauthenticated.
func BearerToken(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.Token
	}
	return ""
}
