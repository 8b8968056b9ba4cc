package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront.git/internal/auth"
	"github.com/ariefcatur/go-storefront.git/internal/orders"
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p orders.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated caller set by RequireAuth.
func PrincipalFrom(ctx context.Context) (orders.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(orders.Principal)
	return p, ok
}

// RequireAuth validates "Authorization: Bearer <jwt>"; 401 kalau tidak ada/invalid.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			tok, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || strings.TrimSpace(tok) == "" {
				unauthorized(w)
				return
			}
			claims, err := auth.Parse(secret, strings.TrimSpace(tok))
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), claims.Principal())))
		})
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...orders.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				unauthorized(w)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, errorBody{Error: orders.ErrForbidden.Msg, Code: string(orders.KindForbidden)})
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="storefront"`)
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid token", Code: "UNAUTHORIZED"})
}
