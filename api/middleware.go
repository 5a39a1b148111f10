package api

import (
	"net/http"
	"strings"

	"github.com/weekorder/weekorder/core"
)

// authenticate resolves the bearer token to a principal and stores it in the
// request context.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			a.writeError(w, r, &core.Error{Op: "api.authenticate", Kind: "identity",
				Message: "Authentication required.", Err: core.ErrUnauthenticated})
			return
		}

		principal, err := a.auth.Authenticate(r.Context(), strings.TrimSpace(token))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(core.WithPrincipal(r.Context(), principal)))
	})
}

// requireRole rejects principals whose role is not one of roles.
func (a *API) requireRole(roles ...core.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := core.PrincipalFromContext(r.Context())
			if ok {
				for _, role := range roles {
					if p.Role == role {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			a.writeError(w, r, &core.Error{Op: "api.requireRole", Kind: "identity",
				Message: "Access denied.", Err: core.ErrForbidden})
		})
	}
}

// principal returns the authenticated caller. Routes using it sit behind authenticate.
func principal(r *http.Request) core.Principal {
	p, _ := core.PrincipalFromContext(r.Context())
	return p
}
