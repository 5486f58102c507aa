package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/packfinderz-payouts/api/responses"
	pkgAuth "github.com/angelmondragon/packfinderz-payouts/pkg/auth"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
)

// RequireRole rejects actors whose role is not one of allowed. It must run
// after Auth.
func RequireRole(logg *logger.Logger, allowed ...pkgAuth.Role) func(http.Handler) http.Handler {
	names := make([]string, 0, len(allowed))
	for _, role := range allowed {
		names = append(names, string(role))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(allowed, pkgAuth.Role(RoleFromContext(r.Context()))) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted").
					WithDetails(map[string]any{"allowed": names}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
