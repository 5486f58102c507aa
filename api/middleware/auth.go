package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/packfinderz-payouts/api/responses"
	pkgAuth "github.com/angelmondragon/packfinderz-payouts/pkg/auth"
	"github.com/angelmondragon/packfinderz-payouts/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
)

// Auth accepts "Authorization: Bearer <jwt>" (or the bare token) and puts the
// actor id and role on the request context and the log fields.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			actorID, role := claims.ActorID.String(), string(claims.Role)
			ctx := WithActor(r.Context(), actorID, role)
			ctx = logg.WithActorRole(logg.WithActorID(ctx, actorID), role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, found := strings.Cut(raw, " "); found && strings.EqualFold(scheme, "bearer") {
		raw = strings.TrimSpace(rest)
	}
	return raw, raw != ""
}
