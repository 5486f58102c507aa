package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/packfinderz-payouts/api/responses"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
	pkgredis "github.com/angelmondragon/packfinderz-payouts/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayHeader      = "Idempotent-Replay"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// pendingTTL bounds how long a crashed request can block its key.
	pendingTTL = 2 * time.Minute
)

// idempotencyRule patterns use path.Match syntax; one * is one segment.
type idempotencyRule struct {
	method  string
	pattern string
	ttl     time.Duration
}

// First match wins.
var idempotencyRules = []idempotencyRule{
	{http.MethodPost, "/api/admin/v1/payouts", criticalIdempotencyTTL},
	{http.MethodPost, "/api/admin/v1/payouts/*/process", criticalIdempotencyTTL},
	{http.MethodPost, "/api/admin/v1/payouts/*/complete", criticalIdempotencyTTL},
	{http.MethodPost, "/api/admin/v1/vendors/*/wallet/adjustments", criticalIdempotencyTTL},
	{http.MethodPost, "/api/admin/v1/payouts/*/*", defaultIdempotencyTTL},
	{http.MethodPost, "/api/admin/v1/revenue", defaultIdempotencyTTL},
}

type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

// IdempotencyStore adds the unconditional write used to replace the pending
// reservation with the final response.
type IdempotencyStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// money-moving routes. Requests without the header pass through. A key is
// reserved while its first request runs; 5xx responses are not kept so the
// caller can retry.
func Idempotency(store IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ttl, ok := routeTTL(r.Method, requestPath(r))
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if !ok || store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			hash := hashBody(body)
			key := store.IdempotencyKey(scopeFor(r), clientKey)

			reservation, _ := json.Marshal(idempotencyRecord{Pending: true, RequestHash: hash})
			reserved, err := store.SetNX(ctx, key, string(reservation), pendingTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayStored(w, r, store, key, hash, logg)
				return
			}

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			var captured bytes.Buffer
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			final, _ := json.Marshal(idempotencyRecord{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(captured.Bytes()),
				RequestHash: hash,
			})
			if err := store.Set(ctx, key, string(final), ttl); err != nil {
				logg.Error(ctx, "persist idempotency record", err)
			}
		})
	}
}

func replayStored(w http.ResponseWriter, r *http.Request, store IdempotencyStore, key, hash string, logg *logger.Logger) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// Expired between SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotent request still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotent request still in progress"))
	default:
		body, err := base64.StdEncoding.DecodeString(record.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency body"))
			return
		}
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(ReplayHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(body)
	}
}

// scopeFor keeps keys from colliding across actors and endpoints.
func scopeFor(r *http.Request) string {
	return strings.Join([]string{ActorIDFromContext(r.Context()), r.Method, requestPath(r)}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.RawStdEncoding.EncodeToString(sum[:])
}

// requestPath is what the rules match on. The chi route pattern is not yet
// resolved when this runs as subrouter middleware.
func requestPath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	p := strings.TrimSuffix(r.URL.Path, "/")
	if p == "" {
		return "/"
	}
	return p
}

func routeTTL(method, requestPath string) (time.Duration, bool) {
	if requestPath == "" {
		return 0, false
	}
	for _, rule := range idempotencyRules {
		if rule.method != method {
			continue
		}
		if ok, _ := path.Match(rule.pattern, requestPath); ok {
			return rule.ttl, true
		}
	}
	return 0, false
}
