package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/sportsarena/membership-backend/api/responses"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/logger"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	pendingTTL            = 2 * time.Minute
	idempotencyHeader     = "Idempotency-Key"
	replayHeader          = "Idempotent-Replay"
)

// ResponseStore keeps reservations and finished responses keyed by Idempotency-Key.
type ResponseStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type idempotencyRule struct {
	method   string
	pattern  string
	required bool
}

var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, pattern: "/api/v1/bookings", required: true},
	{method: http.MethodPost, pattern: "/api/v1/bookings/register", required: true},
	{method: http.MethodPost, pattern: "/api/v1/payments/{paymentId}/status"},
}

// storedResponse is a reservation while Status is zero and a replayable response afterwards.
type storedResponse struct {
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	BodyHash    string `json:"body_hash"`
}

var errInFlight = pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress")

// Idempotency replays the stored response for a repeated Idempotency-Key so a
// client retry never records a second payment. The key is reserved before the
// handler runs; concurrent duplicates get a conflict instead of double-booking.
func Idempotency(store ResponseStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := matchRule(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				if rule.required {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			g := guard{store: store, logg: logg, key: store.IdempotencyKey(scopeOf(r), clientKey), hash: hashBody(body)}
			if logg != nil {
				ctx = logg.WithField(ctx, "idempotency_key", clientKey)
			}

			reserved, err := g.reserve(ctx)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				g.replay(ctx, w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r.WithContext(ctx))

			status := capture.statusOrOK()
			if retryableStatus(status) {
				g.release(ctx)
				return
			}
			g.commit(ctx, storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				BodyHash:    g.hash,
			}, ttl)
		})
	}
}

type guard struct {
	store ResponseStore
	logg  *logger.Logger
	key   string
	hash  string
}

func (g guard) reserve(ctx context.Context) (bool, error) {
	marker, err := json.Marshal(storedResponse{BodyHash: g.hash})
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, g.key, string(marker), pendingTTL)
}

func (g guard) replay(ctx context.Context, w http.ResponseWriter) {
	raw, err := g.store.Get(ctx, g.key)
	switch {
	case errors.Is(err, redis.Nil), err == nil && raw == "":
		// reservation expired between SetNX and Get
		responses.WriteError(ctx, g.logg, w, errInFlight)
		return
	case err != nil:
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.BodyHash != g.hash:
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
	case stored.Status == 0:
		responses.WriteError(ctx, g.logg, w, errInFlight)
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(replayHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func (g guard) commit(ctx context.Context, resp storedResponse, ttl time.Duration) {
	payload, err := json.Marshal(resp)
	if err == nil {
		err = g.store.Set(ctx, g.key, string(payload), ttl)
	}
	if err != nil && g.logg != nil {
		g.logg.Error(ctx, "idempotency.commit_failed", err)
	}
}

// release drops the reservation so the client may retry with the same key.
func (g guard) release(ctx context.Context) {
	if err := g.store.Del(ctx, g.key); err != nil && g.logg != nil {
		g.logg.Error(ctx, "idempotency.release_failed", err)
	}
}

func retryableStatus(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusConflict || status == http.StatusTooManyRequests
}

func scopeOf(r *http.Request) string {
	return strings.Join([]string{StaffIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return strings.TrimSuffix(pattern, "/")
		}
	}
	return strings.TrimSuffix(r.URL.Path, "/")
}

func matchRule(method, pattern string) (idempotencyRule, bool) {
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.pattern == pattern {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
