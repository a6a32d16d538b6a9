package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsarena/membership-backend/pkg/auth"
	"github.com/sportsarena/membership-backend/pkg/enums"
	pkgerrors "github.com/sportsarena/membership-backend/pkg/errors"
	"github.com/sportsarena/membership-backend/pkg/redis"
)

const receiptBody = `{"invoice_number":"INV202600001"}`

type idemFixture struct {
	srv   *miniredis.Miniredis
	store *redis.Client
	calls int
	reply func(w http.ResponseWriter)
	wrap  func(http.Handler) http.Handler
}

func newIdemFixture(t *testing.T) *idemFixture {
	t.Helper()
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	f := &idemFixture{srv: srv, store: redis.NewFromRaw(raw)}
	f.reply = func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, receiptBody)
	}
	f.wrap = Idempotency(f.store, time.Hour, nil)
	return f
}

func (f *idemFixture) handler() http.Handler {
	return f.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		f.reply(w)
	}))
}

func (f *idemFixture) send(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler().ServeHTTP(rec, req)
	return rec
}

func routed(method, path, pattern, key, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	ctx = WithActor(ctx, auth.Actor{StaffID: "desk-1", Role: enums.StaffRoleStaff})
	return req.WithContext(ctx)
}

func bookingRequest(key, body string) *http.Request {
	return routed(http.MethodPost, "/api/v1/bookings", "/api/v1/bookings", key, body)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestMatchRule(t *testing.T) {
	tests := []struct {
		method   string
		pattern  string
		ok       bool
		required bool
	}{
		{http.MethodPost, "/api/v1/bookings", true, true},
		{http.MethodPost, "/api/v1/bookings/register", true, true},
		{http.MethodPost, "/api/v1/payments/{paymentId}/status", true, false},
		{http.MethodGet, "/api/v1/bookings", false, false},
		{http.MethodPost, "/api/v1/members", false, false},
	}
	for _, tt := range tests {
		rule, ok := matchRule(tt.method, tt.pattern)
		assert.Equal(t, tt.ok, ok, "%s %s", tt.method, tt.pattern)
		if ok {
			assert.Equal(t, tt.required, rule.required, "%s %s", tt.method, tt.pattern)
		}
	}
}

func TestIdempotencyRequiresKeyOnBookings(t *testing.T) {
	f := newIdemFixture(t)

	rec := f.send(bookingRequest("", `{"payer_id":"x"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.calls)
}

func TestIdempotencyKeyOptionalOnStatusChange(t *testing.T) {
	f := newIdemFixture(t)
	req := routed(http.MethodPost, "/api/v1/payments/p-1/status", "/api/v1/payments/{paymentId}/status", "", `{"status":"refunded"}`)

	rec := f.send(req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, f.calls)
	assert.Empty(t, f.srv.Keys())
}

func TestIdempotencyReplaysCommittedResponse(t *testing.T) {
	f := newIdemFixture(t)

	first := f.send(bookingRequest("abc", `{"payer_id":"x"}`))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(replayHeader))

	again := f.send(bookingRequest("abc", `{"payer_id":"x"}`))
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get(replayHeader))
	assert.Equal(t, "application/json", again.Header().Get("Content-Type"))
	assert.JSONEq(t, receiptBody, again.Body.String())
	assert.Equal(t, 1, f.calls)
}

func TestIdempotencyCommitKeepsConfiguredTTL(t *testing.T) {
	f := newIdemFixture(t)

	f.send(bookingRequest("ttl", `{}`))

	keys := f.srv.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, time.Hour, f.srv.TTL(keys[0]))

	raw, err := f.srv.Get(keys[0])
	require.NoError(t, err)
	var stored storedResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, http.StatusCreated, stored.Status)
	assert.Equal(t, hashBody([]byte(`{}`)), stored.BodyHash)
}

func TestIdempotencyRejectsReusedKeyWithNewBody(t *testing.T) {
	f := newIdemFixture(t)
	f.send(bookingRequest("xyz", `{"payer_id":"x"}`))

	rec := f.send(bookingRequest("xyz", `{"payer_id":"y"}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
	assert.Equal(t, 1, f.calls)
}

func TestIdempotencyRejectsDuplicateWhileInFlight(t *testing.T) {
	f := newIdemFixture(t)
	var duplicate *httptest.ResponseRecorder
	f.reply = func(w http.ResponseWriter) {
		if duplicate == nil {
			duplicate = f.send(bookingRequest("dup", `{"payer_id":"x"}`))
		}
		w.WriteHeader(http.StatusCreated)
	}

	rec := f.send(bookingRequest("dup", `{"payer_id":"x"}`))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, duplicate)
	assert.Equal(t, http.StatusConflict, duplicate.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, duplicate))
	assert.Equal(t, 1, f.calls)
}

func TestIdempotencyReleasesKeyOnRetryableStatus(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		f := newIdemFixture(t)
		f.reply = func(w http.ResponseWriter) { w.WriteHeader(status) }

		require.Equal(t, status, f.send(bookingRequest("retry", `{}`)).Code)
		assert.Empty(t, f.srv.Keys(), "status %d", status)

		f.reply = func(w http.ResponseWriter) { w.WriteHeader(http.StatusCreated) }
		assert.Equal(t, http.StatusCreated, f.send(bookingRequest("retry", `{}`)).Code)
		assert.Equal(t, 2, f.calls)
	}
}

func TestIdempotencyKeepsClientErrors(t *testing.T) {
	f := newIdemFixture(t)
	f.reply = func(w http.ResponseWriter) { w.WriteHeader(http.StatusUnprocessableEntity) }

	f.send(bookingRequest("bad", `{}`))
	rec := f.send(bookingRequest("bad", `{}`))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(replayHeader))
	assert.Equal(t, 1, f.calls)
}

func TestIdempotencyScopesKeysPerStaffMember(t *testing.T) {
	f := newIdemFixture(t)

	f.send(bookingRequest("shared", `{}`))
	other := bookingRequest("shared", `{}`)
	other = other.WithContext(WithActor(other.Context(), auth.Actor{StaffID: "desk-2", Role: enums.StaffRoleStaff}))
	rec := f.send(other)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Header().Get(replayHeader))
	assert.Equal(t, 2, f.calls)
}

func TestIdempotencyStoreOutage(t *testing.T) {
	f := newIdemFixture(t)
	f.srv.Close()

	rec := f.send(bookingRequest("down", `{}`))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))
	assert.Zero(t, f.calls)
}

func TestIdempotencySkipsOtherRoutes(t *testing.T) {
	f := newIdemFixture(t)

	for i := 0; i < 2; i++ {
		f.send(routed(http.MethodPost, "/api/v1/members", "/api/v1/members", "same", `{}`))
	}

	assert.Equal(t, 2, f.calls)
	assert.Empty(t, f.srv.Keys())
}
