package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-payouts/internal/gateway"
	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
	"github.com/angelmondragon/packfinderz-payouts/pkg/logger"
)

const testSecret = "whsec_test"

type stubCallbacks struct {
	got     *gateway.Callback
	applied bool
	err     error
}

func (s *stubCallbacks) HandleGatewayCallback(ctx context.Context, cb *gateway.Callback) (bool, error) {
	s.got = cb
	return s.applied, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "webhooks-test", Output: io.Discard})
}

func signedRequest(t *testing.T, body []byte, signature string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/gateway", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(gateway.SignatureHeader, signature)
	}
	return req
}

func successBody(t *testing.T, payoutID uuid.UUID) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event_id":          "evt_1",
		"payout_id":         payoutID,
		"status":            "success",
		"payment_reference": "UTR123",
		"payment_method":    "neft",
	})
	require.NoError(t, err)
	return body
}

func TestGatewayWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubCallbacks{}
	body := successBody(t, uuid.New())
	resp := httptest.NewRecorder()
	GatewayWebhook(svc, testSecret, testLogger()).ServeHTTP(resp, signedRequest(t, body, gateway.Sign("other", body)))

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Nil(t, svc.got)
}

func TestGatewayWebhookRejectsMissingSignature(t *testing.T) {
	svc := &stubCallbacks{}
	resp := httptest.NewRecorder()
	GatewayWebhook(svc, testSecret, testLogger()).ServeHTTP(resp, signedRequest(t, successBody(t, uuid.New()), ""))

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestGatewayWebhookAppliesCallback(t *testing.T) {
	payoutID := uuid.New()
	svc := &stubCallbacks{applied: true}
	body := successBody(t, payoutID)
	resp := httptest.NewRecorder()
	GatewayWebhook(svc, testSecret, testLogger()).ServeHTTP(resp, signedRequest(t, body, "sha256="+gateway.Sign(testSecret, body)))

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.got)
	assert.Equal(t, payoutID, svc.got.PayoutID)
	assert.Equal(t, gateway.CallbackSuccess, svc.got.Status)

	var env struct {
		Data map[string]bool `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Data["applied"])
}

func TestGatewayWebhookAcknowledgesDuplicate(t *testing.T) {
	svc := &stubCallbacks{applied: false}
	body := successBody(t, uuid.New())
	resp := httptest.NewRecorder()
	GatewayWebhook(svc, testSecret, testLogger()).ServeHTTP(resp, signedRequest(t, body, gateway.Sign(testSecret, body)))

	require.Equal(t, http.StatusOK, resp.Code)
	var env struct {
		Data map[string]bool `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.False(t, env.Data["applied"])
}

func TestGatewayWebhookRejectsInvalidCallback(t *testing.T) {
	svc := &stubCallbacks{}
	body := []byte(`{"event_id":"evt_2","payout_id":"` + uuid.NewString() + `","status":"failure"}`)
	resp := httptest.NewRecorder()
	GatewayWebhook(svc, testSecret, testLogger()).ServeHTTP(resp, signedRequest(t, body, gateway.Sign(testSecret, body)))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Nil(t, svc.got)
}

func TestGatewayWebhookSurfacesTransitionConflict(t *testing.T) {
	svc := &stubCallbacks{err: pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot move payout from cancelled to completed")}
	body := successBody(t, uuid.New())
	resp := httptest.NewRecorder()
	GatewayWebhook(svc, testSecret, testLogger()).ServeHTTP(resp, signedRequest(t, body, gateway.Sign(testSecret, body)))

	assert.Equal(t, http.StatusConflict, resp.Code)
}
