package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/packfinderz-payouts/pkg/errors"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Gateway-Signature"

// CallbackStatus is the gateway's verdict on a transfer.
type CallbackStatus string

const (
	CallbackSuccess CallbackStatus = "success"
	CallbackFailure CallbackStatus = "failure"
)

// Callback is the asynchronous transfer result posted by the gateway.
type Callback struct {
	EventID          string          `json:"event_id"`
	PayoutID         uuid.UUID       `json:"payout_id"`
	Status           CallbackStatus  `json:"status"`
	PaymentReference string          `json:"payment_reference"`
	PaymentMethod    string          `json:"payment_method"`
	Gateway          string          `json:"gateway"`
	FailureReason    string          `json:"failure_reason"`
	Raw              json.RawMessage `json:"raw,omitempty"`
}

// DecodeCallback parses and validates a callback body.
func DecodeCallback(body []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback body")
	}
	cb.EventID = strings.TrimSpace(cb.EventID)
	cb.PaymentReference = strings.TrimSpace(cb.PaymentReference)
	cb.PaymentMethod = strings.TrimSpace(cb.PaymentMethod)
	cb.FailureReason = strings.TrimSpace(cb.FailureReason)

	fields := map[string]string{}
	if cb.EventID == "" {
		fields["event_id"] = "required"
	}
	if cb.PayoutID == uuid.Nil {
		fields["payout_id"] = "required"
	}
	switch cb.Status {
	case CallbackSuccess:
		if cb.PaymentReference == "" {
			fields["payment_reference"] = "required on success"
		}
		if cb.PaymentMethod == "" {
			fields["payment_method"] = "required on success"
		}
	case CallbackFailure:
		if cb.FailureReason == "" {
			fields["failure_reason"] = "required on failure"
		}
	default:
		fields["status"] = "must be success or failure"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid callback").WithDetails(fields)
	}
	return &cb, nil
}

// RawResponse returns the gateway payload to persist on the payout.
func (c *Callback) RawResponse() map[string]any {
	out := map[string]any{
		"event_id": c.EventID,
		"status":   string(c.Status),
	}
	if c.Gateway != "" {
		out["gateway"] = c.Gateway
	}
	if len(c.Raw) > 0 {
		var raw any
		if err := json.Unmarshal(c.Raw, &raw); err == nil {
			out["raw"] = raw
		}
	}
	return out
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares header against the expected signature in constant time.
// A "sha256=" prefix on the header is accepted.
func VerifySignature(secret string, body []byte, header string) error {
	if secret == "" {
		return errors.New("webhook secret not configured")
	}
	got := strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	if got == "" {
		return errors.New("missing signature")
	}
	provided, err := hex.DecodeString(got)
	if err != nil {
		return errors.New("malformed signature")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return errors.New("signature mismatch")
	}
	return nil
}
