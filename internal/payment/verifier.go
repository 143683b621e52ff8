package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Verifier reports whether funds were captured for a checkout session. The
// provider is external and untrusted: any transport failure, timeout or
// malformed body surfaces as an error and must never mutate local state.
type Verifier interface {
	Verify(ctx context.Context, sessionID string) (bool, error)
}

// HTTPVerifier implements Verifier against the payment provider's
// session-status endpoint.
type HTTPVerifier struct {
	client  *resty.Client
	baseURL string
}

// NewHTTPVerifier creates a verifier client with a bounded per-call timeout.
// The timeout is what turns a hung provider into PaymentVerificationFailed
// upstream instead of a stuck checkout.
func NewHTTPVerifier(baseURL string, timeout time.Duration) *HTTPVerifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)
	return &HTTPVerifier{client: client, baseURL: baseURL}
}

type sessionStatus struct {
	Paid bool `json:"paid"`
}

// Verify fetches the session's payment status. The bool answers "captured?";
// an error means the question itself could not be answered. A body that does
// not decode is in the second bucket: "unpaid" is only ever an explicit
// answer from the provider, never a parsing fallback.
func (v *HTTPVerifier) Verify(ctx context.Context, sessionID string) (bool, error) {
	resp, err := v.client.R().
		SetContext(ctx).
		SetPathParam("session_id", sessionID).
		Get(v.baseURL + "/v1/checkout/sessions/{session_id}")
	if err != nil {
		return false, fmt.Errorf("payment verification request failed: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("payment verifier returned status %d", resp.StatusCode())
	}

	var status sessionStatus
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return false, fmt.Errorf("payment verifier returned malformed body: %w", err)
	}
	return status.Paid, nil
}
