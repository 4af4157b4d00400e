package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"decision-engine/internal/models"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func transferReq() TransferRequest {
	return TransferRequest{
		IdempotencyKey: "payout-abc",
		Recipient:      "+254700000042",
		Amount:         2000,
		Currency:       "KES",
	}
}

func operatorStub(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if body != nil {
			json.NewEncoder(w).Encode(body)
		}
	}))
}

// ============================================================================
// TEST SUITE 1: TRANSFER INITIATION
// ============================================================================

func TestInitiateTransfer_Success(t *testing.T) {
	var gotIdempotency, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdempotency = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(transferResponse{Handle: "txn-123", Status: "pending"})
	}))
	defer server.Close()

	port := NewMobileMoneyPort("mobile-money", server.URL, "secret", time.Second)
	handle, err := port.InitiateTransfer(context.Background(), transferReq())

	assert.NoError(t, err)
	assert.Equal(t, "txn-123", handle)
	assert.Equal(t, "payout-abc", gotIdempotency, "Idempotency key rides the dedup header")
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestInitiateTransfer_RateLimitIsTransient(t *testing.T) {
	server := operatorStub(t, http.StatusTooManyRequests, nil)
	defer server.Close()

	port := NewMobileMoneyPort("mobile-money", server.URL, "secret", time.Second)
	_, err := port.InitiateTransfer(context.Background(), transferReq())

	assert.Error(t, err)
	assert.True(t, models.IsTransientPaymentError(err), "429 must be retryable")
}

func TestInitiateTransfer_ServerErrorIsTransient(t *testing.T) {
	server := operatorStub(t, http.StatusBadGateway, nil)
	defer server.Close()

	port := NewMobileMoneyPort("mobile-money", server.URL, "secret", time.Second)
	_, err := port.InitiateTransfer(context.Background(), transferReq())

	assert.Error(t, err)
	assert.True(t, models.IsTransientPaymentError(err))
}

func TestInitiateTransfer_ClientErrorIsPermanent(t *testing.T) {
	server := operatorStub(t, http.StatusBadRequest, map[string]string{"error": "invalid recipient"})
	defer server.Close()

	port := NewMobileMoneyPort("mobile-money", server.URL, "secret", time.Second)
	_, err := port.InitiateTransfer(context.Background(), transferReq())

	assert.Error(t, err)
	assert.False(t, models.IsTransientPaymentError(err), "Invalid-input failures must not be retried")
}

func TestInitiateTransfer_MalformedBodyIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	port := NewMobileMoneyPort("mobile-money", server.URL, "secret", time.Second)
	_, err := port.InitiateTransfer(context.Background(), transferReq())

	assert.Error(t, err)
	assert.True(t, models.IsTransientPaymentError(err))
}

// ============================================================================
// TEST SUITE 2: STATUS POLLING
// ============================================================================

func TestPollStatus_MapsOperatorStatuses(t *testing.T) {
	cases := []struct {
		operator string
		want     models.TransferStatus
	}{
		{"pending", models.TransferPending},
		{"processing", models.TransferPending},
		{"succeeded", models.TransferSucceeded},
		{"completed", models.TransferSucceeded},
		{"failed", models.TransferFailed},
		{"rejected", models.TransferFailed},
	}

	for _, tc := range cases {
		server := operatorStub(t, http.StatusOK, transferResponse{Handle: "txn-123", Status: tc.operator})

		port := NewMobileMoneyPort("mobile-money", server.URL, "secret", time.Second)
		status, err := port.PollStatus(context.Background(), "txn-123")

		assert.NoError(t, err, "operator status %q", tc.operator)
		assert.Equal(t, tc.want, status, "operator status %q", tc.operator)
		server.Close()
	}
}

func TestPollStatus_UnknownStatusIsTransientError(t *testing.T) {
	server := operatorStub(t, http.StatusOK, transferResponse{Handle: "txn-123", Status: "limbo"})
	defer server.Close()

	port := NewMobileMoneyPort("mobile-money", server.URL, "secret", time.Second)
	_, err := port.PollStatus(context.Background(), "txn-123")

	assert.Error(t, err)
	assert.True(t, models.IsTransientPaymentError(err), "Unknown statuses are retried, not failed")
}

// ============================================================================
// TEST SUITE 3: REGISTRY
// ============================================================================

func TestRegistry_ForPolicyPrefersNamedOperator(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewMobileMoneyPort("m-pesa", "http://a", "", time.Second))
	registry.Register(NewMobileMoneyPort("airtel", "http://b", "", time.Second))

	port, err := registry.ForPolicy(&models.Policy{PaymentProvider: "airtel"})

	assert.NoError(t, err)
	assert.Equal(t, "airtel", port.Name())
}

func TestRegistry_ForPolicyFallsBackToDefault(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewMobileMoneyPort("m-pesa", "http://a", "", time.Second))

	port, err := registry.ForPolicy(&models.Policy{PaymentProvider: "unknown-operator"})

	assert.NoError(t, err)
	assert.Equal(t, "m-pesa", port.Name(), "First registered operator is the default")
}

func TestRegistry_EmptyHasNoRoute(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.ForPolicy(&models.Policy{PaymentProvider: "any"})

	assert.Error(t, err)
}

func TestRegistry_GetByName(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewMobileMoneyPort("m-pesa", "http://a", "", time.Second))

	port, err := registry.Get("m-pesa")
	assert.NoError(t, err)
	assert.Equal(t, "m-pesa", port.Name())

	_, err = registry.Get("missing")
	assert.Error(t, err)
}
