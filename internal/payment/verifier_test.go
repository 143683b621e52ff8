package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifyPaidSession(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/sess_123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paid": true}`))
	}))
	defer srv.Close()

	verifier := NewHTTPVerifier(srv.URL, time.Second)

	// Act
	paid, err := verifier.Verify(context.Background(), "sess_123")

	// Assert
	assert.NoError(t, err)
	assert.True(t, paid)
}

func TestVerifyUnpaidSession(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"paid": false}`))
	}))
	defer srv.Close()

	verifier := NewHTTPVerifier(srv.URL, time.Second)

	// Act
	paid, err := verifier.Verify(context.Background(), "sess_123")

	// Assert: unpaid is an answer, not an error
	assert.NoError(t, err)
	assert.False(t, paid)
}

func TestVerifyProviderError(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	verifier := NewHTTPVerifier(srv.URL, time.Second)

	// Act
	paid, err := verifier.Verify(context.Background(), "sess_123")

	// Assert
	assert.Error(t, err)
	assert.False(t, paid)
}

func TestVerifyMalformedBody(t *testing.T) {
	// Arrange: a provider serving its maintenance page with status 200. That
	// must read as "could not verify", never as an authoritative "unpaid".
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	verifier := NewHTTPVerifier(srv.URL, time.Second)

	// Act
	paid, err := verifier.Verify(context.Background(), "sess_123")

	// Assert
	assert.Error(t, err)
	assert.False(t, paid)
}

func TestVerifyTimeout(t *testing.T) {
	// Arrange: a provider that never answers within the budget
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"paid": true}`))
	}))
	defer srv.Close()

	verifier := NewHTTPVerifier(srv.URL, 20*time.Millisecond)

	// Act
	paid, err := verifier.Verify(context.Background(), "sess_123")

	// Assert
	assert.Error(t, err)
	assert.False(t, paid)
}

func TestVerifyUnreachableProvider(t *testing.T) {
	// Arrange: nothing listens here
	verifier := NewHTTPVerifier("http://127.0.0.1:1", 200*time.Millisecond)

	// Act
	paid, err := verifier.Verify(context.Background(), "sess_123")

	// Assert
	assert.Error(t, err)
	assert.False(t, paid)
}
