package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRequest(url string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestDoRequestWithResilience_Validation(t *testing.T) {
	cb := newCircuitBreaker("test")

	_, err := doRequestWithResilience(context.Background(), HTTPClientConfig{}, cb, getRequest("http://x"))
	assert.ErrorIs(t, err, errNoHTTPClient)

	_, err = doRequestWithResilience(context.Background(), HTTPClientConfig{
		Client:  http.DefaultClient,
		Backoff: BackoffConfig{MaxRetries: 1},
	}, cb, getRequest("http://x"))
	assert.ErrorIs(t, err, errInvalidConfig)
}

func TestDoRequestWithResilience_OnRetryCalled(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var retries []int
	cfg := HTTPClientConfig{
		Client:  server.Client(),
		Backoff: BackoffConfig{MaxRetries: 3, InitialInterval: time.Millisecond},
		OnRetry: func(attempt int, err error) { retries = append(retries, attempt) },
	}

	resp, err := doRequestWithResilience(context.Background(), cfg, newCircuitBreaker("test"), getRequest(server.URL))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int{1}, retries)
}

func TestDoRequestWithResilience_CircuitOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := HTTPClientConfig{
		Client:  server.Client(),
		Backoff: BackoffConfig{MaxRetries: 10, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	}

	// The default breaker trips after more than five consecutive failures.
	_, err := doRequestWithResilience(context.Background(), cfg, newCircuitBreaker("test"), getRequest(server.URL))
	assert.ErrorIs(t, err, errCircuitOpen)
}
