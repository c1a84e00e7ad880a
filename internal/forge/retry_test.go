package forge

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryConfigApplyDefaults(t *testing.T) {
	t.Run("applies all defaults when empty", func(t *testing.T) {
		config := &RetryConfig{}
		config.ApplyDefaults()

		assert.Equal(t, 3, config.MaxRetries)
		assert.Equal(t, time.Second, config.InitialBackoff)
		assert.Equal(t, 30*time.Second, config.MaxBackoff)
		assert.Equal(t, 2.0, config.BackoffMultiplier)
	})

	t.Run("preserves non-zero values", func(t *testing.T) {
		config := &RetryConfig{
			MaxRetries:        5,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 3.0,
		}
		config.ApplyDefaults()

		assert.Equal(t, 5, config.MaxRetries)
		assert.Equal(t, 2*time.Second, config.InitialBackoff)
	})
}

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	callCount := 0
	operation := func() (*github.Response, error) {
		callCount++
		if callCount < 3 {
			return &github.Response{
				Response: &http.Response{StatusCode: http.StatusServiceUnavailable},
			}, errors.New("service unavailable")
		}
		return &github.Response{
			Response: &http.Response{StatusCode: http.StatusOK},
		}, nil
	}

	resp, err := retryGitHubOperation(context.Background(), fastRetryConfig(), nil, operation)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Response.StatusCode)
	assert.Equal(t, 3, callCount)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	callCount := 0
	operation := func() (*github.Response, error) {
		callCount++
		return &github.Response{
			Response: &http.Response{StatusCode: http.StatusNotFound},
		}, errors.New("not found")
	}

	_, err := retryGitHubOperation(context.Background(), fastRetryConfig(), nil, operation)

	require.Error(t, err)
	assert.Equal(t, 1, callCount, "404 must not be retried")
}

func TestRetryExhaustsAttempts(t *testing.T) {
	callCount := 0
	operation := func() (*github.Response, error) {
		callCount++
		return &github.Response{
			Response: &http.Response{StatusCode: http.StatusBadGateway},
		}, errors.New("bad gateway")
	}

	_, err := retryGitHubOperation(context.Background(), fastRetryConfig(), nil, operation)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 retries")
	assert.Equal(t, 4, callCount, "initial attempt plus three retries")
}

func TestRetryForbiddenWithRateInfoIsRetryable(t *testing.T) {
	resp := &github.Response{
		Response: &http.Response{StatusCode: http.StatusForbidden},
	}
	resp.Rate.Limit = 5000
	assert.True(t, isGitHubRetryableError(errors.New("secondary rate limit"), resp))

	bare := &github.Response{
		Response: &http.Response{StatusCode: http.StatusForbidden},
	}
	assert.False(t, isGitHubRetryableError(errors.New("forbidden"), bare))
}

func TestRateLimitBackoffRespectsReset(t *testing.T) {
	resp := &github.Response{
		Response: &http.Response{StatusCode: http.StatusTooManyRequests},
	}
	resp.Rate.Limit = 5000
	resp.Rate.Reset = github.Timestamp{Time: time.Now().Add(5 * time.Second)}

	backoff := getRateLimitBackoff(resp, 30*time.Second)
	assert.Greater(t, backoff, 4*time.Second)
	assert.LessOrEqual(t, backoff, 7*time.Second)

	// Reset in the past still waits a little.
	resp.Rate.Reset = github.Timestamp{Time: time.Now().Add(-time.Minute)}
	assert.Equal(t, time.Second, getRateLimitBackoff(resp, 30*time.Second))
}

func TestRetryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	operation := func() (*github.Response, error) {
		return &github.Response{
			Response: &http.Response{StatusCode: http.StatusInternalServerError},
		}, errors.New("boom")
	}

	_, err := retryGitHubOperation(ctx, fastRetryConfig(), nil, operation)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
