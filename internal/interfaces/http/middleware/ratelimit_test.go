package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/schoolfees/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int, period time.Duration) (*RateLimiter, *time.Time) {
	now := time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(limit, period)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiter(t *testing.T) {
	t.Run("blocks after limit", func(t *testing.T) {
		rl, _ := newTestLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			assert.True(t, rl.Allow("10.0.0.1"), "request %d", i+1)
		}
		assert.False(t, rl.Allow("10.0.0.1"))
		assert.Equal(t, 0, rl.Remaining("10.0.0.1"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		rl, _ := newTestLimiter(1, time.Minute)

		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))
		assert.True(t, rl.Allow("b"))
	})

	t.Run("window resets", func(t *testing.T) {
		rl, now := newTestLimiter(1, time.Minute)

		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))
		*now = now.Add(time.Minute)
		assert.True(t, rl.Allow("a"))
	})

	t.Run("sweep drops idle windows", func(t *testing.T) {
		rl, now := newTestLimiter(1, time.Minute)

		rl.Allow("a")
		*now = now.Add(3 * time.Minute)
		rl.sweep()
		assert.Empty(t, rl.windows)
	})

	t.Run("run stops with context", func(t *testing.T) {
		rl := NewRateLimiter(1, time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			rl.Run(ctx)
			close(done)
		}()
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not return after cancel")
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(2, time.Minute)
	router := gin.New()
	router.Use(RateLimit(rl))
	router.POST("/api/v1/payments/webhook", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", nil)
		req.RemoteAddr = "203.0.113.7:443"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := send()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send().Code)

	blocked := send()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Contains(t, blocked.Body.String(), dto.ErrCodeRateLimited)
}
