package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func buildRuntime(t *testing.T, cfg *appconfig.Config) *bootstrap.Runtime {
	t.Helper()
	rt, err := bootstrap.Build(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return rt
}

func TestNewHandlerRunsInlineWorkersOnMemoryQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	rt := buildRuntime(t, &appconfig.Config{
		RedisAddr:      mr.Addr(),
		UseMemoryQueue: true,
		WorkerCount:    1,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	})

	handler, inline := newHandler(rt)
	require.NotNil(t, inline)

	ctx, cancel := context.WithCancel(context.Background())
	inline.Start(ctx)
	defer func() {
		cancel()
		inline.Wait()
	}()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/dr-sana/jobs",
		strings.NewReader(`{"contact":"+923001234567","message":"hello"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	assert.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return strings.Contains(rec.Body.String(), `clinicbook_conversation_jobs_total{status="processed"} 1`)
	}, 5*time.Second, 20*time.Millisecond)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)
}

func TestNewHandlerWithoutQueue(t *testing.T) {
	rt := buildRuntime(t, &appconfig.Config{})

	handler, inline := newHandler(rt)
	assert.Nil(t, inline)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/dr-sana/jobs",
		strings.NewReader(`{"contact":"+923001234567","message":"hello"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
