package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func callEndpoint(t *testing.T, endpoint http.HandlerFunc) (int, statusBody) {
	t.Helper()

	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body statusBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w.Code, body
}

func runTimes(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		code, body := callEndpoint(t, New().LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
		assert.Empty(t, body.Checks)
	})

	t.Run("below failure threshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("goroutines", time.Second, fail("too many"))
		runTimes(h.liveness[0], 2)

		code, _ := callEndpoint(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("failing", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("ok", time.Second, pass)
		h.AddLivenessCheck("goroutines", time.Second, fail("too many"))
		runTimes(h.liveness[1], 3)

		code, body := callEndpoint(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, map[string]string{"goroutines": "too many"}, body.Checks)
	})

	t.Run("custom threshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("strict", time.Second, fail("down"), FailureThreshold(1))
		runTimes(h.liveness[0], 1)

		code, _ := callEndpoint(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("store", time.Second, pass)

	code, body := callEndpoint(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = callEndpoint(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	code, _ = callEndpoint(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_StoreDown(t *testing.T) {
	h := New()
	h.AddReadinessCheck("store", time.Second, PingCheck(func(context.Context) error {
		return errors.New("connection refused")
	}))
	h.SetReady(true)
	runTimes(h.readiness[0], 3)

	code, body := callEndpoint(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "ping: connection refused", body.Checks["store"])
	assert.False(t, h.IsReady())
}

func TestCheckRecovers(t *testing.T) {
	failing := true
	c := newCheck("flaky", time.Second, func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}, []Option{SuccessThreshold(2)})

	runTimes(c, 3)
	assert.Equal(t, "down", c.failure())

	failing = false
	runTimes(c, 1)
	assert.NotEmpty(t, c.failure(), "one pass is below the success threshold")
	runTimes(c, 1)
	assert.Empty(t, c.failure())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("a", time.Second, fail("x"))
	h.AddReadinessCheck("b", time.Second, pass)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		code, _ := callEndpoint(t, h.LiveEndpoint)
		return code == http.StatusServiceUnavailable
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, GoroutineCountCheck(100000)(ctx))
	assert.ErrorContains(t, GoroutineCountCheck(0)(ctx), "exceeds threshold")

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))

	dir := t.TempDir()
	assert.NoError(t, WritableDirCheck(dir)(ctx))
	assert.Error(t, WritableDirCheck(filepath.Join(dir, "missing"))(ctx))
}
