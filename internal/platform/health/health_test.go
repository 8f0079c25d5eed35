package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler) (int, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestHealthy(t *testing.T) {
	h := New(time.Second).
		Add("store", func(context.Context) error { return nil }).
		Add("redis", nil)

	code, resp := serve(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]string{"store": "ok"}, resp.Checks)
}

func TestUnhealthyDependency(t *testing.T) {
	h := New(time.Second).
		Add("store", func(context.Context) error { return nil }).
		Add("kafka", func(context.Context) error { return errors.New("no brokers reachable") })

	code, resp := serve(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "no brokers reachable", resp.Checks["kafka"])
	assert.Equal(t, "ok", resp.Checks["store"])
}

func TestCheckTimeout(t *testing.T) {
	h := New(10*time.Millisecond).Add("store", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	code, resp := serve(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["store"])
}
