// Package health serves the readiness endpoint over the process dependencies.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"licita/pkg/platform/httputil"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Handler runs every registered check concurrently on each request.
type Handler struct {
	timeout time.Duration
	names   []string
	checks  map[string]Check
}

func New(timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Handler{timeout: timeout, checks: map[string]Check{}}
}

// Add registers check under name. A nil check is ignored.
func (h *Handler) Add(name string, check Check) *Handler {
	if check == nil {
		return h
	}
	if _, ok := h.checks[name]; !ok {
		h.names = append(h.names, name)
		sort.Strings(h.names)
	}
	h.checks[name] = check
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := Response{Status: "ok", Checks: make(map[string]string, len(h.names))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range h.names {
		check := h.checks[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := "ok"
			if err := check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			resp.Checks[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := http.StatusOK
	for _, result := range resp.Checks {
		if result != "ok" {
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			break
		}
	}
	httputil.WriteJSON(w, status, resp)
}
