package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/stockline/stockline/core"
	"github.com/stockline/stockline/pkg/logger"
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// LivenessHandler always answers 200.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		core.Render(w, r, core.JSON("alive", nil, nil))
	}
}

// ReadinessHandler runs every check with the given timeout and answers 200
// when all pass, 503 otherwise. Failures are reported by name only.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				log.WarnContext(ctx, "readiness check failed", slog.String("check", c.Name), logger.Error(err))
				results[c.Name] = "fail"
				ready = false
				continue
			}
			results[c.Name] = "ok"
		}

		if !ready {
			core.Render(w, r, core.JSONWithStatus(http.StatusServiceUnavailable, "not_ready", results, nil))
			return
		}
		core.Render(w, r, core.JSON("ready", results, nil))
	}
}
