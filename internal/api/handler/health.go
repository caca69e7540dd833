package handler

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/mealtrack/internal/api/response"
)

// Pinger is anything with a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ShellStatus reports the offline controller's state.
type ShellStatus interface {
	Active() bool
	Generation() string
}

// NewHealthHandler checks database and cache connectivity. The offline cache
// state is reported but never degrades health.
func NewHealthHandler(db, cache Pinger, shell ShellStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := cache.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		body := map[string]any{
			"status":   "ok",
			"services": checks,
		}
		if shell != nil {
			offline := map[string]any{"generation": shell.Generation(), "active": shell.Active()}
			body["offline"] = offline
		}
		response.JSON(w, body)
	}
}
