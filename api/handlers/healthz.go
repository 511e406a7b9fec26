package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dcastillo/authcore-backend/api/responses"
	"github.com/dcastillo/authcore-backend/pkg/config"
	pkgerrors "github.com/dcastillo/authcore-backend/pkg/errors"
	"github.com/dcastillo/authcore-backend/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthLive reports process liveness. It never touches dependencies.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AuthCore-Env", cfg.App.Env)
		responses.WriteSuccess(w, "", map[string]string{"status": "live"})
	}
}

// HealthReady probes the database, Redis, and the SMTP server. Any failing
// dependency flips the response to 503 so load balancers stop routing here.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = err.Error()
				healthy = false
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "health.ready.failed", err)
				}
				continue
			}
			checks[name] = "ok"
		}

		w.Header().Set("X-AuthCore-Env", cfg.App.Env)
		if !healthy {
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable"))
			return
		}
		responses.WriteSuccess(w, "", map[string]any{"status": "ready", "checks": checks})
	}
}

// Deps builds the readiness probe map, skipping nil entries.
func Deps(entries map[string]Pinger) map[string]Pinger {
	out := map[string]Pinger{}
	for name, dep := range entries {
		if dep != nil {
			out[name] = dep
		}
	}
	return out
}
