package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/kiranalabs/merchant-admin-api/api/responses"
	"github.com/kiranalabs/merchant-admin-api/pkg/config"
	pkgerrors "github.com/kiranalabs/merchant-admin-api/pkg/errors"
	"github.com/kiranalabs/merchant-admin-api/pkg/logger"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Merchant-Admin-Env", cfg.App.Env)
		responses.WriteSuccess(w, "ok", map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Merchant-Admin-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "unreachable"
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").WithDetails(checks))
				return
			}
			checks[name] = "ok"
		}

		checks["status"] = "ready"
		responses.WriteSuccess(w, "ok", checks)
	}
}
