package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/localstore-backend/api/responses"
	"github.com/angelmondragon/localstore-backend/pkg/config"
	"github.com/angelmondragon/localstore-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/localstore-backend/pkg/errors"
	"github.com/angelmondragon/localstore-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck names a dependency probed by the readiness endpoint.
type ReadinessCheck struct {
	Name   string
	Pinger db.Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-LocalStore-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-LocalStore-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := map[string]string{}
		var failure *pkgerrors.Error
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				status[check.Name] = "error"
				if failure == nil {
					failure = pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unreachable")
				}
				continue
			}
			status[check.Name] = "ok"
		}

		if failure != nil {
			responses.WriteError(r.Context(), logg, w, failure.WithDetails(map[string]any{"checks": status}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": status})
	}
}
