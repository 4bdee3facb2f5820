package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/griffinshaw/dealbrief-backend/api/responses"
	"github.com/griffinshaw/dealbrief-backend/pkg/config"
	pkgerrors "github.com/griffinshaw/dealbrief-backend/pkg/errors"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
)

const readinessCheckTimeout = 2 * time.Second

type componentPinger interface {
	Ping(ctx context.Context) error
}

// ReadinessChecks holds the backing services probed by the readiness
// endpoint. Nil entries are skipped so workers and tests can wire a subset.
type ReadinessChecks struct {
	DB       componentPinger
	Redis    componentPinger
	Storage  componentPinger
	PubSub   componentPinger
	BigQuery componentPinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DealBrief-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes every wired dependency and reports per-component
// status. Any failing component turns the response into a 503 so the load
// balancer stops routing until the backends recover.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ReadinessChecks) http.HandlerFunc {
	components := []struct {
		name   string
		pinger componentPinger
	}{
		{"db", checks.DB},
		{"redis", checks.Redis},
		{"storage", checks.Storage},
		{"pubsub", checks.PubSub},
		{"bigquery", checks.BigQuery},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DealBrief-Env", cfg.App.Env)

		statuses := make(map[string]string, len(components))
		failed := make([]string, 0)

		for _, component := range components {
			if component.pinger == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), readinessCheckTimeout)
			err := component.pinger.Ping(ctx)
			cancel()
			if err != nil {
				statuses[component.name] = "unavailable"
				failed = append(failed, component.name)
				if logg != nil {
					logg.Error(r.Context(), "readiness check failed: "+component.name, err)
				}
				continue
			}
			statuses[component.name] = "ok"
		}

		if len(failed) > 0 {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"components": statuses})
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status":     "ready",
			"components": statuses,
		})
	}
}
