package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/personapath/personapath-backend/api/responses"
	"github.com/personapath/personapath-backend/internal/cron"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
	"github.com/personapath/personapath-backend/pkg/logger"
)

// JobRunner runs a single registered job on demand.
type JobRunner interface {
	RunJob(ctx context.Context, job cron.Job) error
}

// TriggerJob runs the named job synchronously. Used by external schedulers
// that call the API instead of relying on the worker's ticker.
func TriggerJob(registry *cron.Registry, runner JobRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil || runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "job runner unavailable"))
			return
		}

		name := chi.URLParam(r, "job")
		job := registry.Find(name)
		if job == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown job %q", name)))
			return
		}

		if err := runner.RunJob(r.Context(), job); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "job run failed"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"job": name, "status": "completed"})
	}
}
