package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/personapath/personapath-backend/api/responses"
	"github.com/personapath/personapath-backend/pkg/config"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
	"github.com/personapath/personapath-backend/pkg/logger"
)

const schedulerSecretHeader = "X-Scheduler-Secret"

// SchedulerAuth gates the job trigger endpoints behind the shared scheduler
// secret. The comparison is constant time.
func SchedulerAuth(cfg config.SchedulerConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Secret == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scheduler secret not configured"))
				return
			}

			provided := r.Header.Get(schedulerSecretHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(cfg.Secret)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid scheduler secret"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
