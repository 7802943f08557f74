package admin

import (
	"context"
	"net/http"

	"github.com/personapath/personapath-backend/api/responses"
	"github.com/personapath/personapath-backend/pkg/db/models"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
	"github.com/personapath/personapath-backend/pkg/logger"
)

// PromoCounterReader exposes the promotional slot counter.
type PromoCounterReader interface {
	PromoCounter(ctx context.Context) (*models.PromoCounter, error)
}

// GetPromoCounter reports how many promotional slots have been claimed.
func GetPromoCounter(svc PromoCounterReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		counter, err := svc.PromoCounter(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"count":     counter.Count,
			"limit":     counter.Limit,
			"exhausted": counter.Exhausted(),
		})
	}
}
