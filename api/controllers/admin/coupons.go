package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/personapath/personapath-backend/api/responses"
	"github.com/personapath/personapath-backend/api/validators"
	"github.com/personapath/personapath-backend/internal/subscriptions"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
	"github.com/personapath/personapath-backend/pkg/logger"
)

// CouponService manages discounts at the payment processor.
type CouponService interface {
	CreateCoupon(ctx context.Context, params subscriptions.CouponParams) (*subscriptions.CouponView, error)
	DeleteCoupon(ctx context.Context, id string) error
}

// CreateCoupon creates a discount at the processor.
func CreateCoupon(svc CouponService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		var body subscriptions.CouponParams
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := svc.CreateCoupon(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, coupon)
	}
}

// DeleteCoupon removes a discount at the processor.
func DeleteCoupon(svc CouponService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		if err := svc.DeleteCoupon(r.Context(), chi.URLParam(r, "id")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
