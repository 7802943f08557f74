package billing

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/personapath/personapath-backend/api/middleware"
	"github.com/personapath/personapath-backend/api/responses"
	"github.com/personapath/personapath-backend/api/validators"
	"github.com/personapath/personapath-backend/internal/subscriptions"
	"github.com/personapath/personapath-backend/pkg/db/models"
	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
	"github.com/personapath/personapath-backend/pkg/logger"
)

// CheckoutService starts processor checkout flows.
type CheckoutService interface {
	StartCheckout(ctx context.Context, userID uuid.UUID, successURL, cancelURL string) (*subscriptions.CheckoutIntent, error)
	StartAddonCheckout(ctx context.Context, userID uuid.UUID, quantity int64, successURL, cancelURL string) (*subscriptions.CheckoutIntent, error)
}

// SubscriptionReader returns the caller's stored subscription.
type SubscriptionReader interface {
	Subscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

type checkoutRequest struct {
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

type addonCheckoutRequest struct {
	Quantity   int64  `json:"quantity" validate:"required,min=1"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// StartCheckout begins a subscription checkout for the authenticated user.
func StartCheckout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.StartCheckout(r.Context(), userID, body.SuccessURL, body.CancelURL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

// StartAddonCheckout begins a one-time purchase of extra client packs.
func StartAddonCheckout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body addonCheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.StartAddonCheckout(r.Context(), userID, body.Quantity, body.SuccessURL, body.CancelURL)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

// GetSubscription returns the caller's subscription record.
func GetSubscription(svc SubscriptionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Subscription(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if sub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found"))
			return
		}
		responses.WriteSuccess(w, sub)
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid caller id")
	}
	return id, nil
}
