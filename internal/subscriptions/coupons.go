package subscriptions

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/personapath/personapath-backend/pkg/errors"
)

// CouponParams describes a discount to create at the processor.
type CouponParams struct {
	Name             string   `json:"name" validate:"required"`
	PercentOff       *float64 `json:"percent_off,omitempty"`
	AmountOffCents   *int64   `json:"amount_off_cents,omitempty"`
	Currency         string   `json:"currency,omitempty"`
	Duration         string   `json:"duration" validate:"required"`
	DurationInMonths *int64   `json:"duration_in_months,omitempty"`
	MaxRedemptions   *int64   `json:"max_redemptions,omitempty"`
}

// CouponView is the shape returned to admin callers.
type CouponView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	PercentOff     *float64 `json:"percent_off,omitempty"`
	AmountOffCents *int64   `json:"amount_off_cents,omitempty"`
	Duration       string   `json:"duration"`
	Valid          bool     `json:"valid"`
}

// CreateCoupon validates and creates a discount at the processor. No local
// row is kept; the processor is the system of record for discounts.
func (s *Service) CreateCoupon(ctx context.Context, params CouponParams) (*CouponView, error) {
	if err := validateCouponParams(params); err != nil {
		return nil, err
	}

	input := &stripe.CouponParams{
		Name:     stripe.String(strings.TrimSpace(params.Name)),
		Duration: stripe.String(params.Duration),
	}
	if params.PercentOff != nil {
		input.PercentOff = stripe.Float64(*params.PercentOff)
	}
	if params.AmountOffCents != nil {
		input.AmountOff = stripe.Int64(*params.AmountOffCents)
		currency := strings.ToLower(strings.TrimSpace(params.Currency))
		if currency == "" {
			currency = "usd"
		}
		input.Currency = stripe.String(currency)
	}
	if params.DurationInMonths != nil {
		input.DurationInMonths = stripe.Int64(*params.DurationInMonths)
	}
	if params.MaxRedemptions != nil {
		input.MaxRedemptions = stripe.Int64(*params.MaxRedemptions)
	}

	created, err := s.stripe.CreateCoupon(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return couponView(created), nil
}

// DeleteCoupon removes a discount at the processor.
func (s *Service) DeleteCoupon(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon id is required")
	}
	if _, err := s.stripe.DeleteCoupon(ctx, id, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete coupon")
	}
	return nil
}

func validateCouponParams(params CouponParams) error {
	if strings.TrimSpace(params.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon name is required")
	}

	hasPercent := params.PercentOff != nil
	hasAmount := params.AmountOffCents != nil
	if hasPercent == hasAmount {
		return pkgerrors.New(pkgerrors.CodeValidation, "exactly one of percent_off or amount_off_cents is required")
	}
	if hasPercent && (*params.PercentOff < 1 || *params.PercentOff > 100) {
		return pkgerrors.New(pkgerrors.CodeValidation, "percent_off must be between 1 and 100")
	}
	if hasAmount && *params.AmountOffCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount_off_cents must be positive")
	}

	switch params.Duration {
	case string(stripe.CouponDurationOnce), string(stripe.CouponDurationForever):
		if params.DurationInMonths != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "duration_in_months only applies to repeating coupons")
		}
	case string(stripe.CouponDurationRepeating):
		if params.DurationInMonths == nil || *params.DurationInMonths < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "repeating coupons require duration_in_months of at least 1")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "duration must be once, repeating, or forever")
	}
	return nil
}

func couponView(c *stripe.Coupon) *CouponView {
	view := &CouponView{
		ID:       c.ID,
		Name:     c.Name,
		Duration: string(c.Duration),
		Valid:    c.Valid,
	}
	if c.PercentOff != 0 {
		percent := c.PercentOff
		view.PercentOff = &percent
	}
	if c.AmountOff != 0 {
		amount := c.AmountOff
		view.AmountOffCents = &amount
	}
	return view
}
