package subscriptions

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	checkoutsession "github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/coupon"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/subscription"
	"github.com/stripe/stripe-go/v84/subscriptionschedule"

	pkgstripe "github.com/personapath/personapath-backend/pkg/stripe"
)

// ProcessorClient exposes the subset of Stripe operations the billing flows
// need, so services stay testable.
type ProcessorClient interface {
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	CreateSchedule(ctx context.Context, params *stripe.SubscriptionScheduleParams) (*stripe.SubscriptionSchedule, error)
	ListSchedules(ctx context.Context, params *stripe.SubscriptionScheduleListParams) ([]*stripe.SubscriptionSchedule, error)
	CreateCoupon(ctx context.Context, params *stripe.CouponParams) (*stripe.Coupon, error)
	DeleteCoupon(ctx context.Context, id string, params *stripe.CouponParams) (*stripe.Coupon, error)
}

type processorClientWrapper struct{}

// NewProcessorClient wraps the initialized Stripe client.
func NewProcessorClient(api *pkgstripe.Client) ProcessorClient {
	if api == nil {
		return nil
	}
	return &processorClientWrapper{}
}

func (w *processorClientWrapper) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if params != nil {
		params.Context = ctx
	}
	return customer.New(params)
}

func (w *processorClientWrapper) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return checkoutsession.New(params)
}

func (w *processorClientWrapper) GetSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params == nil {
		params = &stripe.SubscriptionParams{}
	}
	params.Context = ctx
	return subscription.Get(id, params)
}

func (w *processorClientWrapper) CreateSchedule(ctx context.Context, params *stripe.SubscriptionScheduleParams) (*stripe.SubscriptionSchedule, error) {
	if params != nil {
		params.Context = ctx
	}
	return subscriptionschedule.New(params)
}

func (w *processorClientWrapper) ListSchedules(ctx context.Context, params *stripe.SubscriptionScheduleListParams) ([]*stripe.SubscriptionSchedule, error) {
	if params == nil {
		params = &stripe.SubscriptionScheduleListParams{}
	}
	params.Context = ctx

	var schedules []*stripe.SubscriptionSchedule
	iter := subscriptionschedule.List(params)
	for iter.Next() {
		schedules = append(schedules, iter.SubscriptionSchedule())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (w *processorClientWrapper) CreateCoupon(ctx context.Context, params *stripe.CouponParams) (*stripe.Coupon, error) {
	if params != nil {
		params.Context = ctx
	}
	return coupon.New(params)
}

func (w *processorClientWrapper) DeleteCoupon(ctx context.Context, id string, params *stripe.CouponParams) (*stripe.Coupon, error) {
	if params == nil {
		params = &stripe.CouponParams{}
	}
	params.Context = ctx
	return coupon.Del(id, params)
}
