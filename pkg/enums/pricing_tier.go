package enums

// PricingTier names a subscription plan and its entitlements.
type PricingTier string

const (
	PricingTierFree      PricingTier = "free"
	PricingTierEarlyBird PricingTier = "early_bird"
	PricingTierRegular   PricingTier = "regular"
)

func (t PricingTier) Valid() bool {
	switch t {
	case PricingTierFree, PricingTierEarlyBird, PricingTierRegular:
		return true
	default:
		return false
	}
}

// Paid reports whether the tier bills through the payment processor.
func (t PricingTier) Paid() bool {
	return t == PricingTierEarlyBird || t == PricingTierRegular
}
