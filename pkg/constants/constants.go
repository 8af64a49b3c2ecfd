package constants

// Flag keys and fixed caller identities.
const (
	FlagUseSecondary           = "use-secondary"
	FlagNewFlow                = "new-flow"
	FlagPremiumFeatures        = "premium-features"
	FlagEnhancedProductDetails = "enhanced-product-details"
	FlagBetaFeatures           = "beta-features"
	FlagPremiumProductLimit    = "premium-product-limit"

	SystemCaller = "system"
)

// StoreSide names one of the two backing stores.
type StoreSide string

const (
	Primary   StoreSide = "primary"
	Secondary StoreSide = "secondary"
)
