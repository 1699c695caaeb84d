package models

// PurchaseState mirrors the store's purchase record state.
type PurchaseState int

const (
	PurchaseStateUnspecified PurchaseState = iota
	PurchaseStatePurchased
	PurchaseStatePending
	PurchaseStateCancelled
)

func (s PurchaseState) String() string {
	switch s {
	case PurchaseStatePurchased:
		return "PURCHASED"
	case PurchaseStatePending:
		return "PENDING"
	case PurchaseStateCancelled:
		return "CANCELLED"
	default:
		return "UNSPECIFIED"
	}
}

// RawPurchaseRecord is a purchase as reported by the billing capability.
// It is owned by the capability and treated as read-only.
type RawPurchaseRecord struct {
	OrderID            string        `json:"orderId"`
	PurchaseToken      string        `json:"purchaseToken"`
	ProductIDs         []string      `json:"productIds"`
	PurchaseTimeMillis int64         `json:"purchaseTime"`
	Acknowledged       bool          `json:"acknowledged"`
	PurchaseState      PurchaseState `json:"purchaseState"`
	OriginalJSON       string        `json:"originalJson"`
	Signature          string        `json:"signature"`
	PackageName        string        `json:"packageName"`
}

// HasProduct reports whether the record covers the given product.
func (r RawPurchaseRecord) HasProduct(productID string) bool {
	for _, id := range r.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// FirstProduct returns the first product id or an empty string.
func (r RawPurchaseRecord) FirstProduct() string {
	if len(r.ProductIDs) == 0 {
		return ""
	}
	return r.ProductIDs[0]
}

// PricingPhase is one phase of an offer's price schedule.
type PricingPhase struct {
	FormattedPrice    string `json:"formattedPrice"`
	PriceAmountMicros int64  `json:"priceAmountMicros"`
	PriceCurrencyCode string `json:"priceCurrencyCode"`
	BillingPeriod     string `json:"billingPeriod,omitempty"`
}

// SubscriptionOffer is a purchasable offer of a subscription product.
type SubscriptionOffer struct {
	BasePlanID    string         `json:"basePlanId"`
	OfferToken    string         `json:"offerToken"`
	PricingPhases []PricingPhase `json:"pricingPhases"`
}

// ProductDetails describes a subscription product from the catalog.
type ProductDetails struct {
	ProductID   string              `json:"productId"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Offers      []SubscriptionOffer `json:"offers"`
}

// FirstOfferToken returns the token of the first offer, if any.
func (d ProductDetails) FirstOfferToken() (string, bool) {
	if len(d.Offers) == 0 || d.Offers[0].OfferToken == "" {
		return "", false
	}
	return d.Offers[0].OfferToken, true
}

// FirstPrice returns the formatted price of the first offer's first pricing phase.
func (d ProductDetails) FirstPrice() string {
	if len(d.Offers) == 0 || len(d.Offers[0].PricingPhases) == 0 {
		return ""
	}
	return d.Offers[0].PricingPhases[0].FormattedPrice
}

// VerificationConfig holds the operator-supplied remote verification endpoint.
type VerificationConfig struct {
	Endpoint   string `json:"apiEndpoint"`
	Credential string `json:"jwt"`
	ProductID  string `json:"bid"`
}

// Complete reports whether all fields are set.
func (c VerificationConfig) Complete() bool {
	return c.Endpoint != "" && c.Credential != "" && c.ProductID != ""
}
