package playstore

import (
	"encoding/json"
	"fmt"
	"time"

	androidpublisher "google.golang.org/api/androidpublisher/v3"

	"subsBridge/internal/models"
)

const defaultLanguage = "en-US"

func recordFromPurchase(packageName string, ref PurchaseRef, p *androidpublisher.SubscriptionPurchase) models.RawPurchaseRecord {
	raw, _ := json.Marshal(p)
	return models.RawPurchaseRecord{
		OrderID:            p.OrderId,
		PurchaseToken:      ref.PurchaseToken,
		ProductIDs:         []string{ref.ProductID},
		PurchaseTimeMillis: p.StartTimeMillis,
		Acknowledged:       p.AcknowledgementState == 1,
		PurchaseState:      purchaseState(p, time.Now()),
		OriginalJSON:       string(raw),
		PackageName:        packageName,
	}
}

// PaymentState: 0 pending, 1 received, 2 free trial, 3 deferred
func purchaseState(p *androidpublisher.SubscriptionPurchase, now time.Time) models.PurchaseState {
	if p.PaymentState != nil && *p.PaymentState == 0 {
		return models.PurchaseStatePending
	}
	if p.ExpiryTimeMillis > 0 && p.ExpiryTimeMillis <= now.UnixMilli() {
		return models.PurchaseStateCancelled
	}
	return models.PurchaseStatePurchased
}

func productFromSubscription(sub *androidpublisher.Subscription, regionCode string) models.ProductDetails {
	d := models.ProductDetails{ProductID: sub.ProductId}
	if l := pickListing(sub.Listings); l != nil {
		d.Title = l.Title
		d.Description = l.Description
	}
	for _, bp := range sub.BasePlans {
		if bp == nil || (bp.State != "" && bp.State != "ACTIVE") {
			continue
		}
		offer := models.SubscriptionOffer{BasePlanID: bp.BasePlanId, OfferToken: bp.BasePlanId}
		if cfg := pickRegion(bp.RegionalConfigs, regionCode); cfg != nil && cfg.Price != nil {
			phase := models.PricingPhase{
				FormattedPrice:    formatMoney(cfg.Price),
				PriceAmountMicros: cfg.Price.Units*1_000_000 + cfg.Price.Nanos/1_000,
				PriceCurrencyCode: cfg.Price.CurrencyCode,
			}
			if bp.AutoRenewingBasePlanType != nil {
				phase.BillingPeriod = bp.AutoRenewingBasePlanType.BillingPeriodDuration
			}
			offer.PricingPhases = append(offer.PricingPhases, phase)
		}
		d.Offers = append(d.Offers, offer)
	}
	return d
}

func pickListing(listings []*androidpublisher.SubscriptionListing) *androidpublisher.SubscriptionListing {
	var first *androidpublisher.SubscriptionListing
	for _, l := range listings {
		if l == nil {
			continue
		}
		if l.LanguageCode == defaultLanguage {
			return l
		}
		if first == nil {
			first = l
		}
	}
	return first
}

func pickRegion(configs []*androidpublisher.RegionalBasePlanConfig, regionCode string) *androidpublisher.RegionalBasePlanConfig {
	var first *androidpublisher.RegionalBasePlanConfig
	for _, c := range configs {
		if c == nil {
			continue
		}
		if regionCode != "" && c.RegionCode == regionCode {
			return c
		}
		if first == nil {
			first = c
		}
	}
	return first
}

func formatMoney(m *androidpublisher.Money) string {
	cents := m.Nanos / 10_000_000
	return fmt.Sprintf("%s %d.%02d", m.CurrencyCode, m.Units, cents)
}
