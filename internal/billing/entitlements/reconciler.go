// Package entitlements turns raw purchase records into entitlements enriched
// with a remotely verified expiry.
package entitlements

import (
	"context"
	"errors"

	"subsBridge/internal/billing/timeutil"
	"subsBridge/internal/models"
)

// ErrNoEntitlements is returned when there are no purchase records.
var ErrNoEntitlements = errors.New("entitlements: no entitlements")

// ExpiryResolver resolves a transaction's expiry timestamp.
type ExpiryResolver interface {
	ResolveExpiry(ctx context.Context, transactionID string, cfg models.VerificationConfig) (string, error)
}

// Logger is the minimal logger used by the reconciler.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Reconciler builds entitlements from purchase records.
type Reconciler struct {
	resolver ExpiryResolver
	logger   Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(resolver ExpiryResolver, logger Logger) *Reconciler {
	return &Reconciler{resolver: resolver, logger: logger}
}

// ListEntitlements verifies every record in order, one at a time. A failed
// verification leaves that entitlement's expiry empty.
func (r *Reconciler) ListEntitlements(ctx context.Context, records []models.RawPurchaseRecord, cfg models.VerificationConfig) ([]models.Entitlement, error) {
	if len(records) == 0 {
		return nil, ErrNoEntitlements
	}
	out := make([]models.Entitlement, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, models.Entitlement{
			ProductIdentifier: rec.FirstProduct(),
			ExpiryDate:        r.resolve(ctx, rec.OrderID, cfg),
			OriginalStartDate: timeutil.FormatStartDate(rec.PurchaseTimeMillis),
			OriginalID:        rec.OrderID,
			TransactionID:     rec.OrderID,
			PurchaseToken:     rec.PurchaseToken,
		})
	}
	return out, nil
}

func (r *Reconciler) resolve(ctx context.Context, orderID string, cfg models.VerificationConfig) *string {
	expiry, err := r.resolver.ResolveExpiry(ctx, orderID, cfg)
	if err != nil {
		r.logger.Errorf("expiry for %s unknown: %v", orderID, err)
		return nil
	}
	return &expiry
}
