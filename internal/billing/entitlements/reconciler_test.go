package entitlements

import (
	"context"
	"errors"
	"testing"
	"time"

	"subsBridge/internal/billing/timeutil"
	"subsBridge/internal/models"
)

type testLogger struct{}

func (testLogger) Infof(string, ...interface{})  {}
func (testLogger) Errorf(string, ...interface{}) {}

type stubResolver struct {
	expiries map[string]string
	calls    []string
}

func (s *stubResolver) ResolveExpiry(ctx context.Context, transactionID string, cfg models.VerificationConfig) (string, error) {
	s.calls = append(s.calls, transactionID)
	if v, ok := s.expiries[transactionID]; ok {
		return v, nil
	}
	return "", errors.New("verification error: 500 Internal Server Error")
}

func TestListEntitlementsEmpty(t *testing.T) {
	r := NewReconciler(&stubResolver{}, testLogger{})
	_, err := r.ListEntitlements(context.Background(), nil, models.VerificationConfig{})
	if !errors.Is(err, ErrNoEntitlements) {
		t.Fatalf("expected ErrNoEntitlements, got %v", err)
	}
}

func TestListEntitlementsKeepsFailedVerifications(t *testing.T) {
	timeutil.SetLocation(time.UTC)
	purchased := time.Date(2024, 6, 1, 14, 30, 0, 0, time.UTC).UnixMilli()
	records := []models.RawPurchaseRecord{
		{OrderID: "ord1", PurchaseToken: "tok1", ProductIDs: []string{"monthly_sub"}, PurchaseTimeMillis: purchased, PurchaseState: models.PurchaseStatePurchased},
		{OrderID: "ord2", PurchaseToken: "tok2", ProductIDs: []string{"yearly_sub", "addon"}, PurchaseTimeMillis: purchased, PurchaseState: models.PurchaseStatePending},
		{OrderID: "ord3", PurchaseToken: "tok3", ProductIDs: []string{"weekly_sub"}, PurchaseTimeMillis: purchased, PurchaseState: models.PurchaseStateCancelled},
	}
	resolver := &stubResolver{expiries: map[string]string{"ord2": "2025-06-01 14:30:00"}}
	r := NewReconciler(resolver, testLogger{})

	got, err := r.ListEntitlements(context.Background(), records, models.VerificationConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("expected %d entitlements, got %d", len(records), len(got))
	}
	if got[0].OriginalID != "ord1" || got[0].ExpiryDate != nil {
		t.Errorf("expected ord1 with unknown expiry, got %+v", got[0])
	}
	if got[1].ExpiryDate == nil || *got[1].ExpiryDate != "2025-06-01 14:30:00" {
		t.Errorf("expected ord2 expiry, got %+v", got[1].ExpiryDate)
	}
	if got[1].ProductIdentifier != "yearly_sub" {
		t.Errorf("expected first product id, got %q", got[1].ProductIdentifier)
	}
	if got[0].OriginalStartDate != "01-06-2024 02:30" {
		t.Errorf("unexpected start date %q", got[0].OriginalStartDate)
	}
	if got[2].TransactionID != "ord3" || got[2].PurchaseToken != "tok3" {
		t.Errorf("unexpected ids %+v", got[2])
	}
	want := []string{"ord1", "ord2", "ord3"}
	for i, id := range want {
		if resolver.calls[i] != id {
			t.Fatalf("verification order mismatch: %v", resolver.calls)
		}
	}
}
