package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPurchaseOutcome(t *testing.T) {
	before := testutil.ToFloat64(PurchaseOutcomesTotal.WithLabelValues("cancelled"))
	RecordPurchaseOutcome("cancelled")
	after := testutil.ToFloat64(PurchaseOutcomesTotal.WithLabelValues("cancelled"))
	if after != before+1 {
		t.Fatalf("expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestRecordVerification(t *testing.T) {
	before := testutil.ToFloat64(VerificationsTotal.WithLabelValues("failed"))
	RecordVerification(false, 20*time.Millisecond)
	if got := testutil.ToFloat64(VerificationsTotal.WithLabelValues("failed")); got != before+1 {
		t.Fatalf("expected failed verifications to increase, got %v", got)
	}
}

func TestRecordBridgeResponse(t *testing.T) {
	before := testutil.ToFloat64(BridgeResponsesTotal.WithLabelValues("getProductDetails", "503"))
	RecordBridgeResponse("getProductDetails", 503)
	if got := testutil.ToFloat64(BridgeResponsesTotal.WithLabelValues("getProductDetails", "503")); got != before+1 {
		t.Fatalf("expected bridge responses to increase, got %v", got)
	}
}

func TestRecordUnmatchedCompletion(t *testing.T) {
	// Should not panic
	RecordUnmatchedCompletion()
}
