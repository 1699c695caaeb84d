package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"subsBridge/internal/billing/capability"
	"subsBridge/internal/billing/playstore"
	"subsBridge/internal/models"
)

type stubUpdater struct {
	code      capability.ResponseCode
	refs      []playstore.PurchaseRef
	refreshed []playstore.PurchaseRef
	err       error
}

func (s *stubUpdater) HandlePurchaseUpdate(ctx context.Context, code capability.ResponseCode, refs []playstore.PurchaseRef) error {
	s.code = code
	s.refs = refs
	return s.err
}

func (s *stubUpdater) Refresh(ctx context.Context, ref playstore.PurchaseRef) (models.RawPurchaseRecord, error) {
	s.refreshed = append(s.refreshed, ref)
	if s.err != nil {
		return models.RawPurchaseRecord{}, s.err
	}
	return models.RawPurchaseRecord{OrderID: "ord1", PurchaseToken: ref.PurchaseToken}, nil
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	return rec
}

func pushBody(payload string) string {
	data := base64.StdEncoding.EncodeToString([]byte(payload))
	return `{"message":{"data":"` + data + `","messageId":"1"},"subscription":"projects/p/subscriptions/s"}`
}

func TestPurchasesUpdatedForwardsRefs(t *testing.T) {
	u := &stubUpdater{}
	h := NewGoogleBillingHandler(u, "com.example.app")

	rec := post(h.PurchasesUpdated, `{"responseCode":0,"purchases":[{"productId":" monthly_sub ","purchaseToken":"tok1"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if u.code != capability.OK {
		t.Errorf("unexpected code %s", u.code)
	}
	if len(u.refs) != 1 || u.refs[0].ProductID != "monthly_sub" || u.refs[0].PurchaseToken != "tok1" {
		t.Errorf("unexpected refs %+v", u.refs)
	}
}

func TestPurchasesUpdatedCancelled(t *testing.T) {
	u := &stubUpdater{}
	h := NewGoogleBillingHandler(u, "")
	rec := post(h.PurchasesUpdated, `{"responseCode":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if u.code != capability.UserCanceled || len(u.refs) != 0 {
		t.Errorf("unexpected update code=%s refs=%v", u.code, u.refs)
	}
}

func TestPurchasesUpdatedValidation(t *testing.T) {
	h := NewGoogleBillingHandler(&stubUpdater{}, "")
	if rec := post(h.PurchasesUpdated, `{"purchases":[]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing responseCode: expected 400, got %d", rec.Code)
	}
	if rec := post(h.PurchasesUpdated, `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: expected 400, got %d", rec.Code)
	}
}

func TestPurchasesUpdatedVerifyFailure(t *testing.T) {
	h := NewGoogleBillingHandler(&stubUpdater{err: errors.New("google subscriptions.get: boom")}, "")
	rec := post(h.PurchasesUpdated, `{"responseCode":0,"purchases":[{"productId":"monthly_sub","purchaseToken":"tok1"}]}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestNotificationsRefreshSubscription(t *testing.T) {
	u := &stubUpdater{}
	h := NewGoogleBillingHandler(u, "com.example.app")
	body := pushBody(`{"version":"1.0","packageName":"com.example.app","subscriptionNotification":{"notificationType":4,"purchaseToken":"tok1","subscriptionId":"monthly_sub"}}`)

	rec := post(h.Notifications, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(u.refreshed) != 1 || u.refreshed[0].PurchaseToken != "tok1" || u.refreshed[0].ProductID != "monthly_sub" {
		t.Fatalf("unexpected refreshes %+v", u.refreshed)
	}
}

func TestNotificationsIgnoresForeignPackageAndTests(t *testing.T) {
	u := &stubUpdater{}
	h := NewGoogleBillingHandler(u, "com.example.app")

	foreign := pushBody(`{"packageName":"com.other.app","subscriptionNotification":{"notificationType":4,"purchaseToken":"tok1","subscriptionId":"monthly_sub"}}`)
	if rec := post(h.Notifications, foreign); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	test := pushBody(`{"packageName":"com.example.app","testNotification":{"version":"1.0"}}`)
	if rec := post(h.Notifications, test); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(u.refreshed) != 0 {
		t.Fatalf("expected no refreshes, got %+v", u.refreshed)
	}
}

func TestNotificationsRefreshFailureIsAcked(t *testing.T) {
	u := &stubUpdater{err: errors.New("gone")}
	h := NewGoogleBillingHandler(u, "")
	body := pushBody(`{"subscriptionNotification":{"notificationType":13,"purchaseToken":"tok1","subscriptionId":"monthly_sub"}}`)
	if rec := post(h.Notifications, body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestNotificationsBadData(t *testing.T) {
	h := NewGoogleBillingHandler(&stubUpdater{}, "")
	if rec := post(h.Notifications, `{"message":{"data":"!!!"}}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := post(h.Notifications, `{"message":{}}`); rec.Code != http.StatusOK {
		t.Fatalf("empty push: expected 200, got %d", rec.Code)
	}
}
