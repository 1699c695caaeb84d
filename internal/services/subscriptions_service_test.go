package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"subsBridge/internal/billing/capability"
	"subsBridge/internal/billing/capability/capabilitytest"
	"subsBridge/internal/billing/correlator"
	"subsBridge/internal/billing/entitlements"
	"subsBridge/internal/billing/guard"
	"subsBridge/internal/billing/verify"
	"subsBridge/internal/models"
)

type testLogger struct{}

func (testLogger) Infof(string, ...interface{})  {}
func (testLogger) Errorf(string, ...interface{}) {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, any) error { return nil }

type recordingOpener struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (o *recordingOpener) OpenURL(ctx context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	return o.err
}

var monthly = models.ProductDetails{
	ProductID:   "monthly_sub",
	Title:       "Monthly",
	Description: "Monthly access",
	Offers: []models.SubscriptionOffer{{
		BasePlanID:    "monthly",
		OfferToken:    "monthly",
		PricingPhases: []models.PricingPhase{{FormattedPrice: "USD 4.99"}},
	}},
}

func record(orderID, token string) models.RawPurchaseRecord {
	return models.RawPurchaseRecord{
		OrderID:            orderID,
		PurchaseToken:      token,
		ProductIDs:         []string{"monthly_sub"},
		PurchaseTimeMillis: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).UnixMilli(),
		PurchaseState:      models.PurchaseStatePurchased,
		OriginalJSON:       `{"orderId":"` + orderID + `"}`,
	}
}

type fixture struct {
	svc    *SubscriptionsService
	fake   *capabilitytest.Fake
	opener *recordingOpener
}

func newFixture(t *testing.T, ready bool, verifyURL string) *fixture {
	t.Helper()
	fake := capabilitytest.New()
	t.Cleanup(fake.Close)
	g := guard.New(testLogger{})
	fake.StartConnection(context.Background(), g)
	if ready {
		fake.FinishSetup(capability.Result{Code: capability.OK})
	}
	fake.AddProduct(monthly)

	verifier := verify.NewClient(verify.Config{
		Timeout: time.Second,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	opener := &recordingOpener{}
	svc := &SubscriptionsService{
		Capability: fake,
		Gate:       g,
		Purchaser: correlator.New(correlator.Config{
			Capability: fake,
			Gate:       g,
			Notifier:   nopNotifier{},
			Logger:     testLogger{},
		}),
		Reconciler:  entitlements.NewReconciler(verifier, testLogger{}),
		Opener:      opener,
		Logger:      testLogger{},
		CallTimeout: time.Second,
	}
	if verifyURL != "" {
		if err := svc.SetAPIVerificationDetails(models.VerificationConfig{
			Endpoint:   verifyURL,
			Credential: "secret",
			ProductID:  "com.example.app",
		}); err != nil {
			t.Fatalf("SetAPIVerificationDetails: %v", err)
		}
	}
	return &fixture{svc: svc, fake: fake, opener: opener}
}

func TestSetAPIVerificationDetailsRequiresAllFields(t *testing.T) {
	f := newFixture(t, true, "")
	err := f.svc.SetAPIVerificationDetails(models.VerificationConfig{Endpoint: "https://verify.example", Credential: "secret"})
	if !errors.Is(err, ErrMissingParameters) {
		t.Fatalf("expected ErrMissingParameters, got %v", err)
	}
	if err.Error() != "Missing required parameters" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if f.svc.VerificationDetails().Complete() {
		t.Fatal("partial details must not be stored")
	}
}

func TestGetProductDetailsFound(t *testing.T) {
	f := newFixture(t, true, "")
	resp, err := f.svc.GetProductDetails(context.Background(), "monthly_sub")
	if err != nil {
		t.Fatalf("GetProductDetails: %v", err)
	}
	if resp.ResponseCode != models.ResponseOK || resp.ResponseMessage != models.MessageProductFound {
		t.Fatalf("unexpected response %+v", resp)
	}
	want := models.ProductDetailsData{
		ProductIdentifier: "monthly_sub",
		DisplayName:       "Monthly",
		Description:       "Monthly access",
		Price:             "USD 4.99",
	}
	if !reflect.DeepEqual(resp.Data, want) {
		t.Errorf("data = %+v, want %+v", resp.Data, want)
	}
}

func TestGetProductDetailsIsRepeatable(t *testing.T) {
	f := newFixture(t, true, "")
	first, _ := f.svc.GetProductDetails(context.Background(), "monthly_sub")
	second, _ := f.svc.GetProductDetails(context.Background(), "monthly_sub")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("responses differ: %+v vs %+v", first, second)
	}
	if n := f.fake.ProductQueries(); n != 2 {
		t.Errorf("expected 2 queries, got %d", n)
	}
}

func TestGetProductDetailsNotFound(t *testing.T) {
	f := newFixture(t, true, "")
	resp, _ := f.svc.GetProductDetails(context.Background(), "yearly_sub")
	if resp.ResponseCode != models.ResponseProductNotFound || resp.Data != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.BillingResponseCode != nil {
		t.Errorf("unexpected billing code %d", *resp.BillingResponseCode)
	}
}

func TestGetProductDetailsCarriesCapabilityCode(t *testing.T) {
	f := newFixture(t, true, "")
	f.fake.SetProductResult(capability.ResultOf(capability.ServiceUnavailable, "backend down"))
	resp, _ := f.svc.GetProductDetails(context.Background(), "monthly_sub")
	if resp.ResponseCode != models.ResponseProductNotFound {
		t.Fatalf("unexpected code %d", resp.ResponseCode)
	}
	if resp.BillingResponseCode == nil || *resp.BillingResponseCode != int(capability.ServiceUnavailable) {
		t.Fatalf("expected billing code %d, got %v", capability.ServiceUnavailable, resp.BillingResponseCode)
	}
}

func TestGetProductDetailsWhileConnecting(t *testing.T) {
	f := newFixture(t, false, "")
	resp, _ := f.svc.GetProductDetails(context.Background(), "monthly_sub")
	if resp.ResponseCode != models.ResponseBillingInitialising || resp.ResponseMessage != models.MessageBillingInitialising {
		t.Fatalf("unexpected response %+v", resp)
	}
	if n := f.fake.ProductQueries(); n != 0 {
		t.Errorf("capability must not be queried, got %d queries", n)
	}
}

func TestGetProductDetailsAfterFailedSetup(t *testing.T) {
	f := newFixture(t, false, "")
	f.fake.FinishSetup(capability.ResultOf(capability.BillingUnavailable, "no account"))
	resp, _ := f.svc.GetProductDetails(context.Background(), "monthly_sub")
	if resp.ResponseCode != models.ResponseBillingFailed {
		t.Fatalf("unexpected code %d", resp.ResponseCode)
	}
	if resp.BillingResponseCode == nil || *resp.BillingResponseCode != int(capability.BillingUnavailable) {
		t.Fatalf("unexpected billing code %v", resp.BillingResponseCode)
	}
}

func TestMissingProductIdentifierIsRejected(t *testing.T) {
	f := newFixture(t, true, "")
	if _, err := f.svc.GetProductDetails(context.Background(), " "); !errors.Is(err, ErrMissingProductID) {
		t.Errorf("GetProductDetails: expected ErrMissingProductID, got %v", err)
	}
	if _, err := f.svc.GetLatestTransaction(context.Background(), ""); !errors.Is(err, ErrMissingProductID) {
		t.Errorf("GetLatestTransaction: expected ErrMissingProductID, got %v", err)
	}
	if _, err := f.svc.PurchaseProduct(context.Background(), models.PurchaseRequest{}); !errors.Is(err, ErrMissingProductID) {
		t.Errorf("PurchaseProduct: expected ErrMissingProductID, got %v", err)
	}
	if len(f.fake.Launches()) != 0 {
		t.Error("no flow must be launched")
	}
}

func TestGetLatestTransactionFirstMatchWins(t *testing.T) {
	f := newFixture(t, true, "")
	other := record("ord0", "tok0")
	other.ProductIDs = []string{"yearly_sub"}
	f.fake.SetPurchases(capability.Result{}, other, record("ord1", "tok1"), record("ord2", "tok2"))

	resp, err := f.svc.GetLatestTransaction(context.Background(), "monthly_sub")
	if err != nil {
		t.Fatalf("GetLatestTransaction: %v", err)
	}
	if resp.ResponseCode != models.ResponseOK {
		t.Fatalf("unexpected response %+v", resp)
	}
	data, ok := resp.Data.(models.LatestTransactionData)
	if !ok {
		t.Fatalf("unexpected data type %T", resp.Data)
	}
	if data.TransactionID != "ord1" || data.PurchaseToken != "tok1" || data.ProductIdentifier != "monthly_sub" {
		t.Errorf("unexpected data %+v", data)
	}
	var tx map[string]string
	if err := json.Unmarshal(data.Transaction, &tx); err != nil || tx["orderId"] != "ord1" {
		t.Errorf("unexpected transaction %s (%v)", data.Transaction, err)
	}
}

func TestGetLatestTransactionMalformedReceipt(t *testing.T) {
	f := newFixture(t, true, "")
	rec := record("ord1", "tok1")
	rec.OriginalJSON = "{not json"
	f.fake.SetPurchases(capability.Result{}, rec)

	resp, _ := f.svc.GetLatestTransaction(context.Background(), "monthly_sub")
	if resp.ResponseCode != models.ResponseOK {
		t.Fatalf("unexpected response %+v", resp)
	}
	data := resp.Data.(models.LatestTransactionData)
	if data.Transaction != nil {
		t.Errorf("expected no transaction, got %s", data.Transaction)
	}
	if data.PurchaseToken != "tok1" {
		t.Errorf("expected token tok1, got %q", data.PurchaseToken)
	}
}

func TestGetLatestTransactionNone(t *testing.T) {
	f := newFixture(t, true, "")
	resp, _ := f.svc.GetLatestTransaction(context.Background(), "monthly_sub")
	if resp.ResponseCode != models.ResponseTransactionNotFound || resp.ResponseMessage != models.MessageTransactionMissing {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGetCurrentEntitlementsVerificationFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	f := newFixture(t, true, ts.URL)
	f.fake.SetPurchases(capability.Result{}, record("ord1", "tok1"))

	resp := f.svc.GetCurrentEntitlements(context.Background())
	if resp.ResponseCode != models.ResponseOK {
		t.Fatalf("unexpected response %+v", resp)
	}
	list, ok := resp.Data.([]models.Entitlement)
	if !ok || len(list) != 1 {
		t.Fatalf("expected one entitlement, got %#v", resp.Data)
	}
	if list[0].TransactionID != "ord1" || list[0].ExpiryDate != nil {
		t.Errorf("unexpected entitlement %+v", list[0])
	}
	if list[0].OriginalStartDate != "01-05-2024 10:00" {
		t.Errorf("unexpected start date %q", list[0].OriginalStartDate)
	}
}

func TestGetCurrentEntitlementsWithExpiry(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"expiryDate":"2024-06-01 10:00:00"}`))
	}))
	defer ts.Close()

	f := newFixture(t, true, ts.URL)
	f.fake.SetPurchases(capability.Result{}, record("ord1", "tok1"), record("ord2", "tok2"))

	resp := f.svc.GetCurrentEntitlements(context.Background())
	list := resp.Data.([]models.Entitlement)
	if len(list) != 2 {
		t.Fatalf("expected two entitlements, got %d", len(list))
	}
	for _, e := range list {
		if e.ExpiryDate == nil || *e.ExpiryDate != "2024-06-01 10:00:00" {
			t.Errorf("unexpected expiry for %s: %v", e.TransactionID, e.ExpiryDate)
		}
	}
}

func TestGetCurrentEntitlementsEmpty(t *testing.T) {
	f := newFixture(t, true, "")
	resp := f.svc.GetCurrentEntitlements(context.Background())
	if resp.ResponseCode != models.ResponseNoEntitlements || resp.ResponseMessage != models.MessageNoEntitlements {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGetCurrentEntitlementsQueryFailure(t *testing.T) {
	f := newFixture(t, true, "")
	f.fake.SetPurchases(capability.ResultOf(capability.ServiceDisconnected, "gone"))
	resp := f.svc.GetCurrentEntitlements(context.Background())
	if resp.ResponseCode != models.ResponseEntitlementsError {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.BillingResponseCode == nil || *resp.BillingResponseCode != int(capability.ServiceDisconnected) {
		t.Fatalf("unexpected billing code %v", resp.BillingResponseCode)
	}
}

func TestPurchaseProductDefaultsToAcknowledge(t *testing.T) {
	f := newFixture(t, true, "")
	f.fake.OnLaunch(func(capability.FlowParams) {
		f.fake.CompletePurchase(capability.Result{}, record("ord1", "tok1"))
	})
	account := "u1"
	call, err := f.svc.PurchaseProduct(context.Background(), models.PurchaseRequest{ProductIdentifier: "monthly_sub", AccountID: &account})
	if err != nil {
		t.Fatalf("PurchaseProduct: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := call.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !res.Successful || res.Message != models.MessagePurchaseAcknowledged {
		t.Fatalf("unexpected result %+v", res)
	}
	if acks := f.fake.Acks(); len(acks) != 1 || acks[0] != "tok1" {
		t.Errorf("unexpected acks %v", acks)
	}
}

func TestAbandonPurchaseResolvesWithTimeout(t *testing.T) {
	f := newFixture(t, true, "")
	call, err := f.svc.PurchaseProduct(context.Background(), models.PurchaseRequest{ProductIdentifier: "monthly_sub"})
	if err != nil {
		t.Fatalf("PurchaseProduct: %v", err)
	}
	if !f.svc.AbandonPurchase(call) {
		t.Fatal("expected abandon to resolve the call")
	}
	res := call.Result()
	if res.Successful || res.Message != models.MessagePurchaseTimedOut {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestManageSubscriptions(t *testing.T) {
	f := newFixture(t, true, "")
	got, err := f.svc.ManageSubscriptions(context.Background(), "monthly_sub", "com.example.app")
	if err != nil {
		t.Fatalf("ManageSubscriptions: %v", err)
	}
	want := "https://play.google.com/store/account/subscriptions?sku=monthly_sub&package=com.example.app"
	if got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
	if len(f.opener.urls) != 1 || f.opener.urls[0] != want {
		t.Errorf("unexpected opened urls %v", f.opener.urls)
	}

	if _, err := f.svc.ManageSubscriptions(context.Background(), "monthly_sub", ""); !errors.Is(err, ErrMissingBundleID) {
		t.Errorf("expected ErrMissingBundleID, got %v", err)
	}
}

func TestEcho(t *testing.T) {
	f := newFixture(t, true, "")
	if got := f.svc.Echo("hello"); got != "hello" {
		t.Fatalf("Echo = %q", got)
	}
}
