package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"subsBridge/internal/billing/capability"
	"subsBridge/internal/billing/correlator"
	"subsBridge/internal/billing/entitlements"
	"subsBridge/internal/metrics"
	"subsBridge/internal/models"
)

const manageSubscriptionsURL = "https://play.google.com/store/account/subscriptions"

var (
	ErrMissingProductID  = errors.New(models.RejectMissingProductID)
	ErrMissingBundleID   = errors.New(models.RejectMissingBundleID)
	ErrMissingParameters = errors.New(models.RejectMissingParameters)
)

// BillingGate reports whether the billing client accepts operations.
type BillingGate interface {
	NotReadyResponse() (models.BridgeResponse, bool)
}

// Purchaser starts purchase flows and abandons them.
type Purchaser interface {
	PurchaseProduct(ctx context.Context, req correlator.Request) *correlator.Call
	Abandon(call *correlator.Call, message string) bool
}

// EntitlementLister builds entitlements from purchase records.
type EntitlementLister interface {
	ListEntitlements(ctx context.Context, records []models.RawPurchaseRecord, cfg models.VerificationConfig) ([]models.Entitlement, error)
}

// URLOpener navigates the app shell to an external page.
type URLOpener interface {
	OpenURL(ctx context.Context, url string) error
}

// Logger is the minimal logger used by the service.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// SubscriptionsService is the bridge's service context. It owns the
// verification details and answers every bridge operation.
type SubscriptionsService struct {
	Capability  capability.Capability
	Gate        BillingGate
	Purchaser   Purchaser
	Reconciler  EntitlementLister
	Opener      URLOpener
	Logger      Logger
	CallTimeout time.Duration

	mu           sync.RWMutex
	verification models.VerificationConfig
}

// SetAPIVerificationDetails replaces the verification details. All three
// fields are required.
func (s *SubscriptionsService) SetAPIVerificationDetails(cfg models.VerificationConfig) error {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Credential = strings.TrimSpace(cfg.Credential)
	cfg.ProductID = strings.TrimSpace(cfg.ProductID)
	if !cfg.Complete() {
		return ErrMissingParameters
	}
	s.mu.Lock()
	s.verification = cfg
	s.mu.Unlock()
	s.Logger.Infof("verification values updated")
	return nil
}

// VerificationDetails returns the current verification details.
func (s *SubscriptionsService) VerificationDetails() models.VerificationConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verification
}

func (s *SubscriptionsService) Echo(value string) string {
	s.Logger.Infof("echo: %s", value)
	return value
}

func (s *SubscriptionsService) GetProductDetails(ctx context.Context, productID string) (models.BridgeResponse, error) {
	if strings.TrimSpace(productID) == "" {
		return models.BridgeResponse{}, ErrMissingProductID
	}
	resp := s.getProductDetails(ctx, productID)
	metrics.RecordBridgeResponse("getProductDetails", resp.ResponseCode)
	return resp, nil
}

func (s *SubscriptionsService) getProductDetails(ctx context.Context, productID string) models.BridgeResponse {
	if resp, blocked := s.Gate.NotReadyResponse(); blocked {
		return resp
	}
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	res, details := s.Capability.QueryProductDetails(ctx, productID)
	if !res.OK() || len(details) == 0 {
		if !res.OK() {
			s.Logger.Errorf("product details for %s: %s %s", productID, res.Code, res.DebugMessage)
		}
		return models.BridgeResponse{
			ResponseCode:        models.ResponseProductNotFound,
			ResponseMessage:     models.MessageProductNotFound,
			BillingResponseCode: billingCode(res),
		}
	}
	d := details[0]
	return models.BridgeResponse{
		ResponseCode:    models.ResponseOK,
		ResponseMessage: models.MessageProductFound,
		Data: models.ProductDetailsData{
			ProductIdentifier: d.ProductID,
			DisplayName:       d.Title,
			Description:       d.Description,
			Price:             d.FirstPrice(),
		},
	}
}

func (s *SubscriptionsService) GetLatestTransaction(ctx context.Context, productID string) (models.BridgeResponse, error) {
	if strings.TrimSpace(productID) == "" {
		return models.BridgeResponse{}, ErrMissingProductID
	}
	resp := s.getLatestTransaction(ctx, productID)
	metrics.RecordBridgeResponse("getLatestTransaction", resp.ResponseCode)
	return resp, nil
}

func (s *SubscriptionsService) getLatestTransaction(ctx context.Context, productID string) models.BridgeResponse {
	if resp, blocked := s.Gate.NotReadyResponse(); blocked {
		return resp
	}
	ctx, cancel := s.callContext(ctx)
	defer cancel()

	res, records := s.Capability.QueryPurchases(ctx)
	if res.OK() {
		for _, rec := range records {
			if !rec.HasProduct(productID) {
				continue
			}
			data := models.LatestTransactionData{
				ProductIdentifier: rec.FirstProduct(),
				TransactionID:     rec.OrderID,
				PurchaseToken:     rec.PurchaseToken,
			}
			var parsed map[string]any
			if err := json.Unmarshal([]byte(rec.OriginalJSON), &parsed); err != nil {
				s.Logger.Errorf("transaction %s: error parsing purchase data: %v", rec.OrderID, err)
			} else {
				data.Transaction = json.RawMessage(rec.OriginalJSON)
			}
			return models.BridgeResponse{
				ResponseCode:    models.ResponseOK,
				ResponseMessage: models.MessageTransactionFound,
				Data:            data,
			}
		}
	} else {
		s.Logger.Errorf("query purchases: %s %s", res.Code, res.DebugMessage)
	}
	return models.BridgeResponse{
		ResponseCode:        models.ResponseTransactionNotFound,
		ResponseMessage:     models.MessageTransactionMissing,
		BillingResponseCode: billingCode(res),
	}
}

func (s *SubscriptionsService) GetCurrentEntitlements(ctx context.Context) models.BridgeResponse {
	resp := s.getCurrentEntitlements(ctx)
	metrics.RecordBridgeResponse("getCurrentEntitlements", resp.ResponseCode)
	return resp
}

func (s *SubscriptionsService) getCurrentEntitlements(ctx context.Context) models.BridgeResponse {
	if resp, blocked := s.Gate.NotReadyResponse(); blocked {
		return resp
	}
	qctx, cancel := s.callContext(ctx)
	res, records := s.Capability.QueryPurchases(qctx)
	cancel()
	if !res.OK() {
		return models.BridgeResponse{
			ResponseCode:        models.ResponseEntitlementsError,
			ResponseMessage:     fmt.Sprintf("query purchases failed: %s", res.Code),
			BillingResponseCode: billingCode(res),
		}
	}

	list, err := s.Reconciler.ListEntitlements(ctx, records, s.VerificationDetails())
	switch {
	case errors.Is(err, entitlements.ErrNoEntitlements):
		s.Logger.Infof("no active subscriptions found")
		return models.BridgeResponse{
			ResponseCode:    models.ResponseNoEntitlements,
			ResponseMessage: models.MessageNoEntitlements,
		}
	case err != nil:
		s.Logger.Errorf("list entitlements: %v", err)
		return models.BridgeResponse{
			ResponseCode:    models.ResponseEntitlementsError,
			ResponseMessage: err.Error(),
		}
	}
	return models.BridgeResponse{
		ResponseCode:    models.ResponseOK,
		ResponseMessage: models.MessageEntitlementsFound,
		Data:            list,
	}
}

// PurchaseProduct starts a purchase flow. The returned call resolves when
// the flow completes.
func (s *SubscriptionsService) PurchaseProduct(ctx context.Context, req models.PurchaseRequest) (*correlator.Call, error) {
	productID := strings.TrimSpace(req.ProductIdentifier)
	if productID == "" {
		return nil, ErrMissingProductID
	}
	accountID := ""
	if req.AccountID != nil {
		accountID = *req.AccountID
	}
	return s.Purchaser.PurchaseProduct(ctx, correlator.Request{
		ProductIdentifier: productID,
		AccountID:         accountID,
		Acknowledge:       req.Acknowledge(),
	}), nil
}

// AbandonPurchase gives up waiting on call.
func (s *SubscriptionsService) AbandonPurchase(call *correlator.Call) bool {
	return s.Purchaser.Abandon(call, models.MessagePurchaseTimedOut)
}

// ManageSubscriptionsURL returns the store page for managing a subscription.
func ManageSubscriptionsURL(productID, packageName string) string {
	return fmt.Sprintf("%s?sku=%s&package=%s", manageSubscriptionsURL, url.QueryEscape(productID), url.QueryEscape(packageName))
}

// ManageSubscriptions opens the store's subscription management page in the
// app shell.
func (s *SubscriptionsService) ManageSubscriptions(ctx context.Context, productID, packageName string) (string, error) {
	productID = strings.TrimSpace(productID)
	packageName = strings.TrimSpace(packageName)
	if productID == "" {
		return "", ErrMissingProductID
	}
	if packageName == "" {
		return "", ErrMissingBundleID
	}
	target := ManageSubscriptionsURL(productID, packageName)
	if err := s.Opener.OpenURL(ctx, target); err != nil {
		return target, fmt.Errorf("open %s: %w", target, err)
	}
	return target, nil
}

func (s *SubscriptionsService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.CallTimeout)
}

func billingCode(res capability.Result) *int {
	if res.OK() {
		return nil
	}
	c := int(res.Code)
	return &c
}
