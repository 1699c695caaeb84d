// Package playstore implements the billing capability over the Play
// Developer API. Flow launches go to the connected app shell and purchase
// completions come back through HandlePurchaseUpdate.
package playstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	androidpublisher "google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"

	"subsBridge/internal/billing/capability"
	"subsBridge/internal/billing/ws"
	"subsBridge/internal/models"
)

// Publisher is the subset of the Play Developer API used by the client.
type Publisher interface {
	PackageName() string
	Probe(ctx context.Context) error
	GetSubscription(ctx context.Context, productID string) (*androidpublisher.Subscription, error)
	GetSubscriptionPurchase(ctx context.Context, subscriptionID, token string) (*androidpublisher.SubscriptionPurchase, error)
	AcknowledgeSubscription(ctx context.Context, subscriptionID, token string) error
}

// Launcher asks the app shell to open the store's purchase sheet.
type Launcher interface {
	LaunchPurchaseFlow(ctx context.Context, params capability.FlowParams) error
}

// PurchaseStore keeps the purchase records known to the capability.
type PurchaseStore interface {
	Save(ctx context.Context, rec models.RawPurchaseRecord) error
	Get(ctx context.Context, purchaseToken string) (models.RawPurchaseRecord, bool, error)
	List(ctx context.Context) ([]models.RawPurchaseRecord, error)
}

// Logger is the minimal logger used by the client.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// PurchaseRef identifies a purchase reported by the app shell or by a
// developer notification.
type PurchaseRef struct {
	ProductID     string `json:"productId"`
	PurchaseToken string `json:"purchaseToken"`
}

// Config configures a Client.
type Config struct {
	Publisher  Publisher
	Launcher   Launcher
	Store      PurchaseStore
	Dispatcher *capability.Dispatcher
	Logger     Logger
	RegionCode string
}

// Client is a capability.Capability backed by Google Play.
type Client struct {
	publisher  Publisher
	launcher   Launcher
	store      PurchaseStore
	dispatcher *capability.Dispatcher
	logger     Logger
	regionCode string

	mu            sync.RWMutex
	stateListener capability.StateListener
	listener      capability.PurchasesUpdatedListener
}

var _ capability.Capability = (*Client)(nil)

// New constructs a Client.
func New(cfg Config) *Client {
	return &Client{
		publisher:  cfg.Publisher,
		launcher:   cfg.Launcher,
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
		regionCode: cfg.RegionCode,
	}
}

// StartConnection probes the API in the background and reports the outcome
// on the dispatcher.
func (c *Client) StartConnection(ctx context.Context, listener capability.StateListener) {
	c.mu.Lock()
	c.stateListener = listener
	c.mu.Unlock()

	go func() {
		res := capability.Result{Code: capability.OK}
		if err := c.publisher.Probe(ctx); err != nil {
			res = resultFromError(err)
			c.logger.Errorf("play billing probe failed: %v", err)
		}
		c.post(func() { listener.OnBillingSetupFinished(res) })
	}()
}

// EndConnection reports a disconnect to the state listener.
func (c *Client) EndConnection() {
	c.mu.RLock()
	l := c.stateListener
	c.mu.RUnlock()
	if l != nil {
		c.post(l.OnBillingServiceDisconnected)
	}
}

func (c *Client) SetPurchasesUpdatedListener(listener capability.PurchasesUpdatedListener) {
	c.mu.Lock()
	c.listener = listener
	c.mu.Unlock()
}

func (c *Client) QueryProductDetails(ctx context.Context, productID string) (capability.Result, []models.ProductDetails) {
	sub, err := c.publisher.GetSubscription(ctx, productID)
	if err != nil {
		res := resultFromError(err)
		if res.Code == capability.ItemUnavailable {
			return capability.Result{Code: capability.OK}, nil
		}
		return res, nil
	}
	return capability.Result{Code: capability.OK}, []models.ProductDetails{productFromSubscription(sub, c.regionCode)}
}

func (c *Client) QueryPurchases(ctx context.Context) (capability.Result, []models.RawPurchaseRecord) {
	records, err := c.store.List(ctx)
	if err != nil {
		c.logger.Errorf("list purchases: %v", err)
		return capability.ResultOf(capability.Error, err.Error()), nil
	}
	return capability.Result{Code: capability.OK}, records
}

func (c *Client) LaunchBillingFlow(ctx context.Context, params capability.FlowParams) capability.Result {
	if err := c.launcher.LaunchPurchaseFlow(ctx, params); err != nil {
		if errors.Is(err, ws.ErrNoClients) {
			return capability.ResultOf(capability.ServiceDisconnected, err.Error())
		}
		return resultFromError(err)
	}
	return capability.Result{Code: capability.OK}
}

// AcknowledgePurchase acknowledges the subscription behind purchaseToken and
// delivers the outcome on the dispatcher.
func (c *Client) AcknowledgePurchase(ctx context.Context, purchaseToken string, done func(capability.Result)) {
	go func() {
		res := c.acknowledge(ctx, purchaseToken)
		c.post(func() { done(res) })
	}()
}

func (c *Client) acknowledge(ctx context.Context, purchaseToken string) capability.Result {
	rec, ok, err := c.store.Get(ctx, purchaseToken)
	if err != nil {
		return capability.ResultOf(capability.Error, err.Error())
	}
	if !ok || rec.FirstProduct() == "" {
		return capability.ResultOf(capability.ItemNotOwned, "unknown purchase token")
	}
	if err := c.publisher.AcknowledgeSubscription(ctx, rec.FirstProduct(), purchaseToken); err != nil {
		c.logger.Errorf("acknowledge %s: %v", rec.OrderID, err)
		return resultFromError(err)
	}
	rec.Acknowledged = true
	if err := c.store.Save(ctx, rec); err != nil {
		c.logger.Errorf("store acknowledged %s: %v", rec.OrderID, err)
	}
	return capability.Result{Code: capability.OK}
}

// HandlePurchaseUpdate verifies the reported purchases against the API,
// stores them and delivers the completion to the purchases-updated listener.
func (c *Client) HandlePurchaseUpdate(ctx context.Context, code capability.ResponseCode, refs []PurchaseRef) error {
	if code != capability.OK {
		c.deliver(capability.Result{Code: code}, nil)
		return nil
	}

	records := make([]models.RawPurchaseRecord, 0, len(refs))
	for _, ref := range refs {
		rec, err := c.Refresh(ctx, ref)
		if err != nil {
			res := resultFromError(err)
			c.deliver(res, nil)
			return err
		}
		records = append(records, rec)
	}
	c.deliver(capability.Result{Code: capability.OK}, records)
	return nil
}

// Refresh fetches the purchase behind ref and stores it.
func (c *Client) Refresh(ctx context.Context, ref PurchaseRef) (models.RawPurchaseRecord, error) {
	if ref.ProductID == "" || ref.PurchaseToken == "" {
		return models.RawPurchaseRecord{}, fmt.Errorf("playstore: productId and purchaseToken are required")
	}
	purchase, err := c.publisher.GetSubscriptionPurchase(ctx, ref.ProductID, ref.PurchaseToken)
	if err != nil {
		return models.RawPurchaseRecord{}, err
	}
	rec := recordFromPurchase(c.publisher.PackageName(), ref, purchase)
	if err := c.store.Save(ctx, rec); err != nil {
		return models.RawPurchaseRecord{}, fmt.Errorf("store purchase: %w", err)
	}
	return rec, nil
}

func (c *Client) deliver(res capability.Result, records []models.RawPurchaseRecord) {
	c.mu.RLock()
	l := c.listener
	c.mu.RUnlock()
	if l == nil {
		c.logger.Errorf("purchase update %s dropped: no listener", res.Code)
		return
	}
	c.post(func() { l(res, records) })
}

func (c *Client) post(fn func()) {
	if err := c.dispatcher.Post(fn); err != nil {
		c.logger.Errorf("dispatch callback: %v", err)
	}
}

func resultFromError(err error) capability.Result {
	var gerr *googleapi.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return capability.ResultOf(capability.ServiceTimeout, err.Error())
	case errors.As(err, &gerr):
		switch {
		case gerr.Code == http.StatusNotFound:
			return capability.ResultOf(capability.ItemUnavailable, gerr.Message)
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return capability.ResultOf(capability.BillingUnavailable, gerr.Message)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return capability.ResultOf(capability.ServiceUnavailable, gerr.Message)
		default:
			return capability.ResultOf(capability.DeveloperError, gerr.Message)
		}
	default:
		return capability.ResultOf(capability.NetworkError, err.Error())
	}
}
