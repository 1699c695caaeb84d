// Package capabilitytest provides an in-memory billing capability for tests.
package capabilitytest

import (
	"context"
	"sync"

	"subsBridge/internal/billing/capability"
	"subsBridge/internal/models"
)

// Fake is a scriptable capability. Callbacks are delivered on its dispatcher.
type Fake struct {
	Dispatcher *capability.Dispatcher

	mu              sync.Mutex
	products        map[string]models.ProductDetails
	productResult   capability.Result
	purchases       []models.RawPurchaseRecord
	purchasesResult capability.Result
	launchResult    capability.Result
	ackResult       capability.Result
	onLaunch        func(capability.FlowParams)

	stateListener    capability.StateListener
	purchaseListener capability.PurchasesUpdatedListener

	launches       []capability.FlowParams
	acks           []string
	productQueries int
}

// New returns a fake whose calls all succeed.
func New() *Fake {
	return &Fake{
		Dispatcher: capability.NewDispatcher(16, nil),
		products:   make(map[string]models.ProductDetails),
	}
}

// Close stops the fake's dispatcher.
func (f *Fake) Close() { f.Dispatcher.Close() }

// AddProduct registers a product in the catalog.
func (f *Fake) AddProduct(p models.ProductDetails) {
	f.mu.Lock()
	f.products[p.ProductID] = p
	f.mu.Unlock()
}

// SetProductResult overrides the result of product queries.
func (f *Fake) SetProductResult(r capability.Result) {
	f.mu.Lock()
	f.productResult = r
	f.mu.Unlock()
}

// SetPurchases sets the records returned by QueryPurchases.
func (f *Fake) SetPurchases(r capability.Result, records ...models.RawPurchaseRecord) {
	f.mu.Lock()
	f.purchasesResult = r
	f.purchases = records
	f.mu.Unlock()
}

// SetLaunchResult overrides the result of LaunchBillingFlow.
func (f *Fake) SetLaunchResult(r capability.Result) {
	f.mu.Lock()
	f.launchResult = r
	f.mu.Unlock()
}

// SetAckResult sets the result delivered to acknowledgment callbacks.
func (f *Fake) SetAckResult(r capability.Result) {
	f.mu.Lock()
	f.ackResult = r
	f.mu.Unlock()
}

// OnLaunch registers a hook run after each successful flow launch.
func (f *Fake) OnLaunch(fn func(capability.FlowParams)) {
	f.mu.Lock()
	f.onLaunch = fn
	f.mu.Unlock()
}

func (f *Fake) StartConnection(ctx context.Context, listener capability.StateListener) {
	f.mu.Lock()
	f.stateListener = listener
	f.mu.Unlock()
}

func (f *Fake) SetPurchasesUpdatedListener(listener capability.PurchasesUpdatedListener) {
	f.mu.Lock()
	f.purchaseListener = listener
	f.mu.Unlock()
}

func (f *Fake) QueryProductDetails(ctx context.Context, productID string) (capability.Result, []models.ProductDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productQueries++
	if !f.productResult.OK() {
		return f.productResult, nil
	}
	p, ok := f.products[productID]
	if !ok {
		return capability.Result{}, nil
	}
	return capability.Result{}, []models.ProductDetails{p}
}

func (f *Fake) QueryPurchases(ctx context.Context) (capability.Result, []models.RawPurchaseRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.RawPurchaseRecord, len(f.purchases))
	copy(out, f.purchases)
	return f.purchasesResult, out
}

func (f *Fake) LaunchBillingFlow(ctx context.Context, params capability.FlowParams) capability.Result {
	f.mu.Lock()
	f.launches = append(f.launches, params)
	res := f.launchResult
	hook := f.onLaunch
	f.mu.Unlock()
	if res.OK() && hook != nil {
		hook(params)
	}
	return res
}

func (f *Fake) AcknowledgePurchase(ctx context.Context, purchaseToken string, done func(capability.Result)) {
	f.mu.Lock()
	f.acks = append(f.acks, purchaseToken)
	res := f.ackResult
	f.mu.Unlock()
	go func() { _ = f.Dispatcher.Post(func() { done(res) }) }()
}

// FinishSetup delivers the setup callback.
func (f *Fake) FinishSetup(r capability.Result) {
	f.mu.Lock()
	l := f.stateListener
	f.mu.Unlock()
	if l == nil {
		return
	}
	_ = f.Dispatcher.Post(func() { l.OnBillingSetupFinished(r) })
	f.Dispatcher.Flush()
}

// Disconnect delivers the disconnect callback.
func (f *Fake) Disconnect() {
	f.mu.Lock()
	l := f.stateListener
	f.mu.Unlock()
	if l == nil {
		return
	}
	_ = f.Dispatcher.Post(l.OnBillingServiceDisconnected)
	f.Dispatcher.Flush()
}

// CompletePurchase delivers a purchases-updated callback.
func (f *Fake) CompletePurchase(r capability.Result, records ...models.RawPurchaseRecord) {
	f.mu.Lock()
	l := f.purchaseListener
	f.mu.Unlock()
	if l == nil {
		return
	}
	_ = f.Dispatcher.Post(func() { l(r, records) })
}

// Launches returns the flow launches seen so far.
func (f *Fake) Launches() []capability.FlowParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capability.FlowParams(nil), f.launches...)
}

// Acks returns the purchase tokens acknowledged so far.
func (f *Fake) Acks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acks...)
}

// ProductQueries returns the number of product detail queries.
func (f *Fake) ProductQueries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.productQueries
}
