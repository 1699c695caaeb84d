// Package correlator drives the purchase flow: it holds the single pending
// purchase, matches the asynchronous purchases-updated callback to it,
// acknowledges when asked to and resolves the originating call exactly once.
package correlator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"subsBridge/internal/billing/capability"
	"subsBridge/internal/billing/fsm"
	"subsBridge/internal/billing/timeutil"
	"subsBridge/internal/metrics"
	"subsBridge/internal/models"
)

const (
	defaultCallTimeout = 15 * time.Second
	defaultAckTimeout  = 30 * time.Second
)

// Logger is the minimal logger used by the correlator.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Gate reports whether the billing client accepts operations.
type Gate interface {
	NotReadyResponse() (models.BridgeResponse, bool)
}

// Notifier delivers out-of-band events to the app shell.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any) error
}

// Request describes a purchase to start.
type Request struct {
	ProductIdentifier string
	AccountID         string
	Acknowledge       bool
}

// Config configures a Correlator.
type Config struct {
	Capability  capability.Capability
	Gate        Gate
	Notifier    Notifier
	Logger      Logger
	CallTimeout time.Duration
	AckTimeout  time.Duration
}

type pendingPurchase struct {
	call   *Call
	status string
}

// Correlator owns the process-wide pending purchase slot.
type Correlator struct {
	capability  capability.Capability
	gate        Gate
	notifier    Notifier
	logger      Logger
	callTimeout time.Duration
	ackTimeout  time.Duration

	mu      sync.Mutex
	pending *pendingPurchase
}

// New builds a Correlator and registers it as the capability's
// purchases-updated listener.
func New(cfg Config) *Correlator {
	c := &Correlator{
		capability:  cfg.Capability,
		gate:        cfg.Gate,
		notifier:    cfg.Notifier,
		logger:      cfg.Logger,
		callTimeout: cfg.CallTimeout,
		ackTimeout:  cfg.AckTimeout,
	}
	if c.callTimeout <= 0 {
		c.callTimeout = defaultCallTimeout
	}
	if c.ackTimeout <= 0 {
		c.ackTimeout = defaultAckTimeout
	}
	cfg.Capability.SetPurchasesUpdatedListener(c.OnPurchasesUpdated)
	return c
}

// Status returns the state of the pending purchase, idle when there is none.
func (c *Correlator) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return fsm.StatusIdle
	}
	return c.pending.status
}

// PurchaseProduct starts a purchase flow and returns the call that the
// completion callback resolves. Precondition failures resolve it at once.
func (c *Correlator) PurchaseProduct(ctx context.Context, req Request) *Call {
	call := newCall(req)

	if resp, blocked := c.gate.NotReadyResponse(); blocked {
		code := resp.ResponseCode
		call.resolve(models.PurchaseResult{
			Successful:          false,
			Message:             resp.ResponseMessage,
			ResponseCode:        &code,
			BillingResponseCode: resp.BillingResponseCode,
		})
		metrics.RecordPurchaseOutcome("not_ready")
		return call
	}

	c.mu.Lock()
	if c.pending != nil {
		busy := c.pending.call.ID
		c.mu.Unlock()
		c.logger.Errorf("purchase %s for %s rejected: purchase %s is in progress", call.ID, req.ProductIdentifier, busy)
		call.resolve(models.FailedPurchase(models.MessagePurchaseInProgress))
		metrics.RecordPurchaseOutcome("in_progress")
		return call
	}
	c.pending = &pendingPurchase{call: call, status: fsm.StatusIdle}
	c.transitionLocked(fsm.StatusLaunching)
	c.mu.Unlock()

	c.logger.Infof("purchase %s started for %s", call.ID, req.ProductIdentifier)

	qctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	res, details := c.capability.QueryProductDetails(qctx, req.ProductIdentifier)
	cancel()
	if !res.OK() || len(details) == 0 {
		c.logger.Errorf("purchase %s: product lookup for %s failed: %s %s", call.ID, req.ProductIdentifier, res.Code, res.DebugMessage)
		c.finish(call, models.FailedPurchase(models.MessageProductLookupFailed), "lookup_failed")
		return call
	}
	offerToken, ok := details[0].FirstOfferToken()
	if !ok {
		c.logger.Errorf("purchase %s: product %s has no offers", call.ID, req.ProductIdentifier)
		c.finish(call, models.FailedPurchase(models.MessageProductLookupFailed), "lookup_failed")
		return call
	}

	c.mu.Lock()
	if c.pending == nil || c.pending.call != call {
		c.mu.Unlock()
		return call
	}
	if c.pending.status == fsm.StatusLaunching {
		c.transitionLocked(fsm.StatusAwaitingCompletion)
	}
	c.mu.Unlock()

	lctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	res = c.capability.LaunchBillingFlow(lctx, capability.FlowParams{
		ProductID:           req.ProductIdentifier,
		OfferToken:          offerToken,
		ObfuscatedAccountID: req.AccountID,
	})
	cancel()
	if !res.OK() {
		c.logger.Errorf("purchase %s: launch failed: %s %s", call.ID, res.Code, res.DebugMessage)
		c.finish(call, failedWithCode("Purchase failed with code: %d", res.Code), "failed")
	}
	return call
}

// OnPurchasesUpdated is the capability's purchases-updated listener.
func (c *Correlator) OnPurchasesUpdated(res capability.Result, records []models.RawPurchaseRecord) {
	c.mu.Lock()
	p := c.pending
	if p == nil || p.status == fsm.StatusAwaitingAcknowledgment {
		c.mu.Unlock()
		c.notifyUnmatched(res)
		return
	}
	call := p.call

	switch {
	case res.Code == capability.UserCanceled:
		c.clearLocked()
		c.mu.Unlock()
		result := models.FailedPurchase(models.MessagePurchaseCancelled)
		code := int(res.Code)
		result.BillingResponseCode = &code
		c.deliver(call, result, "cancelled")

	case res.OK() && len(records) > 0:
		rec := records[0]
		if call.Request.Acknowledge && !rec.Acknowledged && rec.PurchaseState != models.PurchaseStatePending {
			c.transitionLocked(fsm.StatusAwaitingAcknowledgment)
			c.mu.Unlock()
			c.acknowledge(call, rec)
			return
		}
		c.clearLocked()
		c.mu.Unlock()
		c.deliver(call, successResult(rec, models.MessagePurchaseNoAck), "success")

	default:
		c.clearLocked()
		c.mu.Unlock()
		c.deliver(call, failedWithCode("Purchase failed with code: %d", res.Code), "failed")
	}
}

func (c *Correlator) acknowledge(call *Call, rec models.RawPurchaseRecord) {
	c.logger.Infof("purchase %s: acknowledging %s", call.ID, rec.OrderID)
	ctx, cancel := context.WithTimeout(context.Background(), c.ackTimeout)
	c.capability.AcknowledgePurchase(ctx, rec.PurchaseToken, func(r capability.Result) {
		cancel()
		c.onAcknowledged(call, rec, r)
	})
}

func (c *Correlator) onAcknowledged(call *Call, rec models.RawPurchaseRecord, r capability.Result) {
	c.mu.Lock()
	if c.pending == nil || c.pending.call != call {
		c.mu.Unlock()
		c.logger.Errorf("purchase %s: acknowledgment arrived after the call was resolved: %s", call.ID, r.Code)
		return
	}
	c.clearLocked()
	c.mu.Unlock()

	if !r.OK() {
		c.deliver(call, failedWithCode("Purchase acknowledgment failed with code: %d", r.Code), "ack_failed")
		return
	}
	c.deliver(call, successResult(rec, models.MessagePurchaseAcknowledged), "acknowledged")
}

// Abandon resolves call with a failure and frees the pending slot if it
// still holds call. It reports whether this resolved the call.
func (c *Correlator) Abandon(call *Call, message string) bool {
	c.mu.Lock()
	if c.pending != nil && c.pending.call == call {
		c.clearLocked()
	}
	c.mu.Unlock()
	if !call.resolve(models.FailedPurchase(message)) {
		return false
	}
	c.logger.Errorf("purchase %s abandoned: %s", call.ID, message)
	metrics.RecordPurchaseOutcome("timed_out")
	return true
}

func (c *Correlator) finish(call *Call, result models.PurchaseResult, outcome string) {
	c.mu.Lock()
	if c.pending != nil && c.pending.call == call {
		c.clearLocked()
	}
	c.mu.Unlock()
	c.deliver(call, result, outcome)
}

func (c *Correlator) deliver(call *Call, result models.PurchaseResult, outcome string) {
	if call.resolve(result) {
		c.logger.Infof("purchase %s resolved: %s", call.ID, result.Message)
		metrics.RecordPurchaseOutcome(outcome)
	}
}

func (c *Correlator) notifyUnmatched(res capability.Result) {
	metrics.RecordUnmatchedCompletion()
	c.logger.Infof("purchase update %s with no pending purchase", res.Code)
	if c.notifier == nil {
		return
	}
	payload := models.FailedPurchase(models.MessageNoPendingPurchase)
	ctx, cancel := context.WithTimeout(context.Background(), c.callTimeout)
	defer cancel()
	if err := c.notifier.Notify(ctx, models.PurchaseEvent, payload); err != nil {
		c.logger.Errorf("notify %s: %v", models.PurchaseEvent, err)
	}
}

// transitionLocked moves the pending purchase to status. c.mu must be held.
func (c *Correlator) transitionLocked(status string) {
	if !fsm.CanTransition(c.pending.status, status) {
		c.logger.Errorf("purchase %s: invalid transition %s -> %s", c.pending.call.ID, c.pending.status, status)
	}
	c.pending.status = status
}

// clearLocked resolves the pending purchase and frees the slot. c.mu must be held.
func (c *Correlator) clearLocked() {
	c.transitionLocked(fsm.StatusResolved)
	c.pending = nil
}

func successResult(rec models.RawPurchaseRecord, message string) models.PurchaseResult {
	return models.PurchaseResult{
		Successful:    true,
		Message:       message,
		PurchaseToken: rec.PurchaseToken,
		OrderID:       rec.OrderID,
		PackageName:   rec.PackageName,
		Signature:     rec.Signature,
		PurchaseDate:  timeutil.FormatPurchaseDate(rec.PurchaseTimeMillis),
		ProductIDs:    append([]string(nil), rec.ProductIDs...),
		OriginalJSON:  rec.OriginalJSON,
	}
}

func failedWithCode(format string, code capability.ResponseCode) models.PurchaseResult {
	result := models.FailedPurchase(fmt.Sprintf(format, int(code)))
	c := int(code)
	result.BillingResponseCode = &c
	return result
}

// Call is the handle of one purchase request. It is resolved exactly once.
type Call struct {
	ID      string
	Request Request

	once   sync.Once
	done   chan struct{}
	result models.PurchaseResult
}

func newCall(req Request) *Call {
	return &Call{ID: uuid.NewString(), Request: req, done: make(chan struct{})}
}

func (c *Call) resolve(result models.PurchaseResult) bool {
	resolved := false
	c.once.Do(func() {
		c.result = result
		close(c.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the call is resolved.
func (c *Call) Done() <-chan struct{} { return c.done }

// Result returns the terminal payload. It must only be read after Done is closed.
func (c *Call) Result() models.PurchaseResult { return c.result }

// Wait blocks until the call is resolved or ctx ends.
func (c *Call) Wait(ctx context.Context) (models.PurchaseResult, error) {
	select {
	case <-c.done:
		return c.result, nil
	case <-ctx.Done():
		return models.PurchaseResult{}, ctx.Err()
	}
}
