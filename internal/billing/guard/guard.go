// Package guard tracks the billing capability's connection lifecycle and
// gates bridge operations on it.
package guard

import (
	"sync"

	"subsBridge/internal/billing/capability"
	"subsBridge/internal/models"
)

// State is the connection state of the billing capability.
type State int

const (
	Connecting State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Failed:
		return "FAILED"
	default:
		return "CONNECTING"
	}
}

// Logger is the minimal logger used by the guard.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Guard implements capability.StateListener. The first setup callback
// decides the state for the lifetime of the process.
type Guard struct {
	logger Logger

	mu      sync.RWMutex
	state   State
	failure capability.ResponseCode
}

// New returns a guard in the Connecting state.
func New(logger Logger) *Guard {
	return &Guard{logger: logger, state: Connecting}
}

// OnBillingSetupFinished records the outcome of the connection attempt.
func (g *Guard) OnBillingSetupFinished(r capability.Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Connecting {
		g.logger.Infof("billing setup finished again with %s, ignored", r.Code)
		return
	}
	if r.OK() {
		g.state = Ready
		g.logger.Infof("billing client connected")
		return
	}
	g.state = Failed
	g.failure = r.Code
	g.logger.Errorf("billing client setup failed: %s %s", r.Code, r.DebugMessage)
}

// OnBillingServiceDisconnected logs the disconnect. No reconnect is attempted.
func (g *Guard) OnBillingServiceDisconnected() {
	g.logger.Errorf("billing service disconnected")
}

// State returns the current state and, when Failed, the failure code.
func (g *Guard) State() (State, capability.ResponseCode) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state, g.failure
}

// IsReady reports whether operations may proceed.
func (g *Guard) IsReady() bool {
	s, _ := g.State()
	return s == Ready
}

// FailureReason returns the setup failure code when the guard is Failed.
func (g *Guard) FailureReason() (capability.ResponseCode, bool) {
	s, code := g.State()
	if s != Failed {
		return 0, false
	}
	return code, true
}

// NotReadyResponse returns the bridge response for a guard that is not
// ready, or false when the guard is ready.
func (g *Guard) NotReadyResponse() (models.BridgeResponse, bool) {
	s, code := g.State()
	switch s {
	case Ready:
		return models.BridgeResponse{}, false
	case Failed:
		c := int(code)
		return models.BridgeResponse{
			ResponseCode:        models.ResponseBillingFailed,
			ResponseMessage:     models.MessageBillingFailed,
			BillingResponseCode: &c,
		}, true
	default:
		return models.BridgeResponse{
			ResponseCode:    models.ResponseBillingInitialising,
			ResponseMessage: models.MessageBillingInitialising,
		}, true
	}
}
