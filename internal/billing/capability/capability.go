// Package capability describes the billing capability the bridge drives:
// catalog lookups, purchase records, the purchase flow and acknowledgment.
// Implementations deliver their asynchronous callbacks through a Dispatcher.
package capability

import (
	"context"
	"fmt"

	"subsBridge/internal/models"
)

// ResponseCode is a billing result code as reported by the store.
type ResponseCode int

const (
	ServiceTimeout      ResponseCode = -3
	FeatureNotSupported ResponseCode = -2
	ServiceDisconnected ResponseCode = -1
	OK                  ResponseCode = 0
	UserCanceled        ResponseCode = 1
	ServiceUnavailable  ResponseCode = 2
	BillingUnavailable  ResponseCode = 3
	ItemUnavailable     ResponseCode = 4
	DeveloperError      ResponseCode = 5
	Error               ResponseCode = 6
	ItemAlreadyOwned    ResponseCode = 7
	ItemNotOwned        ResponseCode = 8
	NetworkError        ResponseCode = 12
)

func (c ResponseCode) String() string {
	switch c {
	case ServiceTimeout:
		return "SERVICE_TIMEOUT"
	case FeatureNotSupported:
		return "FEATURE_NOT_SUPPORTED"
	case ServiceDisconnected:
		return "SERVICE_DISCONNECTED"
	case OK:
		return "OK"
	case UserCanceled:
		return "USER_CANCELED"
	case ServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case BillingUnavailable:
		return "BILLING_UNAVAILABLE"
	case ItemUnavailable:
		return "ITEM_UNAVAILABLE"
	case DeveloperError:
		return "DEVELOPER_ERROR"
	case Error:
		return "ERROR"
	case ItemAlreadyOwned:
		return "ITEM_ALREADY_OWNED"
	case ItemNotOwned:
		return "ITEM_NOT_OWNED"
	case NetworkError:
		return "NETWORK_ERROR"
	default:
		return fmt.Sprintf("CODE_%d", int(c))
	}
}

// Result is the outcome of a capability call.
type Result struct {
	Code         ResponseCode
	DebugMessage string
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Code == OK }

// ResultOf builds a result with the given code.
func ResultOf(code ResponseCode, msg string) Result {
	return Result{Code: code, DebugMessage: msg}
}

// StateListener receives connection lifecycle callbacks.
type StateListener interface {
	OnBillingSetupFinished(Result)
	OnBillingServiceDisconnected()
}

// PurchasesUpdatedListener receives purchase flow completions.
type PurchasesUpdatedListener func(Result, []models.RawPurchaseRecord)

// FlowParams describes a purchase flow launch.
type FlowParams struct {
	ProductID           string
	OfferToken          string
	ObfuscatedAccountID string
}

// Capability is the billing backend. Reads block until answered; setup,
// purchase updates and acknowledgments arrive on the dispatcher goroutine.
type Capability interface {
	StartConnection(ctx context.Context, listener StateListener)
	SetPurchasesUpdatedListener(listener PurchasesUpdatedListener)
	QueryProductDetails(ctx context.Context, productID string) (Result, []models.ProductDetails)
	QueryPurchases(ctx context.Context) (Result, []models.RawPurchaseRecord)
	LaunchBillingFlow(ctx context.Context, params FlowParams) Result
	AcknowledgePurchase(ctx context.Context, purchaseToken string, done func(Result))
}
