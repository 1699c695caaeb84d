package models

import "encoding/json"

// Bridge response codes.
const (
	ResponseOK                  = 0
	ResponseProductNotFound     = 1
	ResponseNoEntitlements      = 1
	ResponseEntitlementsError   = 2
	ResponseTransactionNotFound = 3
	ResponseBillingFailed       = 500
	ResponseBillingInitialising = 503
)

// Bridge response messages.
const (
	MessageProductFound        = "Successfully found the product details for given productIdentifier"
	MessageProductNotFound     = "Could not find a product matching the given productIdentifier"
	MessageTransactionFound    = "Successfully found transaction"
	MessageTransactionMissing  = "No transaction found"
	MessageEntitlementsFound   = "Successfully found all entitlements across all product types"
	MessageNoEntitlements      = "No entitlements were found"
	MessageBillingInitialising = "Android: BillingClient is still initialising"
	MessageBillingFailed       = "Android: BillingClient failed to initialise"
)

// Bridge argument rejections.
const (
	RejectMissingProductID  = "Must provide a productID"
	RejectMissingBundleID   = "Must provide a bundleID"
	RejectMissingParameters = "Missing required parameters"
)

// BridgeResponse is the envelope returned by read operations.
type BridgeResponse struct {
	ResponseCode        int    `json:"responseCode"`
	ResponseMessage     string `json:"responseMessage"`
	Data                any    `json:"data,omitempty"`
	BillingResponseCode *int   `json:"billingResponseCode,omitempty"`
}

// ProductDetailsData is the payload of a successful product lookup.
type ProductDetailsData struct {
	ProductIdentifier string `json:"productIdentifier"`
	DisplayName       string `json:"displayName"`
	Description       string `json:"description"`
	Price             string `json:"price"`
}

// LatestTransactionData is the payload of a successful transaction lookup.
// Transaction is omitted when the record's original JSON cannot be parsed.
type LatestTransactionData struct {
	Transaction       json.RawMessage `json:"transaction,omitempty"`
	ProductIdentifier string          `json:"productIdentifier"`
	TransactionID     string          `json:"transactionId"`
	PurchaseToken     string          `json:"purchaseToken"`
}

// Rejection is the body of a synchronous argument or configuration rejection.
type Rejection struct {
	Message string `json:"message"`
}

// EchoPayload is used by the echo bridge method.
type EchoPayload struct {
	Value string `json:"value"`
}
