package models

// Purchase flow messages delivered to the caller or the notification channel.
const (
	MessageNoPendingPurchase    = "No pending purchase call to resolve"
	MessagePurchaseCancelled    = "Purchase cancelled by user"
	MessagePurchaseAcknowledged = "Purchase successful & acknowledged"
	MessagePurchaseNoAck        = "Purchase successful (no ack needed)"
	MessagePurchaseInProgress   = "Another purchase is already in progress"
	MessagePurchaseTimedOut     = "Purchase flow timed out"
	MessageProductLookupFailed  = "Failed to open native popover"
)

// PurchaseEvent is the name of the out-of-band purchase notification.
const PurchaseEvent = "ANDROID-PURCHASE-RESPONSE"

// PurchaseRequest carries the arguments of a purchase flow.
type PurchaseRequest struct {
	ProductIdentifier    string  `json:"productIdentifier"`
	AccountID            *string `json:"accountId,omitempty"`
	AcknowledgePurchases *bool   `json:"acknowledgePurchases,omitempty"`
}

// Acknowledge returns the effective acknowledgment flag, true when unset.
func (r PurchaseRequest) Acknowledge() bool {
	if r.AcknowledgePurchases == nil {
		return true
	}
	return *r.AcknowledgePurchases
}

// PurchaseResult is the terminal payload of a purchase flow.
type PurchaseResult struct {
	Successful    bool     `json:"successful"`
	Message       string   `json:"message"`
	PurchaseToken string   `json:"purchaseToken,omitempty"`
	OrderID       string   `json:"orderId,omitempty"`
	PackageName   string   `json:"packageName,omitempty"`
	Signature     string   `json:"signature,omitempty"`
	PurchaseDate  string   `json:"purchaseDate,omitempty"`
	ProductIDs    []string `json:"productIds,omitempty"`
	OriginalJSON  string   `json:"originalJson,omitempty"`

	// ResponseCode is set when the purchase was rejected before a flow
	// started because the billing client is not ready (503 or 500).
	ResponseCode *int `json:"responseCode,omitempty"`
	// BillingResponseCode carries the store result code for failures that
	// originate from the billing capability.
	BillingResponseCode *int `json:"billingResponseCode,omitempty"`
}

// FailedPurchase builds an unsuccessful result with the given message.
func FailedPurchase(message string) PurchaseResult {
	return PurchaseResult{Successful: false, Message: message}
}
