package models

// Entitlement is a normalized access grant derived from one purchase record.
type Entitlement struct {
	ProductIdentifier string  `json:"productIdentifier"`
	ExpiryDate        *string `json:"expiryDate"`
	OriginalStartDate string  `json:"originalStartDate"`
	OriginalID        string  `json:"originalId"`
	TransactionID     string  `json:"transactionId"`
	PurchaseToken     string  `json:"purchaseToken"`
}
