package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"subsBridge/internal/billing/capability"
	"subsBridge/internal/billing/playstore"
	"subsBridge/internal/models"
)

// PurchaseUpdater feeds purchase completions into the billing capability.
type PurchaseUpdater interface {
	HandlePurchaseUpdate(ctx context.Context, code capability.ResponseCode, refs []playstore.PurchaseRef) error
	Refresh(ctx context.Context, ref playstore.PurchaseRef) (models.RawPurchaseRecord, error)
}

type GoogleBillingHandler struct {
	Updater     PurchaseUpdater
	PackageName string
}

func NewGoogleBillingHandler(updater PurchaseUpdater, packageName string) *GoogleBillingHandler {
	return &GoogleBillingHandler{Updater: updater, PackageName: packageName}
}

// PurchasesUpdated handles POST /billing/purchases-updated, sent by the app
// shell when the store's purchase sheet closes.
func (h *GoogleBillingHandler) PurchasesUpdated(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResponseCode *int                    `json:"responseCode"`
		Purchases    []playstore.PurchaseRef `json:"purchases"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ResponseCode == nil {
		http.Error(w, "responseCode is required", http.StatusBadRequest)
		return
	}
	code := capability.ResponseCode(*req.ResponseCode)
	for i := range req.Purchases {
		req.Purchases[i].ProductID = strings.TrimSpace(req.Purchases[i].ProductID)
		req.Purchases[i].PurchaseToken = strings.TrimSpace(req.Purchases[i].PurchaseToken)
	}
	log.Printf("[BILLING] purchases updated code=%s purchases=%d", code, len(req.Purchases))

	if err := h.Updater.HandlePurchaseUpdate(r.Context(), code, req.Purchases); err != nil {
		log.Printf("[BILLING] purchases updated: verify failed: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Notifications handles POST /billing/google/notifications, the Pub/Sub push
// endpoint for real-time developer notifications.
func (h *GoogleBillingHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	var push struct {
		Message struct {
			Data      string `json:"data"`
			MessageID string `json:"messageId,omitempty"`
		} `json:"message"`
		Subscription string `json:"subscription,omitempty"`
	}
	if err := decodeJSON(r, &push); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if push.Message.Data == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	raw, err := base64.StdEncoding.DecodeString(push.Message.Data)
	if err != nil {
		http.Error(w, "decode pubsub data: "+err.Error(), http.StatusBadRequest)
		return
	}

	var notif struct {
		Version                  string `json:"version,omitempty"`
		PackageName              string `json:"packageName,omitempty"`
		SubscriptionNotification *struct {
			NotificationType int    `json:"notificationType"`
			PurchaseToken    string `json:"purchaseToken"`
			SubscriptionID   string `json:"subscriptionId"`
		} `json:"subscriptionNotification,omitempty"`
		TestNotification *struct {
			Version string `json:"version"`
		} `json:"testNotification,omitempty"`
	}
	if err := json.Unmarshal(raw, &notif); err != nil {
		http.Error(w, "unmarshal rtdn: "+err.Error(), http.StatusBadRequest)
		return
	}

	if notif.TestNotification != nil {
		log.Printf("[BILLING] rtdn test notification version=%s", notif.TestNotification.Version)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if h.PackageName != "" && notif.PackageName != "" && notif.PackageName != h.PackageName {
		log.Printf("[BILLING] rtdn for foreign package %q ignored", notif.PackageName)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	sn := notif.SubscriptionNotification
	if sn == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ref := playstore.PurchaseRef{
		ProductID:     strings.TrimSpace(sn.SubscriptionID),
		PurchaseToken: strings.TrimSpace(sn.PurchaseToken),
	}
	if ref.ProductID == "" || ref.PurchaseToken == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	rec, err := h.Updater.Refresh(r.Context(), ref)
	if err != nil {
		// Acked anyway; the next notification for this token refreshes it.
		log.Printf("[BILLING] rtdn type=%d product=%q refresh failed: %v", sn.NotificationType, ref.ProductID, err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	log.Printf("[BILLING] rtdn type=%d order=%q state=%s", sn.NotificationType, rec.OrderID, rec.PurchaseState)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
