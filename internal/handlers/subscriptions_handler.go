package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"subsBridge/internal/models"
	"subsBridge/internal/services"
)

type SubscriptionsHandler struct {
	Service         *services.SubscriptionsService
	PurchaseTimeout time.Duration
}

const defaultPurchaseTimeout = 10 * time.Minute

func NewSubscriptionsHandler(svc *services.SubscriptionsService, purchaseTimeout time.Duration) *SubscriptionsHandler {
	if purchaseTimeout <= 0 {
		purchaseTimeout = defaultPurchaseTimeout
	}
	return &SubscriptionsHandler{Service: svc, PurchaseTimeout: purchaseTimeout}
}

// SetAPIVerificationDetails handles POST /billing/verification.
func (h *SubscriptionsHandler) SetAPIVerificationDetails(w http.ResponseWriter, r *http.Request) {
	var req models.VerificationConfig
	if err := decodeJSON(r, &req); err != nil {
		writeRejection(w, http.StatusBadRequest, models.RejectMissingParameters)
		return
	}
	if err := h.Service.SetAPIVerificationDetails(req); err != nil {
		writeRejection(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProductDetails handles GET /billing/products/:productIdentifier.
func (h *SubscriptionsHandler) GetProductDetails(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Service.GetProductDetails(r.Context(), getParam(r, "productIdentifier"))
	if err != nil {
		writeRejection(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLatestTransaction handles GET /billing/transactions/latest/:productIdentifier.
func (h *SubscriptionsHandler) GetLatestTransaction(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Service.GetLatestTransaction(r.Context(), getParam(r, "productIdentifier"))
	if err != nil {
		writeRejection(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCurrentEntitlements handles GET /billing/entitlements.
func (h *SubscriptionsHandler) GetCurrentEntitlements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.GetCurrentEntitlements(r.Context()))
}

// PurchaseProduct handles POST /billing/purchase. The request stays open
// until the purchase flow resolves or the purchase timeout elapses.
func (h *SubscriptionsHandler) PurchaseProduct(w http.ResponseWriter, r *http.Request) {
	var req models.PurchaseRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}

	call, err := h.Service.PurchaseProduct(r.Context(), req)
	if err != nil {
		writeRejection(w, http.StatusBadRequest, err.Error())
		return
	}

	timer := time.NewTimer(h.PurchaseTimeout)
	defer timer.Stop()

	select {
	case <-call.Done():
	case <-timer.C:
		if h.Service.AbandonPurchase(call) {
			log.Printf("[BILLING] purchase %s for %q timed out after %s", call.ID, req.ProductIdentifier, h.PurchaseTimeout)
		}
	case <-r.Context().Done():
		if h.Service.AbandonPurchase(call) {
			log.Printf("[BILLING] purchase %s for %q abandoned: %v", call.ID, req.ProductIdentifier, r.Context().Err())
		}
		return
	}
	writeJSON(w, http.StatusOK, call.Result())
}

// ManageSubscriptions handles POST /billing/manage.
func (h *SubscriptionsHandler) ManageSubscriptions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductIdentifier string `json:"productIdentifier"`
		BundleID          string `json:"bundleId"`
		JWT               string `json:"jwt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeRejection(w, http.StatusBadRequest, models.RejectMissingProductID)
		return
	}
	pkg := req.BundleID
	if pkg == "" {
		pkg = req.JWT
	}

	target, err := h.Service.ManageSubscriptions(r.Context(), req.ProductIdentifier, pkg)
	switch {
	case errors.Is(err, services.ErrMissingProductID), errors.Is(err, services.ErrMissingBundleID):
		writeRejection(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Printf("[BILLING] manage subscriptions: %v", err)
		writeRejection(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": target})
}

// Echo handles POST /billing/echo.
func (h *SubscriptionsHandler) Echo(w http.ResponseWriter, r *http.Request) {
	var req models.EchoPayload
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, models.EchoPayload{Value: h.Service.Echo(req.Value)})
}
