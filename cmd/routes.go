package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	jsonMiddleware := standardMiddleware.Append(makeResponseJSON)
	authMiddleware := jsonMiddleware.Append(app.bridgeAuth)

	mux := pat.New()

	// Bridge operations
	mux.Post("/billing/verification", authMiddleware.ThenFunc(app.subscriptionsHandler.SetAPIVerificationDetails))
	mux.Get("/billing/products/:productIdentifier", authMiddleware.ThenFunc(app.subscriptionsHandler.GetProductDetails))
	mux.Get("/billing/transactions/latest/:productIdentifier", authMiddleware.ThenFunc(app.subscriptionsHandler.GetLatestTransaction))
	mux.Get("/billing/entitlements", authMiddleware.ThenFunc(app.subscriptionsHandler.GetCurrentEntitlements))
	mux.Post("/billing/purchase", authMiddleware.ThenFunc(app.subscriptionsHandler.PurchaseProduct))
	mux.Post("/billing/manage", authMiddleware.ThenFunc(app.subscriptionsHandler.ManageSubscriptions))
	mux.Post("/billing/echo", authMiddleware.ThenFunc(app.subscriptionsHandler.Echo))

	// App shell and Google Play callbacks
	mux.Post("/billing/purchases-updated", authMiddleware.ThenFunc(app.googleBillingHandler.PurchasesUpdated))
	mux.Post("/billing/google/notifications", jsonMiddleware.ThenFunc(app.googleBillingHandler.Notifications))

	// App shell socket: flow launches, navigation and ANDROID-PURCHASE-RESPONSE
	mux.Get("/billing/ws", standardMiddleware.Append(app.bridgeAuth).ThenFunc(app.billing.Hub.ServeWS))

	mux.Get("/metrics", promhttp.Handler())

	return mux
}
