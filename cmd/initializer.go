package main

import (
	"log"

	"subsBridge/internal/billing"
	"subsBridge/internal/handlers"
	"subsBridge/internal/services"
	"subsBridge/utils"
)

type application struct {
	errorLog             *log.Logger
	infoLog              *log.Logger
	billing              *billing.Module
	tokens               *utils.Manager
	subscriptionsService *services.SubscriptionsService
	subscriptionsHandler *handlers.SubscriptionsHandler
	googleBillingHandler *handlers.GoogleBillingHandler
}

func initializeApp(module *billing.Module, packageName string, tokens *utils.Manager, errorLog, infoLog *log.Logger) *application {
	// Services
	subscriptionsService := &services.SubscriptionsService{
		Capability:  module.Capability,
		Gate:        module.Guard,
		Purchaser:   module.Correlator,
		Reconciler:  module.Reconciler,
		Opener:      module.Hub,
		Logger:      newStdLogger(infoLog, errorLog),
		CallTimeout: module.Config.CallTimeout,
	}

	// Handlers
	subscriptionsHandler := handlers.NewSubscriptionsHandler(subscriptionsService, module.Config.PurchaseTimeout)
	googleBillingHandler := handlers.NewGoogleBillingHandler(module.Capability, packageName)

	return &application{
		errorLog:             errorLog,
		infoLog:              infoLog,
		billing:              module,
		tokens:               tokens,
		subscriptionsService: subscriptionsService,
		subscriptionsHandler: subscriptionsHandler,
		googleBillingHandler: googleBillingHandler,
	}
}
