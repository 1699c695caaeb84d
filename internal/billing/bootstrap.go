package billing

import (
	"context"

	"subsBridge/internal/billing/capability"
	"subsBridge/internal/billing/correlator"
	"subsBridge/internal/billing/entitlements"
	"subsBridge/internal/billing/guard"
	"subsBridge/internal/billing/notify"
	"subsBridge/internal/billing/playstore"
	"subsBridge/internal/billing/timeutil"
	"subsBridge/internal/billing/verify"
	"subsBridge/internal/billing/ws"
)

// Module holds the wired billing components.
type Module struct {
	Config     BillingConfig
	Dispatcher *capability.Dispatcher
	Guard      *guard.Guard
	Hub        *ws.Hub
	Store      *playstore.RedisStore
	Capability *playstore.Client
	Correlator *correlator.Correlator
	Verifier   *verify.Client
	Reconciler *entitlements.Reconciler
	Notifier   notify.Notifier
}

func ensureModule(deps *BillingDeps) (*Module, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if deps.module != nil {
		return deps.module, nil
	}

	timeutil.SetLocation(deps.Config.Location)

	dispatcher := capability.NewDispatcher(deps.Config.DispatchQueueSize, deps.Logger)
	g := guard.New(deps.Logger)
	hub := ws.NewHub(deps.Logger)
	store := playstore.NewRedisStore(deps.RDB, deps.Publisher.PackageName())

	client := playstore.New(playstore.Config{
		Publisher:  deps.Publisher,
		Launcher:   hub,
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     deps.Logger,
		RegionCode: deps.RegionCode,
	})

	notifiers := notify.Multi{hub}
	if deps.Messaging != nil {
		notifiers = append(notifiers, notify.NewFCM(deps.Messaging, deps.FCMTopic, deps.Logger))
	}

	corr := correlator.New(correlator.Config{
		Capability:  client,
		Gate:        g,
		Notifier:    notifiers,
		Logger:      deps.Logger,
		CallTimeout: deps.Config.CallTimeout,
		AckTimeout:  deps.Config.AckTimeout,
	})

	verifier := verify.NewClient(verify.Config{
		Timeout:    deps.Config.VerificationTimeout,
		HTTPClient: deps.HTTPClient,
		Logger:     deps.Slog,
		Location:   deps.Config.Location,
	})

	deps.module = &Module{
		Config:     deps.Config,
		Dispatcher: dispatcher,
		Guard:      g,
		Hub:        hub,
		Store:      store,
		Capability: client,
		Correlator: corr,
		Verifier:   verifier,
		Reconciler: entitlements.NewReconciler(verifier, deps.Logger),
		Notifier:   notifiers,
	}
	return deps.module, nil
}

// StartBilling wires the module and starts the capability connection.
func StartBilling(ctx context.Context, deps *BillingDeps) (*Module, error) {
	module, err := ensureModule(deps)
	if err != nil {
		return nil, err
	}
	module.Capability.StartConnection(ctx, module.Guard)
	return module, nil
}

// Close reports the disconnect and stops the dispatcher.
func (m *Module) Close() {
	m.Capability.EndConnection()
	m.Dispatcher.Flush()
	m.Dispatcher.Close()
}
