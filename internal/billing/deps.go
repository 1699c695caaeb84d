package billing

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"subsBridge/internal/billing/notify"
	"subsBridge/internal/billing/playstore"
)

// Logger provides minimal logging required by the billing module.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// BillingDeps groups external dependencies needed by the billing module.
type BillingDeps struct {
	RDB        *redis.Client
	Publisher  playstore.Publisher
	Messaging  notify.Sender
	FCMTopic   string
	RegionCode string
	Logger     Logger
	Slog       *slog.Logger
	Config     BillingConfig
	HTTPClient *http.Client
	module     *Module
}

// Validate ensures required dependencies are provided.
func (d *BillingDeps) Validate() error {
	if d.RDB == nil {
		return errors.New("billing deps: RDB is required")
	}
	if d.Publisher == nil {
		return errors.New("billing deps: Publisher is required")
	}
	if d.Logger == nil {
		return errors.New("billing deps: Logger is required")
	}
	if d.Messaging != nil && d.FCMTopic == "" {
		return errors.New("billing deps: FCMTopic is required with Messaging")
	}
	if d.HTTPClient == nil {
		d.HTTPClient = http.DefaultClient
	}
	if d.Slog == nil {
		d.Slog = slog.Default()
	}
	return nil
}
