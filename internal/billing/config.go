package billing

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"subsBridge/internal/billing/timeutil"
)

const (
	defaultVerificationTimeout = 10 * time.Second
	defaultPurchaseTimeout     = 10 * time.Minute
	defaultAckTimeout          = 30 * time.Second
	defaultCallTimeout         = 15 * time.Second
	defaultDispatchQueueSize   = 64
)

// BillingConfig holds runtime configuration for the billing module.
type BillingConfig struct {
	VerificationTimeout time.Duration
	PurchaseTimeout     time.Duration
	AckTimeout          time.Duration
	CallTimeout         time.Duration
	DispatchQueueSize   int
	Location            *time.Location
}

// LoadBillingConfig reads configuration from environment variables and applies defaults.
func LoadBillingConfig() (BillingConfig, error) {
	cfg := BillingConfig{
		VerificationTimeout: defaultVerificationTimeout,
		PurchaseTimeout:     defaultPurchaseTimeout,
		AckTimeout:          defaultAckTimeout,
		CallTimeout:         defaultCallTimeout,
		DispatchQueueSize:   defaultDispatchQueueSize,
		Location:            time.UTC,
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"VERIFICATION_TIMEOUT_SECONDS", &cfg.VerificationTimeout},
		{"PURCHASE_TIMEOUT_SECONDS", &cfg.PurchaseTimeout},
		{"ACK_TIMEOUT_SECONDS", &cfg.AckTimeout},
		{"CAPABILITY_CALL_TIMEOUT_SECONDS", &cfg.CallTimeout},
	}
	for _, d := range durations {
		v, err := readIntEnv(d.name)
		if err != nil {
			return BillingConfig{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
		if v == nil {
			continue
		}
		if *v <= 0 {
			return BillingConfig{}, fmt.Errorf("%s must be positive", d.name)
		}
		*d.dst = time.Duration(*v) * time.Second
	}

	if v, err := readIntEnv("DISPATCH_QUEUE_SIZE"); err != nil {
		return BillingConfig{}, fmt.Errorf("parse DISPATCH_QUEUE_SIZE: %w", err)
	} else if v != nil {
		if *v <= 0 {
			return BillingConfig{}, fmt.Errorf("DISPATCH_QUEUE_SIZE must be positive")
		}
		cfg.DispatchQueueSize = *v
	}

	loc, err := timeutil.LoadLocation(os.Getenv("BILLING_TIME_ZONE"))
	if err != nil {
		return BillingConfig{}, fmt.Errorf("parse BILLING_TIME_ZONE: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
