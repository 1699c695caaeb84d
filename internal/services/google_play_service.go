package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	androidpublisher "google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"
)

type GooglePlayConfig struct {
	PackageName        string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// GooglePlayService wraps the Play Developer API calls used by the billing
// capability.
type GooglePlayService struct {
	cfg GooglePlayConfig
	svc *androidpublisher.Service
}

// NewGooglePlayService builds the API client. Extra options are appended after
// the credentials, so tests can point it at a local endpoint.
func NewGooglePlayService(ctx context.Context, cfg GooglePlayConfig, opts ...option.ClientOption) (*GooglePlayService, error) {
	cfg.PackageName = strings.TrimSpace(cfg.PackageName)
	if cfg.PackageName == "" {
		return nil, errors.New("GOOGLE_PLAY_PACKAGE_NAME is empty")
	}

	var clientOpts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		data, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsJSON(data))
	case len(opts) == 0:
		return nil, errors.New("GOOGLE_PLAY_SERVICE_ACCOUNT_JSON is empty")
	}
	clientOpts = append(clientOpts, option.WithScopes(androidpublisher.AndroidpublisherScope))
	clientOpts = append(clientOpts, opts...)

	s, err := androidpublisher.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("androidpublisher.NewService: %w", err)
	}

	return &GooglePlayService{cfg: cfg, svc: s}, nil
}

func (s *GooglePlayService) PackageName() string {
	return s.cfg.PackageName
}

// Probe checks that the credentials can read the app's subscription catalog.
func (s *GooglePlayService) Probe(ctx context.Context) error {
	if _, err := s.svc.Monetization.Subscriptions.List(s.cfg.PackageName).
		PageSize(1).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("google monetization.subscriptions.list: %w", err)
	}
	return nil
}

func (s *GooglePlayService) GetSubscription(ctx context.Context, productID string) (*androidpublisher.Subscription, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, errors.New("product_id is required")
	}

	resp, err := s.svc.Monetization.Subscriptions.Get(s.cfg.PackageName, productID).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("google monetization.subscriptions.get: %w", err)
	}
	return resp, nil
}

func (s *GooglePlayService) GetSubscriptionPurchase(ctx context.Context, subscriptionID, token string) (*androidpublisher.SubscriptionPurchase, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	token = strings.TrimSpace(token)
	if subscriptionID == "" || token == "" {
		return nil, errors.New("subscription_id and purchase_token are required")
	}

	resp, err := s.svc.Purchases.Subscriptions.Get(s.cfg.PackageName, subscriptionID, token).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("google subscriptions.get: %w", err)
	}
	return resp, nil
}

func (s *GooglePlayService) AcknowledgeSubscription(ctx context.Context, subscriptionID, token string) error {
	subscriptionID = strings.TrimSpace(subscriptionID)
	token = strings.TrimSpace(token)
	if subscriptionID == "" || token == "" {
		return errors.New("subscription_id and purchase_token are required")
	}

	req := &androidpublisher.SubscriptionPurchasesAcknowledgeRequest{}
	if err := s.svc.Purchases.Subscriptions.Acknowledge(s.cfg.PackageName, subscriptionID, token, req).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("google subscriptions.acknowledge: %w", err)
	}
	return nil
}
