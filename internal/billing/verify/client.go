// Package verify resolves a transaction's canonical expiry timestamp from
// the operator's verification endpoint.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"subsBridge/internal/billing/timeutil"
	"subsBridge/internal/metrics"
	"subsBridge/internal/models"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrNotConfigured is returned when no verification endpoint was set.
	ErrNotConfigured = errors.New("verify: verification details are not configured")
	// ErrMissingExpiry is returned when the answer carries no expiryDate.
	ErrMissingExpiry = errors.New("verify: response has no expiryDate")
)

// Config configures a Client.
type Config struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Location is used to interpret and render expiry timestamps.
	// Defaults to timeutil.Location().
	Location *time.Location
}

// Client performs the verification round trip.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	location   *time.Location
}

// NewClient builds a Client with defaults applied.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: client,
		timeout:    timeout,
		logger:     logger,
		location:   cfg.Location,
	}
}

type verifyRequest struct {
	TransactionID string `json:"transaction_id"`
}

type verifyResponse struct {
	ExpiryDate *string `json:"expiryDate"`
}

// ResolveExpiry posts the transaction id and returns the expiry timestamp
// formatted as yyyy-MM-dd HH:mm:ss.
func (c *Client) ResolveExpiry(ctx context.Context, transactionID string, cfg models.VerificationConfig) (expiry string, err error) {
	if cfg.Endpoint == "" || cfg.Credential == "" {
		return "", ErrNotConfigured
	}
	logger := c.logger.With("op", "ResolveExpiry", "transaction_id", transactionID)

	started := time.Now()
	defer func() {
		metrics.RecordVerification(err == nil, time.Since(started))
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(verifyRequest{TransactionID: transactionID})
	if err != nil {
		return "", fmt.Errorf("encode verification request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Authorization", "Bearer "+cfg.Credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("verification request failed", "err", err)
		return "", fmt.Errorf("verification request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	logger.Debug("verification raw", "status", resp.Status, "body", trim(string(b), 500))

	if resp.StatusCode != http.StatusOK {
		return "", &Error{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(b)}
	}

	var out verifyResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("decode verification response: %w", err)
	}
	if out.ExpiryDate == nil || strings.TrimSpace(*out.ExpiryDate) == "" {
		return "", ErrMissingExpiry
	}

	loc := c.location
	if loc == nil {
		loc = timeutil.Location()
	}
	t, err := time.ParseInLocation(timeutil.DateTimeLayout, strings.TrimSpace(*out.ExpiryDate), loc)
	if err != nil {
		return "", fmt.Errorf("parse expiryDate: %w", err)
	}
	expiry = t.In(loc).Format(timeutil.DateTimeLayout)
	logger.Info("expiry resolved", "expiry", expiry)
	return expiry, nil
}

// Error is returned for a non-200 verification answer.
type Error struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	bt := strings.TrimSpace(e.Body)
	if bt == "" {
		return fmt.Sprintf("verification error: %s", e.Status)
	}
	return fmt.Sprintf("verification error: %s: %s", e.Status, bt)
}

func trim(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
