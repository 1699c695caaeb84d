// Package notify delivers out-of-band purchase events to the app shell.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"firebase.google.com/go/messaging"
)

// Notifier delivers an event with a JSON payload.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any) error
}

// Sender sends a Firebase message. *messaging.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Logger is the minimal logger used by notifiers.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// FCM publishes events as data messages to a Firebase topic.
type FCM struct {
	client Sender
	topic  string
	logger Logger
}

// NewFCM constructs a topic publisher.
func NewFCM(client Sender, topic string, logger Logger) *FCM {
	return &FCM{client: client, topic: topic, logger: logger}
}

func (f *FCM) Notify(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	message := &messaging.Message{
		Topic: f.topic,
		Data: map[string]string{
			"event":   event,
			"payload": string(data),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	response, err := f.client.Send(ctx, message)
	if err != nil {
		f.logger.Errorf("fcm send %s to %s failed: %v", event, f.topic, err)
		return err
	}
	f.logger.Infof("fcm send %s to %s: %s", event, f.topic, response)
	return nil
}

// Multi fans an event out to every notifier. It succeeds when at least one
// notifier delivered the event.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event string, payload any) error {
	var errs []error
	delivered := false
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event, payload); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered || len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
