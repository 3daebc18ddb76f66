/*
webpush.go - Web Push delivery transport

PURPOSE:
  Delivers dispatcher messages to a recipient's browser subscriptions via
  the Web Push protocol. One recipient may hold several subscriptions
  (one per browser); the transport pushes to all of them and prunes the
  ones the push service reports as gone.
*/
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// =============================================================================
// SUBSCRIPTION STORE - The consumed persistence boundary
// =============================================================================

// PushSubscription is one browser's push endpoint for a recipient.
type PushSubscription struct {
	ReceiverID string
	Endpoint   string
	P256DH     string
	Auth       string
}

// SubscriptionStore resolves recipients to their push subscriptions and
// prunes dead endpoints.
type SubscriptionStore interface {
	SubscriptionsFor(ctx context.Context, receiverID string) ([]PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// =============================================================================
// TRANSPORT
// =============================================================================

// VAPIDConfig carries the server's Web Push signing identity.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        int
}

// WebPushTransport sends messages over the Web Push protocol.
type WebPushTransport struct {
	store  SubscriptionStore
	vapid  VAPIDConfig
	logger *slog.Logger
}

// NewWebPushTransport builds a transport over the subscription store.
func NewWebPushTransport(store SubscriptionStore, vapid VAPIDConfig, logger *slog.Logger) *WebPushTransport {
	if logger == nil {
		logger = slog.Default()
	}
	if vapid.TTL <= 0 {
		vapid.TTL = 60
	}
	return &WebPushTransport{store: store, vapid: vapid, logger: logger}
}

// pushPayload is the JSON body shipped to the service worker.
type pushPayload struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Domain   string   `json:"domain"`
	Priority Priority `json:"priority"`
}

// Send pushes the message to every subscription the recipient holds.
// Endpoints the push service reports gone (404/410) are deleted from the
// store. Per-endpoint failures are collected; any surviving endpoint
// still receives its push.
func (t *WebPushTransport) Send(ctx context.Context, msg Message) error {
	subs, err := t.store.SubscriptionsFor(ctx, msg.ReceiverID)
	if err != nil {
		return fmt.Errorf("load subscriptions for %s: %w", msg.ReceiverID, err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushPayload{
		ID:       msg.ID,
		Title:    msg.Title,
		Body:     msg.Body,
		Domain:   msg.Domain,
		Priority: msg.Priority,
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	var errs []error
	for _, sub := range subs {
		if err := t.push(payload, sub); err != nil {
			if errors.Is(err, errSubscriptionGone) {
				t.logger.Info("pruning expired push subscription",
					"receiver", sub.ReceiverID, "endpoint", sub.Endpoint)
				if delErr := t.store.DeleteSubscription(ctx, sub.Endpoint); delErr != nil {
					errs = append(errs, fmt.Errorf("prune %s: %w", sub.Endpoint, delErr))
				}
				continue
			}
			errs = append(errs, fmt.Errorf("push to %s: %w", sub.Endpoint, err))
		}
	}
	return errors.Join(errs...)
}

var errSubscriptionGone = errors.New("subscription gone")

func (t *WebPushTransport) push(payload []byte, sub PushSubscription) error {
	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      t.vapid.Subject,
		VAPIDPublicKey:  t.vapid.PublicKey,
		VAPIDPrivateKey: t.vapid.PrivateKey,
		TTL:             t.vapid.TTL,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return errSubscriptionGone
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}
