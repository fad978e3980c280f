// Package webpush delivers notifications to browsers through the Web Push
// protocol with VAPID authentication.
package webpush

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/notifications"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
)

const (
	defaultTimeout = 10 * time.Second
	defaultTTL     = 24 * time.Hour
)

// Config holds Web Push sender configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subject is a mailto: address or https URL the push service can contact.
	Subject string
	TTL     time.Duration
	Timeout time.Duration
}

// Sender implements notifications.Pusher.
type Sender struct {
	config     Config
	httpClient webpush.HTTPClient
}

// NewSender creates a new Web Push sender.
func NewSender(config Config) (*Sender, error) {
	if config.VAPIDPublicKey == "" || config.VAPIDPrivateKey == "" {
		return nil, fmt.Errorf("webpush: VAPID key pair is required")
	}
	if config.Subject == "" {
		return nil, fmt.Errorf("webpush: subject is required")
	}
	if config.TTL <= 0 {
		config.TTL = defaultTTL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Push encrypts message for sub and posts it to the subscription endpoint.
func (s *Sender) Push(ctx context.Context, sub domain.PushSubscription, message []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, message,
		&webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		},
		&webpush.Options{
			HTTPClient:      s.httpClient,
			Subscriber:      s.config.Subject,
			TTL:             int(s.config.TTL.Seconds()),
			Urgency:         webpush.UrgencyNormal,
			VAPIDPublicKey:  s.config.VAPIDPublicKey,
			VAPIDPrivateKey: s.config.VAPIDPrivateKey,
		},
	)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		// Only transport failures are worth retrying; anything else is a
		// malformed subscription or key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) && ctx.Err() == nil {
			return notifications.NewRetryableError(fmt.Errorf("send push: %w", err))
		}
		return notifications.NewNonRetryableError(fmt.Errorf("send push: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(ctx, resp, sub)
}

func (s *Sender) handleResponse(ctx context.Context, resp *http.Response, sub domain.PushSubscription) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		ctxlog.FromContext(ctx).Debug("push message sent", "subscription_id", sub.ID)
		return nil

	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: status %d", notifications.ErrEndpointGone, resp.StatusCode)

	case http.StatusTooManyRequests:
		return notifications.NewRetryableError(fmt.Errorf("push service rate limited"))

	default:
		if resp.StatusCode >= 500 {
			return notifications.NewRetryableError(
				fmt.Errorf("push service error %d: %s", resp.StatusCode, string(body)))
		}
		return notifications.NewNonRetryableError(
			fmt.Errorf("push rejected %d: %s", resp.StatusCode, string(body)))
	}
}
