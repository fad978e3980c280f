package notifications

import (
	"context"
	"strings"

	"github.com/bissquit/newsroom/internal/domain"
)

// InboxLimit is the number of unread notifications returned by Inbox.
const InboxLimit = 10

// Inbox is the unread part of a reader's notifications.
type Inbox struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// Service provides notifications business logic.
type Service struct {
	repo           Repository
	digest         *Digest
	vapidPublicKey string
}

// NewService creates a new notifications service. An empty vapidPublicKey
// means push is not configured.
func NewService(repo Repository, digest *Digest, vapidPublicKey string) *Service {
	return &Service{
		repo:           repo,
		digest:         digest,
		vapidPublicKey: vapidPublicKey,
	}
}

// Inbox returns the latest unread notifications and the total unread count.
// Admins have an empty inbox.
func (s *Service) Inbox(ctx context.Context, principal domain.Principal) (*Inbox, error) {
	if principal.IsAdmin() {
		return &Inbox{Notifications: []domain.Notification{}}, nil
	}

	list, err := s.repo.ListUnread(ctx, principal.ID, InboxLimit)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountUnread(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	return &Inbox{Notifications: list, UnreadCount: count}, nil
}

// List returns a page of all notifications, newest first.
func (s *Service) List(ctx context.Context, principal domain.Principal, limit, offset int) ([]domain.Notification, int, error) {
	if principal.IsAdmin() {
		return []domain.Notification{}, 0, nil
	}
	return s.repo.List(ctx, principal.ID, limit, offset)
}

// MarkRead marks one of the principal's notifications as read.
func (s *Service) MarkRead(ctx context.Context, principal domain.Principal, id string) (*domain.Notification, error) {
	if principal.IsAdmin() {
		return nil, ErrNoInbox
	}
	return s.repo.MarkRead(ctx, principal.ID, id)
}

// MarkAllRead marks every unread notification of the principal as read and
// returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, principal domain.Principal) (int, error) {
	if principal.IsAdmin() {
		return 0, ErrNoInbox
	}
	return s.repo.MarkAllRead(ctx, principal.ID)
}

// SubscribeInput is a browser push subscription.
type SubscribeInput struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Subscribe registers a push endpoint for the principal.
func (s *Service) Subscribe(ctx context.Context, principal domain.Principal, input SubscribeInput) (*domain.PushSubscription, error) {
	if principal.IsAdmin() {
		return nil, ErrNoInbox
	}
	sub := &domain.PushSubscription{
		UserID:   principal.ID,
		Endpoint: strings.TrimSpace(input.Endpoint),
		P256dh:   input.P256dh,
		Auth:     input.Auth,
	}
	if err := s.repo.SavePushSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe removes one of the principal's push endpoints.
func (s *Service) Unsubscribe(ctx context.Context, principal domain.Principal, endpoint string) error {
	if principal.IsAdmin() {
		return ErrNoInbox
	}
	return s.repo.DeletePushSubscription(ctx, principal.ID, strings.TrimSpace(endpoint))
}

// VAPIDPublicKey returns the application server key browsers subscribe with.
func (s *Service) VAPIDPublicKey() (string, error) {
	if s.vapidPublicKey == "" {
		return "", ErrPushDisabled
	}
	return s.vapidPublicKey, nil
}

// ToggleNewsletter flips the principal's general digest subscription and
// returns the new state.
func (s *Service) ToggleNewsletter(ctx context.Context, principal domain.Principal) (bool, error) {
	if principal.IsAdmin() {
		return false, ErrNoInbox
	}
	return s.repo.ToggleNewsletter(ctx, principal.ID, domain.NewsletterGeneralDigest)
}

// RunDigest runs the daily digest immediately.
func (s *Service) RunDigest(ctx context.Context) (*DigestResult, error) {
	return s.digest.Run(ctx)
}
