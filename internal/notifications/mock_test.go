package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/jackc/pgx/v5"
)

const (
	articleID = "00000000-0000-0000-0000-00000000a001"
	authorID  = "00000000-0000-0000-0000-00000000d001"
	readerA   = "00000000-0000-0000-0000-00000000b001"
	readerB   = "00000000-0000-0000-0000-00000000b002"
	readerC   = "00000000-0000-0000-0000-00000000b003"
	missingID = "00000000-0000-0000-0000-000000000999"
)

// fakeTx records commit and rollback calls. Nested Begin returns a savepoint.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	savepoints []*fakeTx
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	sp := &fakeTx{}
	t.savepoints = append(t.savepoints, sp)
	return sp, nil
}

func (t *fakeTx) Commit(context.Context) error {
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed || t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

// mockRepository implements Repository and TxRepository for testing.
type mockRepository struct {
	mu sync.Mutex

	notifications []domain.Notification
	subs          map[string]domain.PushSubscription
	newsletters   map[string]bool
	deleted       []string

	breaking  []string
	category  map[string][]string
	followers map[string][]string
	digest    []string
	top       []domain.Article
	topSince  time.Time

	insertErr error
	nextID    int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		subs:        make(map[string]domain.PushSubscription),
		newsletters: make(map[string]bool),
		category:    make(map[string][]string),
		followers:   make(map[string][]string),
	}
}

func (m *mockRepository) WithTx(pgx.Tx) TxRepository { return m }

func (m *mockRepository) BreakingNewsRecipients(context.Context) ([]string, error) {
	return m.breaking, nil
}

func (m *mockRepository) CategoryRecipients(_ context.Context, slug string) ([]string, error) {
	return m.category[slug], nil
}

func (m *mockRepository) AuthorFollowers(_ context.Context, id string) ([]string, error) {
	return m.followers[id], nil
}

func (m *mockRepository) InsertNotifications(ctx context.Context, list []domain.Notification) (int, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	return m.CreateNotifications(ctx, list)
}

func (m *mockRepository) CreateNotifications(_ context.Context, list []domain.Notification) (int, error) {
	for _, n := range list {
		m.nextID++
		n.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", m.nextID)
		n.CreatedAt = time.Date(2026, 3, 15, 10, 0, m.nextID, 0, time.UTC)
		m.notifications = append(m.notifications, n)
	}
	return len(list), nil
}

func (m *mockRepository) userNotifications(userID string, unreadOnly bool) []domain.Notification {
	list := make([]domain.Notification, 0)
	for _, n := range m.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list
}

func (m *mockRepository) ListUnread(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	list := m.userNotifications(userID, true)
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *mockRepository) CountUnread(_ context.Context, userID string) (int, error) {
	return len(m.userNotifications(userID, true)), nil
}

func (m *mockRepository) List(_ context.Context, userID string, limit, offset int) ([]domain.Notification, int, error) {
	list := m.userNotifications(userID, false)
	total := len(list)
	if offset >= total {
		return []domain.Notification{}, total, nil
	}
	list = list[offset:]
	if len(list) > limit {
		list = list[:limit]
	}
	return list, total, nil
}

func (m *mockRepository) MarkRead(_ context.Context, userID, id string) (*domain.Notification, error) {
	for i := range m.notifications {
		n := &m.notifications[i]
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			cp := *n
			return &cp, nil
		}
	}
	return nil, ErrNotificationNotFound
}

func (m *mockRepository) MarkAllRead(_ context.Context, userID string) (int, error) {
	updated := 0
	for i := range m.notifications {
		n := &m.notifications[i]
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (m *mockRepository) ListPushSubscriptions(_ context.Context, userIDs []string) ([]domain.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	var subs []domain.PushSubscription
	for _, s := range m.subs {
		if wanted[s.UserID] {
			subs = append(subs, s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Endpoint < subs[j].Endpoint })
	return subs, nil
}

func (m *mockRepository) DeletePushEndpoint(_ context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subs, endpoint)
	m.deleted = append(m.deleted, endpoint)
	return nil
}

func (m *mockRepository) SavePushSubscription(_ context.Context, sub *domain.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	sub.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", m.nextID)
	m.subs[sub.Endpoint] = *sub
	return nil
}

func (m *mockRepository) DeletePushSubscription(_ context.Context, userID, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subs[endpoint]
	if !ok || s.UserID != userID {
		return ErrSubscriptionNotFound
	}
	delete(m.subs, endpoint)
	return nil
}

func (m *mockRepository) ToggleNewsletter(_ context.Context, userID string, _ domain.NewsletterType) (bool, error) {
	m.newsletters[userID] = !m.newsletters[userID]
	return m.newsletters[userID], nil
}

func (m *mockRepository) DigestRecipients(context.Context) ([]string, error) {
	return m.digest, nil
}

func (m *mockRepository) TopArticlesSince(_ context.Context, since time.Time, limit int) ([]domain.Article, error) {
	m.topSince = since
	top := m.top
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (m *mockRepository) addSubscription(userID, endpoint string) {
	m.subs[endpoint] = domain.PushSubscription{
		ID:       "sub-" + endpoint,
		UserID:   userID,
		Endpoint: endpoint,
		P256dh:   "p256dh",
		Auth:     "auth",
	}
}

// mockPusher replays scripted errors per endpoint, then succeeds.
type mockPusher struct {
	mu       sync.Mutex
	errs     map[string][]error
	calls    map[string]int
	messages [][]byte
}

func newMockPusher() *mockPusher {
	return &mockPusher{
		errs:  make(map[string][]error),
		calls: make(map[string]int),
	}
}

func (p *mockPusher) Push(_ context.Context, sub domain.PushSubscription, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[sub.Endpoint]++
	p.messages = append(p.messages, message)
	if errs := p.errs[sub.Endpoint]; len(errs) > 0 {
		p.errs[sub.Endpoint] = errs[1:]
		return errs[0]
	}
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestDeliverer(repo PushStore, pusher Pusher) *Deliverer {
	d := NewDeliverer(DefaultDeliveryConfig(), repo, pusher)
	d.sleep = noSleep
	return d
}

func mustRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

func testArticle() *domain.Article {
	categoryID := "00000000-0000-0000-0000-00000000c001"
	return &domain.Article{
		ID:         articleID,
		AuthorID:   authorID,
		CategoryID: &categoryID,
		Title:      "Запуск нового супутника",
		Status:     domain.ArticleStatusPublished,
		IsBreaking: true,
		Author:     &domain.ArticleAuthor{ID: authorID, FirstName: "Олена", LastName: "Коваль"},
		Category:   &domain.ArticleCategory{ID: categoryID, Name: "технології", Slug: "tehnologii"},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
