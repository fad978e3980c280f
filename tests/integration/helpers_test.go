//go:build integration

package integration

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bissquit/newsroom/internal/testutil"
	"github.com/stretchr/testify/require"
)

// createAuthor creates an author as admin and returns its ID.
func createAuthor(t *testing.T, admin *testutil.Client, first, last string) string {
	t.Helper()

	resp, err := admin.POST("/api/v1/admin/authors", map[string]string{
		"first_name": first,
		"last_name":  last,
		"bio":        "Staff writer",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var author struct {
		ID string `json:"id"`
	}
	testutil.DecodeData(t, resp, &author)
	return author.ID
}

// createCategory creates a category with a unique name and returns its ID and slug.
func createCategory(t *testing.T, admin *testutil.Client, name string) (id, slug string) {
	t.Helper()

	resp, err := admin.POST("/api/v1/admin/categories", map[string]any{
		"name": name + " " + testutil.RandomSlug("c"),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var category struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}
	testutil.DecodeData(t, resp, &category)
	return category.ID, category.Slug
}

type articleOption func(map[string]any)

func withCategory(id string) articleOption {
	return func(m map[string]any) { m["category_id"] = id }
}

func withStatus(status string) articleOption {
	return func(m map[string]any) { m["status"] = status }
}

func breaking() articleOption {
	return func(m map[string]any) { m["is_breaking"] = true }
}

func exclusive() articleOption {
	return func(m map[string]any) { m["is_exclusive"] = true }
}

func withKeywords(words ...string) articleOption {
	return func(m map[string]any) { m["keywords"] = words }
}

// articleResult is the admin create/update response.
type articleResult struct {
	Article struct {
		ID          string  `json:"id"`
		Status      string  `json:"status"`
		PublishedAt *string `json:"published_at"`
	} `json:"article"`
	Dispatch *struct {
		Handlers []struct {
			Handler string `json:"handler"`
			Created int    `json:"created"`
			Error   string `json:"error"`
		} `json:"handlers"`
	} `json:"dispatch"`
}

// createArticle creates a published article by default.
func createArticle(t *testing.T, admin *testutil.Client, authorID, title string, opts ...articleOption) articleResult {
	t.Helper()

	payload := map[string]any{
		"title":     title,
		"content":   "Body of " + title,
		"author_id": authorID,
		"status":    "published",
	}
	for _, opt := range opts {
		opt(payload)
	}

	resp, err := admin.POST("/api/v1/admin/articles", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result articleResult
	testutil.DecodeData(t, resp, &result)
	return result
}

// subscribeToPlan switches the reader to the named plan.
func subscribeToPlan(t *testing.T, reader *testutil.Client, name string) {
	t.Helper()

	resp, err := reader.GET("/api/v1/subscriptions")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var plans []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	testutil.DecodeData(t, resp, &plans)

	var planID string
	for _, p := range plans {
		if p.Name == name {
			planID = p.ID
		}
	}
	require.NotEmpty(t, planID, "plan %q not found", name)

	resp, err = reader.POST("/api/v1/subscriptions/subscribe", map[string]string{"plan_id": planID})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

// setPreferences replaces the reader's preferences.
func setPreferences(t *testing.T, reader *testutil.Client, prefs map[string]any) {
	t.Helper()

	resp, err := reader.PUT("/api/v1/me/preferences", prefs)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

// inbox is the GET /notifications payload.
type inbox struct {
	Notifications []struct {
		ID        string  `json:"id"`
		ArticleID *string `json:"article_id"`
		Type      string  `json:"type"`
		Title     string  `json:"title"`
		Message   string  `json:"message"`
	} `json:"notifications"`
	UnreadCount int `json:"unread_count"`
}

func getInbox(t *testing.T, reader *testutil.Client) inbox {
	t.Helper()

	resp, err := reader.GET("/api/v1/notifications")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result inbox
	testutil.DecodeData(t, resp, &result)
	return result
}

// pushRecorder is a fake push service. Requests to /gone/* answer 410 like an
// expired browser subscription; everything else is accepted.
type pushRecorder struct {
	*httptest.Server
	mu       sync.Mutex
	received map[string]int
}

func newPushRecorder() *pushRecorder {
	p := &pushRecorder{received: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/gone/", func(w http.ResponseWriter, r *http.Request) {
		p.record(r.URL.Path)
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		p.record(r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	})
	p.Server = httptest.NewServer(mux)
	return p
}

func (p *pushRecorder) record(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received[path]++
}

// Count returns how many pushes reached path.
func (p *pushRecorder) Count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received[path]
}

// browserSubscription builds the request body a browser sends after
// PushManager.subscribe, pointing at the fake push service.
func browserSubscription(t *testing.T, path string) map[string]any {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)

	return map[string]any{
		"endpoint": pushService.URL + path,
		"keys": map[string]string{
			"p256dh": base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			"auth":   base64.RawURLEncoding.EncodeToString(secret),
		},
	}
}
