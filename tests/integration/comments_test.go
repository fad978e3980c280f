//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/bissquit/newsroom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commentBody struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Text     string `json:"text"`
	Status   string `json:"status"`
}

func TestComments_Lifecycle(t *testing.T) {
	admin := newAdminClient(t)
	authorID := createAuthor(t, admin, "Studs", "Terkel")
	articleID := createArticle(t, admin, authorID, "Working").Article.ID

	author, authorUserID := newReaderClient(t)
	stranger, _ := newReaderClient(t)
	anonymous := newTestClient(t)

	resp, err := author.POST("/api/v1/articles/"+articleID+"/comments", map[string]string{
		"text": "<b>Great</b> piece",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var comment commentBody
	testutil.DecodeData(t, resp, &comment)
	assert.Equal(t, authorUserID, comment.UserID)
	assert.Equal(t, "Great piece", comment.Text)
	assert.Equal(t, "active", comment.Status)
	assert.NotEmpty(t, comment.Username)

	t.Run("public listing", func(t *testing.T) {
		anonymous.SetT(t)
		resp, err := anonymous.GET("/api/v1/articles/" + articleID + "/comments")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var list struct {
			Comments []commentBody `json:"comments"`
			Total    int           `json:"total"`
		}
		testutil.DecodeData(t, resp, &list)
		require.Len(t, list.Comments, 1)
		assert.Equal(t, comment.ID, list.Comments[0].ID)
	})

	t.Run("anonymous readers cannot comment", func(t *testing.T) {
		anonymous.SetT(t)
		resp, err := anonymous.POST("/api/v1/articles/"+articleID+"/comments", map[string]string{"text": "hi"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("only the owner edits", func(t *testing.T) {
		stranger.SetT(t)
		resp, err := stranger.PUT("/api/v1/comments/"+comment.ID, map[string]string{"text": "hijacked"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()

		author.SetT(t)
		resp, err = author.PUT("/api/v1/comments/"+comment.ID, map[string]string{"text": "Great piece, edited"})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated commentBody
		testutil.DecodeData(t, resp, &updated)
		assert.Equal(t, "Great piece, edited", updated.Text)
	})

	t.Run("hidden comments disappear from the public view", func(t *testing.T) {
		admin.SetT(t)
		resp, err := admin.PUT("/api/v1/admin/comments/"+comment.ID+"/status", map[string]string{"status": "hidden"})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		anonymous.SetT(t)
		resp, err = anonymous.GET("/api/v1/comments/" + comment.ID)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		_ = resp.Body.Close()

		admin.SetT(t)
		resp, err = admin.GET("/api/v1/admin/comments?status=hidden&article_id=" + articleID)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var list struct {
			Comments []commentBody `json:"comments"`
		}
		testutil.DecodeData(t, resp, &list)
		require.Len(t, list.Comments, 1)
		assert.Equal(t, "hidden", list.Comments[0].Status)
	})

	t.Run("admin deletes any comment", func(t *testing.T) {
		admin.SetT(t)
		resp, err := admin.DELETE("/api/v1/admin/comments/" + comment.ID)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestComments_Validation(t *testing.T) {
	admin := newAdminClient(t)
	authorID := createAuthor(t, admin, "Joan", "Didion")
	draftID := createArticle(t, admin, authorID, "Slouching", withStatus("draft")).Article.ID
	publishedID := createArticle(t, admin, authorID, "The white album").Article.ID

	reader, _ := newReaderClient(t)

	tests := []struct {
		name       string
		articleID  string
		text       string
		wantStatus int
	}{
		{"draft article", draftID, "hello", http.StatusNotFound},
		{"markup only", publishedID, "<script></script>", http.StatusBadRequest},
		{"missing text", publishedID, "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader.SetT(t)
			resp, err := reader.POST("/api/v1/articles/"+tt.articleID+"/comments", map[string]string{"text": tt.text})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}

	t.Run("admins do not comment", func(t *testing.T) {
		admin.SetT(t)
		resp, err := admin.POST("/api/v1/articles/"+publishedID+"/comments", map[string]string{"text": "official"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()
	})
}
