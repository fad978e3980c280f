package comments

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	articleID = "00000000-0000-0000-0000-00000000a001"
	authorID  = "00000000-0000-0000-0000-00000000b001"
	otherID   = "00000000-0000-0000-0000-00000000b002"
	missingID = "00000000-0000-0000-0000-000000000999"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	articles map[string]bool
	comments map[string]*domain.Comment
	nextID   int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		articles: map[string]bool{articleID: true},
		comments: make(map[string]*domain.Comment),
	}
}

func (m *mockRepository) ArticleExists(_ context.Context, id string) (bool, error) {
	return m.articles[id], nil
}

func (m *mockRepository) List(_ context.Context, filter Filter) ([]domain.Comment, int, error) {
	list := make([]domain.Comment, 0)
	for _, c := range m.comments {
		if filter.ArticleID != "" && c.ArticleID != filter.ArticleID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		list = append(list, *c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })

	total := len(list)
	if filter.Offset >= total {
		return []domain.Comment{}, total, nil
	}
	list = list[filter.Offset:]
	if len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, total, nil
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	if c, ok := m.comments[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, ErrCommentNotFound
}

func (m *mockRepository) Create(_ context.Context, comment *domain.Comment) error {
	m.nextID++
	comment.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", m.nextID)
	comment.Username = "user-" + comment.UserID[len(comment.UserID)-4:]
	comment.CreatedAt = time.Date(2026, 3, 15, 10, m.nextID, 0, 0, time.UTC)
	comment.UpdatedAt = comment.CreatedAt
	cp := *comment
	m.comments[comment.ID] = &cp
	return nil
}

func (m *mockRepository) UpdateText(_ context.Context, id, text string) (*domain.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, ErrCommentNotFound
	}
	c.Text = text
	cp := *c
	return &cp, nil
}

func (m *mockRepository) SetStatus(_ context.Context, id string, status domain.CommentStatus) (*domain.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, ErrCommentNotFound
	}
	c.Status = status
	cp := *c
	return &cp, nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	if _, ok := m.comments[id]; !ok {
		return ErrCommentNotFound
	}
	delete(m.comments, id)
	return nil
}

func seedComment(t *testing.T, s *Service, userID, text string) *domain.Comment {
	t.Helper()
	c, err := s.Create(context.Background(), userID, articleID, text)
	require.NoError(t, err)
	return c
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name      string
		articleID string
		text      string
		wantText  string
		wantErr   error
	}{
		{name: "plain text", articleID: articleID, text: "Great reporting", wantText: "Great reporting"},
		{name: "markup stripped", articleID: articleID, text: "<script>alert(1)</script><b>Agreed</b>", wantText: "Agreed"},
		{name: "whitespace only", articleID: articleID, text: "   ", wantErr: ErrEmptyText},
		{name: "markup only", articleID: articleID, text: "<img src=x>", wantErr: ErrEmptyText},
		{name: "missing article", articleID: missingID, text: "Hello", wantErr: ErrArticleNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			service := NewService(newMockRepository())

			// Act
			comment, err := service.Create(context.Background(), authorID, tt.articleID, tt.text)

			// Assert
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, comment.Text)
			assert.Equal(t, domain.CommentStatusActive, comment.Status)
			assert.NotEmpty(t, comment.ID)
		})
	}
}

func TestService_ListActiveNewestFirst(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	first := seedComment(t, service, authorID, "first")
	hidden := seedComment(t, service, otherID, "spam")
	third := seedComment(t, service, authorID, "third")
	_, err := service.SetStatus(context.Background(), hidden.ID, domain.CommentStatusHidden)
	require.NoError(t, err)

	list, total, err := service.List(context.Background(), articleID, 10, 0)

	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, third.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	_, _, err = service.List(context.Background(), missingID, 10, 0)
	assert.ErrorIs(t, err, ErrArticleNotFound)
}

func TestService_GetHidesModerated(t *testing.T) {
	service := NewService(newMockRepository())
	comment := seedComment(t, service, authorID, "visible for now")

	got, err := service.Get(context.Background(), comment.ID)
	require.NoError(t, err)
	assert.Equal(t, comment.Text, got.Text)

	_, err = service.SetStatus(context.Background(), comment.ID, domain.CommentStatusHidden)
	require.NoError(t, err)

	_, err = service.Get(context.Background(), comment.ID)
	assert.ErrorIs(t, err, ErrCommentNotFound)
}

func TestService_UpdateOwnerOnly(t *testing.T) {
	service := NewService(newMockRepository())
	comment := seedComment(t, service, authorID, "typo")

	tests := []struct {
		name    string
		userID  string
		id      string
		text    string
		wantErr error
	}{
		{name: "other user", userID: otherID, id: comment.ID, text: "hijack", wantErr: ErrNotOwner},
		{name: "empty text", userID: authorID, id: comment.ID, text: " ", wantErr: ErrEmptyText},
		{name: "missing comment", userID: authorID, id: missingID, text: "x", wantErr: ErrCommentNotFound},
		{name: "owner", userID: authorID, id: comment.ID, text: "fixed typo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, err := service.Update(context.Background(), tt.userID, tt.id, tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.text, updated.Text)
		})
	}
}

func TestService_DeleteOwnerOrAdmin(t *testing.T) {
	tests := []struct {
		name      string
		principal domain.Principal
		wantErr   error
	}{
		{name: "owner", principal: domain.Principal{ID: authorID, Type: domain.PrincipalUser}},
		{name: "admin", principal: domain.Principal{ID: "00000000-0000-0000-0000-00000000c001", Type: domain.PrincipalAdmin}},
		{name: "other user", principal: domain.Principal{ID: otherID, Type: domain.PrincipalUser}, wantErr: ErrNotOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			service := NewService(repo)
			comment := seedComment(t, service, authorID, "to be removed")

			err := service.Delete(context.Background(), tt.principal, comment.ID)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, repo.comments, comment.ID)
				return
			}
			require.NoError(t, err)
			assert.NotContains(t, repo.comments, comment.ID)
		})
	}
}

func TestService_AdminListRejectsUnknownStatus(t *testing.T) {
	service := NewService(newMockRepository())
	seedComment(t, service, authorID, "one")

	deleted := domain.CommentStatus("deleted")
	_, _, err := service.AdminList(context.Background(), Filter{Status: &deleted, Limit: 10})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	list, total, err := service.AdminList(context.Background(), Filter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)
}
