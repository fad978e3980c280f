package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/bissquit/newsroom/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// maxMessageLength caps rendered titles and messages, in runes.
const maxMessageLength = 200

// MessageData is the template input for one notification.
type MessageData struct {
	Article *domain.Article
	// More counts further articles mentioned by a digest.
	More int
}

// Renderer renders notification titles and messages from templates.
type Renderer struct {
	templates map[domain.NotificationType]*template.Template
}

// NewRenderer creates a renderer and loads the template of every notification type.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":      titleCase,
		"authorName": authorName,
	}

	r := &Renderer{templates: make(map[domain.NotificationType]*template.Template)}

	types := []domain.NotificationType{
		domain.NotificationBreakingNews,
		domain.NotificationFavoriteCategory,
		domain.NotificationAuthorFollow,
		domain.NotificationDailyDigest,
	}
	for _, t := range types {
		filename := fmt.Sprintf("templates/%s.tmpl", t)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(t)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", t, err)
		}
		r.templates[t] = tmpl
	}

	return r, nil
}

// Render returns the title and message of a notification of type t.
func (r *Renderer) Render(t domain.NotificationType, data MessageData) (title, message string, err error) {
	tmpl, ok := r.templates[t]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", t)
	}

	if title, err = execute(tmpl, "title", data); err != nil {
		return "", "", err
	}
	if message, err = execute(tmpl, "message", data); err != nil {
		return "", "", err
	}
	return title, message, nil
}

func execute(tmpl *template.Template, name string, data MessageData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute template %s/%s: %w", tmpl.Name(), name, err)
	}
	return truncate(strings.TrimSpace(buf.String()), maxMessageLength), nil
}

// Template functions

var titleCaser = cases.Title(language.Ukrainian)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func authorName(a *domain.ArticleAuthor) string {
	if a == nil {
		return ""
	}
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
