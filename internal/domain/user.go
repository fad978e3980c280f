package domain

import "time"

// PrincipalType distinguishes the two kinds of accounts that can authenticate.
type PrincipalType string

// Principal types.
const (
	PrincipalUser  PrincipalType = "user"
	PrincipalAdmin PrincipalType = "admin"
)

// IsValid checks if the principal type is known.
func (p PrincipalType) IsValid() bool {
	return p == PrincipalUser || p == PrincipalAdmin
}

// Principal is an authenticated identity extracted from an access token.
type Principal struct {
	ID   string
	Type PrincipalType
}

// IsAdmin reports whether the principal is an administrator.
func (p Principal) IsAdmin() bool {
	return p.Type == PrincipalAdmin
}

// Preference keys understood by the notification fan-out.
const (
	PreferenceBreakingNews       = "breakingNews"
	PreferenceDailyDigest        = "dailyDigest"
	PreferenceFavoriteCategories = "favorite_categories"
)

// Preferences is a free-form JSON object owned by the reader.
type Preferences map[string]any

// Bool returns the boolean value stored under key, false when missing or not a bool.
func (p Preferences) Bool(key string) bool {
	v, ok := p[key].(bool)
	return ok && v
}

// FavoriteCategories returns the category slugs the reader follows.
func (p Preferences) FavoriteCategories() []string {
	raw, ok := p[PreferenceFavoriteCategories].([]any)
	if !ok {
		if typed, ok := p[PreferenceFavoriteCategories].([]string); ok {
			return typed
		}
		return nil
	}
	slugs := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			slugs = append(slugs, s)
		}
	}
	return slugs
}

// User is a reader account.
type User struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Username    string      `json:"username"`
	Password    string      `json:"-"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Admin is a back-office account. Admins live in their own table and never
// share identifiers with readers.
type Admin struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
