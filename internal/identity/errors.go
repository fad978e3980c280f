package identity

import "errors"

// Identity errors.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAdminNotFound      = errors.New("admin not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrCannotDeleteSelf   = errors.New("admin cannot delete own account")
	ErrWrongPrincipalType = errors.New("token was issued for a different account type")
	ErrInvalidPreferences = errors.New("preferences must be a JSON object")
)
