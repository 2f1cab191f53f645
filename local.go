package secretwall

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// HandleUserFunc is called after a strategy has resolved a user record.
// It owns session establishment and the final redirect.
type HandleUserFunc func(authtype string, provider string, user *User, w http.ResponseWriter, r *http.Request)

// LocalAuth allows local username/password based authentication
type LocalAuth struct {
	// Validates credentials during login
	ValidateCredentials CredentialsValidator

	// Creates a new user (for signup)
	CreateUser CreateUserFunc

	// Provider name (defaults to "local")
	Provider string

	// Form field names
	UsernameField string
	PasswordField string

	// Handler called after successful authentication
	HandleUser HandleUserFunc

	// LoginURL is where failed logins are sent back to
	LoginURL string

	// SignupURL is where failed signups are sent back to
	SignupURL string

	// OnLoginError is called when login fails. If nil, redirects to LoginURL.
	OnLoginError AuthErrorHandler

	// OnSignupError is called when signup fails. If nil, redirects to SignupURL.
	OnSignupError AuthErrorHandler
}

// ServeHTTP handles login requests
func (a *LocalAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.ValidateCredentials == nil {
		http.Error(w, "Login not configured", http.StatusInternalServerError)
		return
	}

	username, password, err := a.parseLoginForm(r)
	if err != nil {
		a.handleLoginError(NewAuthError(ErrCodeMissingField, err.Error(), "username"), w, r)
		return
	}

	// Unknown users and wrong passwords land here identically; the
	// redirect carries no failure reason.
	user, err := a.ValidateCredentials(r.Context(), username, password)
	if err != nil || user == nil {
		if err != nil && err != ErrInvalidCredentials {
			slog.Warn("error validating user", "err", err)
		}
		a.handleLoginError(NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", "password"), w, r)
		return
	}

	a.HandleUser("local", a.getProvider(), user, w, r)
}

// HandleSignup processes user registration
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if a.CreateUser == nil {
		http.Error(w, "Signup not configured", http.StatusInternalServerError)
		return
	}

	creds, parseErr := a.parseSignupForm(r)
	if parseErr != nil {
		a.handleSignupError(parseErr, w, r)
		return
	}

	if authErr := ValidateSignup(creds); authErr != nil {
		a.handleSignupError(authErr, w, r)
		return
	}

	user, err := a.CreateUser(r.Context(), creds)
	if err != nil {
		slog.Warn("error creating user", "err", err)
		if err == ErrDuplicateUsername {
			a.handleSignupError(NewAuthError(ErrCodeUsernameTaken, "Username is already taken", "username"), w, r)
		} else {
			a.handleSignupError(NewAuthError("create_failed", fmt.Sprintf("Failed to create user: %s", err), ""), w, r)
		}
		return
	}

	a.HandleUser("local", a.getProvider(), user, w, r)
}

func (a *LocalAuth) parseLoginForm(r *http.Request) (username, password string, err error) {
	contentType := r.Header.Get("Content-Type")
	usernameField := a.getUsernameField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err = r.ParseForm(); err != nil {
			return "", "", fmt.Errorf("error parsing form")
		}
		username = r.FormValue(usernameField)
		password = r.FormValue(passwordField)
	} else {
		var data map[string]any
		if err = json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", fmt.Errorf("invalid post body")
		}
		if u, ok := data[usernameField].(string); ok {
			username = u
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	}

	if username == "" || password == "" {
		return "", "", fmt.Errorf("username and password required")
	}

	return username, password, nil
}

func (a *LocalAuth) parseSignupForm(r *http.Request) (*Credentials, *AuthError) {
	username, password, err := a.parseLoginForm(r)
	if err != nil {
		return nil, NewAuthError("parse_error", err.Error(), "")
	}
	return &Credentials{Username: username, Password: password}, nil
}

func (a *LocalAuth) getProvider() string {
	if a.Provider != "" {
		return a.Provider
	}
	return "local"
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "username"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

func (a *LocalAuth) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnLoginError != nil && a.OnLoginError(err, w, r) {
		return
	}
	http.Redirect(w, r, a.getLoginURL(), http.StatusFound)
}

func (a *LocalAuth) handleSignupError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnSignupError != nil && a.OnSignupError(err, w, r) {
		return
	}
	http.Redirect(w, r, a.getSignupURL(), http.StatusFound)
}

func (a *LocalAuth) getLoginURL() string {
	if a.LoginURL != "" {
		return a.LoginURL
	}
	return "/login"
}

func (a *LocalAuth) getSignupURL() string {
	if a.SignupURL != "" {
		return a.SignupURL
	}
	return "/register"
}
