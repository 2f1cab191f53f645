package secretwall

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type userParamNameKey string

// Middleware resolves the principal for every request before route
// handling. The session is consulted first, then the signed auth token
// cookie; an unresolvable principal is Anonymous.
type Middleware struct {
	AuthTokenCookieName string
	UserParamName       string
	CallbackURLParam    string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (loggedInUserId string, token any, err error)
}

func (a *Middleware) EnsureReasonableDefaults() {
	if a.UserParamName == "" {
		a.UserParamName = "loggedInUserId"
	}
	if a.CallbackURLParam == "" {
		a.CallbackURLParam = "callbackURL"
	}
}

// GetLoggedInUserId returns the principal's user ID for the current
// request, or "" for Anonymous.
func (a *Middleware) GetLoggedInUserId(r *http.Request) string {
	a.EnsureReasonableDefaults()
	v := r.Context().Value(userParamNameKey(a.UserParamName))
	if v != nil {
		if loggedInUserId := v.(string); loggedInUserId != "" {
			return loggedInUserId
		}
	}

	if userParam := a.getSessionUserId(r); userParam != "" {
		return userParam
	}

	if a.VerifyToken == nil {
		return ""
	}

	// Fall back to the signed auth token cookie for callers that do not
	// carry a session.
	for _, cookie := range r.CookiesNamed(a.AuthTokenCookieName) {
		if len(cookie.Value) == 0 {
			continue
		}
		loggedInUserId, _, err := a.VerifyToken(cookie.Value)
		if err == nil && loggedInUserId != "" {
			return loggedInUserId
		} else if err != nil {
			slog.Warn("error verifying auth token", "err", err)
		}
	}

	return ""
}

// ExtractUser loads the resolved principal into the request context so
// downstream handlers can branch on it. It never redirects.
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.GetLoggedInUserId(r)
			next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
		},
	)
}

// EnsureUser extracts the principal and, for Anonymous, redirects to the
// login entry point instead of invoking the wrapped handler.
func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.GetLoggedInUserId(r)
			if userParam == "" {
				redirUrl := "/login"
				if a.GetRedirURL != nil {
					redirUrl = a.GetRedirURL(r)
				}
				if redirUrl == "" {
					http.Error(w, "Login Required", http.StatusUnauthorized)
					return
				}
				originalUrl := r.URL.Path
				encodedUrl := strings.Replace(url.QueryEscape(originalUrl), "+", "%20", -1)
				fullRedirUrl := fmt.Sprintf("%s?%s=%s", redirUrl, a.CallbackURLParam, encodedUrl)
				http.Redirect(w, r, fullRedirUrl, http.StatusFound)
				return
			}
			next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
		},
	)
}

func (a *Middleware) getSessionUserId(r *http.Request) string {
	if a.SessionGetter == nil {
		return ""
	}
	out := a.SessionGetter(r, a.UserParamName)
	if out == nil {
		return ""
	}
	s, _ := out.(string)
	return s
}

// Set the logged in user id into the request's context, making it
// available to all handlers downstream.
func (a *Middleware) setLoggedInUserId(userId string, r *http.Request) *http.Request {
	contextWithUser := context.WithValue(r.Context(), userParamNameKey(a.UserParamName), userId)
	return r.WithContext(contextWithUser)
}
