package oauth2

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// mockOAuthServer simulates a provider's token and userinfo endpoints.
type mockOAuthServer struct {
	server       *httptest.Server
	failExchange bool
	failUserInfo bool
	userInfo     map[string]any
}

func newMockOAuthServer() *mockOAuthServer {
	m := &mockOAuthServer{
		userInfo: map[string]any{
			"sub":  "mock-subject-1",
			"name": "Mock User",
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if m.failExchange {
			http.Error(w, "invalid_grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "mock-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if m.failUserInfo {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.userInfo)
	})
	m.server = httptest.NewServer(mux)
	return m
}

func newTestGoogleOAuth2(m *mockOAuthServer, handleUser HandleUserFunc) *GoogleOAuth2 {
	g := NewGoogleOAuth2("test-client-id", "test-client-secret",
		"http://localhost/auth/google/secrets", handleUser)
	g.SetOAuthEndpoint(oauth2.Endpoint{
		AuthURL:  m.server.URL + "/auth",
		TokenURL: m.server.URL + "/token",
	})
	g.SetHTTPClient(m.server.Client())
	g.UserInfoURL = m.server.URL + "/userinfo"
	return g
}

func TestRedirectHandler(t *testing.T) {
	m := newMockOAuthServer()
	defer m.server.Close()
	g := newTestGoogleOAuth2(m, nil)

	req := httptest.NewRequest("GET", "/auth/google", nil)
	w := httptest.NewRecorder()
	g.RedirectHandler()(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("Expected 302, got %d", w.Code)
	}

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "oauthstate" {
			stateCookie = c
		}
	}
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("Expected a non-empty oauthstate cookie")
	}

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("invalid redirect url: %v", err)
	}
	q := loc.Query()
	if q.Get("state") != stateCookie.Value {
		t.Errorf("state param %q does not match cookie %q", q.Get("state"), stateCookie.Value)
	}
	if q.Get("client_id") != "test-client-id" {
		t.Errorf("Expected client_id in consent url, got %q", q.Get("client_id"))
	}
	if !strings.Contains(q.Get("scope"), "userinfo.profile") {
		t.Errorf("Expected profile scope, got %q", q.Get("scope"))
	}
}

func TestHandleCallbackMissingState(t *testing.T) {
	m := newMockOAuthServer()
	defer m.server.Close()
	g := newTestGoogleOAuth2(m, nil)

	req := httptest.NewRequest("GET", "/auth/google/secrets?code=abc&state=xyz", nil)
	w := httptest.NewRecorder()
	g.HandleCallback(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without state cookie, got %d", w.Code)
	}
}

func TestHandleCallbackStateMismatch(t *testing.T) {
	m := newMockOAuthServer()
	defer m.server.Close()
	g := newTestGoogleOAuth2(m, nil)

	req := httptest.NewRequest("GET", "/auth/google/secrets?code=abc&state=attacker", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "expected"})
	w := httptest.NewRecorder()
	g.HandleCallback(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on state mismatch, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid oauth google state") {
		t.Errorf("Unexpected body: %q", w.Body.String())
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	m := newMockOAuthServer()
	defer m.server.Close()

	var gotProvider string
	var gotToken *oauth2.Token
	var gotUserInfo map[string]any
	g := newTestGoogleOAuth2(m, func(authtype, provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
		gotProvider = provider
		gotToken = token
		gotUserInfo = userInfo
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/auth/google/secrets?code=abc&state=expected", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "expected"})
	w := httptest.NewRecorder()
	g.HandleCallback(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if gotProvider != "google" {
		t.Errorf("Expected provider google, got %q", gotProvider)
	}
	if gotToken == nil || gotToken.AccessToken != "mock-access-token" {
		t.Errorf("Unexpected token: %+v", gotToken)
	}
	if gotUserInfo["sub"] != "mock-subject-1" {
		t.Errorf("Unexpected user info: %+v", gotUserInfo)
	}
}

func TestHandleCallbackExchangeFailure(t *testing.T) {
	m := newMockOAuthServer()
	defer m.server.Close()
	m.failExchange = true

	called := false
	g := newTestGoogleOAuth2(m, func(authtype, provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest("GET", "/auth/google/secrets?code=bad&state=expected", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "expected"})
	w := httptest.NewRecorder()
	g.HandleCallback(w, req)

	if called {
		t.Error("HandleUser must not run on a failed exchange")
	}
	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("Expected 307, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Expected redirect to /login, got %q", loc)
	}
}

func TestHandleCallbackUserInfoFailure(t *testing.T) {
	m := newMockOAuthServer()
	defer m.server.Close()
	m.failUserInfo = true

	called := false
	g := newTestGoogleOAuth2(m, func(authtype, provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest("GET", "/auth/google/secrets?code=abc&state=expected", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "expected"})
	w := httptest.NewRecorder()
	g.HandleCallback(w, req)

	if called {
		t.Error("HandleUser must not run when the profile fetch fails")
	}
	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("Expected 307, got %d", w.Code)
	}
}
