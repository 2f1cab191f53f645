package secretwall_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	sw "github.com/telaga/secretwall"
	"github.com/telaga/secretwall/stores"
)

func newTestApp(t *testing.T) (*sw.App, *stores.MemUserStore) {
	t.Helper()
	store := stores.NewMemUserStore()
	app := sw.NewApp(sw.Config{
		SessionSecret:           "test-session-secret-key",
		SessionTimeoutInSeconds: 3600,
		GoogleClientID:          "test-client-id",
		GoogleClientSecret:      "test-client-secret",
		GoogleCallbackURL:       "http://localhost/auth/google/secrets",
	}, store)
	return app, store
}

// newTestClient returns a client with a cookie jar that does not follow
// redirects, so each hop can be asserted on.
func newTestClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func mustGet(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

func mustPostForm(t *testing.T, client *http.Client, url string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(url, form)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func register(t *testing.T, client *http.Client, baseURL, username, password string) {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	resp := mustPostForm(t, client, baseURL+"/register", form)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("register: expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/secrets" {
		t.Fatalf("register: expected redirect to /secrets, got %q", loc)
	}
}

func TestSubmitRequiresLogin(t *testing.T) {
	app, _ := newTestApp(t)
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	resp := mustGet(t, client, server.URL+"/submit")
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("Expected 302, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, "/login") {
		t.Errorf("Expected redirect to /login, got %q", loc)
	}
	if !strings.Contains(loc, "callbackURL=%2Fsubmit") {
		t.Errorf("Expected callbackURL param in %q", loc)
	}
}

func TestRegisterAndSubmitJourney(t *testing.T) {
	app, _ := newTestApp(t)
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	register(t, client, server.URL, "alice", "password123")

	// the fresh session can reach the submit form
	resp := mustGet(t, client, server.URL+"/submit")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /submit after register: expected 200, got %d", resp.StatusCode)
	}

	// registering alone publishes nothing
	body := readBody(t, mustGet(t, client, server.URL+"/secrets"))
	if strings.Contains(body, "my first secret") {
		t.Error("secret visible before submission")
	}

	resp = mustPostForm(t, client, server.URL+"/submit", url.Values{"secret": {"my first secret"}})
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/secrets" {
		t.Fatalf("POST /submit: expected redirect to /secrets, got %q", loc)
	}

	body = readBody(t, mustGet(t, client, server.URL+"/secrets"))
	if !strings.Contains(body, "my first secret") {
		t.Error("submitted secret not listed on /secrets")
	}
	if strings.Contains(body, "alice") {
		t.Error("author identity leaked onto the secrets page")
	}
}

// A second submission replaces the first; a user never holds two secrets.
func TestSecretOverwrite(t *testing.T) {
	app, _ := newTestApp(t)
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	register(t, client, server.URL, "alice", "password123")
	mustPostForm(t, client, server.URL+"/submit", url.Values{"secret": {"first version"}}).Body.Close()
	mustPostForm(t, client, server.URL+"/submit", url.Values{"secret": {"second version"}}).Body.Close()

	body := readBody(t, mustGet(t, client, server.URL+"/secrets"))
	if strings.Contains(body, "first version") {
		t.Error("overwritten secret still listed")
	}
	if !strings.Contains(body, "second version") {
		t.Error("replacement secret not listed")
	}
}

// The wall is public: no session needed to read it.
func TestSecretsPagePublic(t *testing.T) {
	app, _ := newTestApp(t)
	server := httptest.NewServer(app.Handler())
	defer server.Close()

	author := newTestClient(t)
	register(t, author, server.URL, "alice", "password123")
	mustPostForm(t, author, server.URL+"/submit", url.Values{"secret": {"told nobody"}}).Body.Close()

	visitor := newTestClient(t)
	resp := mustGet(t, visitor, server.URL+"/secrets")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for anonymous visitor, got %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "told nobody") {
		t.Error("anonymous visitor cannot see the wall")
	}
}

func TestLogoutEndsSession(t *testing.T) {
	app, _ := newTestApp(t)
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	register(t, client, server.URL, "alice", "password123")

	resp := mustGet(t, client, server.URL+"/logout")
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Errorf("Expected logout redirect to /, got %q", loc)
	}

	resp = mustGet(t, client, server.URL+"/submit")
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("Expected 302 after logout, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.HasPrefix(loc, "/login") {
		t.Errorf("Expected redirect to /login after logout, got %q", loc)
	}
}

func TestLoginAfterLogout(t *testing.T) {
	app, _ := newTestApp(t)
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	register(t, client, server.URL, "alice", "password123")
	mustGet(t, client, server.URL+"/logout").Body.Close()

	form := url.Values{"username": {"alice"}, "password": {"password123"}}
	resp := mustPostForm(t, client, server.URL+"/login", form)
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "/secrets" {
		t.Fatalf("login: expected redirect to /secrets, got %q", loc)
	}

	resp = mustGet(t, client, server.URL+"/submit")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 after re-login, got %d", resp.StatusCode)
	}
}

func TestPublicPagesRender(t *testing.T) {
	app, _ := newTestApp(t)
	server := httptest.NewServer(app.Handler())
	defer server.Close()
	client := newTestClient(t)

	for _, path := range []string{"/", "/login", "/register", "/secrets"} {
		resp := mustGet(t, client, server.URL+path)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}
