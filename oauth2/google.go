package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleOAuth2 implements the federated identity strategy against Google.
// It owns the consent redirect and the callback exchange; the caller owns
// what happens to the resolved profile via HandleUser.
type GoogleOAuth2 struct {
	ClientId     string
	ClientSecret string
	CallbackURL  string
	HandleUser   HandleUserFunc

	// AuthFailureUrl is where any exchange or profile failure redirects to.
	AuthFailureUrl string

	// UserInfoURL is the URL to fetch user info from. Defaults to Google's
	// userinfo endpoint. Can be overridden for testing.
	UserInfoURL string

	oauthConfig oauth2.Config
	httpClient  *http.Client
}

func NewGoogleOAuth2(clientId string, clientSecret string, callbackUrl string, handleUser HandleUserFunc) *GoogleOAuth2 {
	if clientId == "" {
		clientId = strings.TrimSpace(os.Getenv("SECRETWALL_GOOGLE_CLIENT_ID"))
	}
	if clientSecret == "" {
		clientSecret = strings.TrimSpace(os.Getenv("SECRETWALL_GOOGLE_CLIENT_SECRET"))
	}
	if callbackUrl == "" {
		callbackUrl = strings.TrimSpace(os.Getenv("SECRETWALL_GOOGLE_CALLBACK_URL"))
	}

	return &GoogleOAuth2{
		ClientId:       clientId,
		ClientSecret:   clientSecret,
		CallbackURL:    callbackUrl,
		HandleUser:     handleUser,
		AuthFailureUrl: "/login",
		UserInfoURL:    "https://www.googleapis.com/oauth2/v3/userinfo",
		oauthConfig: oauth2.Config{
			ClientID:     clientId,
			ClientSecret: clientSecret,
			RedirectURL:  callbackUrl,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// SetOAuthEndpoint overrides the provider endpoints. Used by tests to
// point at a mock provider.
func (g *GoogleOAuth2) SetOAuthEndpoint(endpoint oauth2.Endpoint) {
	g.oauthConfig.Endpoint = endpoint
}

// SetHTTPClient overrides the client used for the exchange and the user
// info fetch.
func (g *GoogleOAuth2) SetHTTPClient(client *http.Client) {
	g.httpClient = client
}

// RedirectHandler sends the caller to the Google consent screen.
func (g *GoogleOAuth2) RedirectHandler() http.HandlerFunc {
	return OauthRedirector(&g.oauthConfig)
}

// HandleCallback completes the federated exchange: state check, code
// exchange, profile fetch, then HandleUser. Every failure redirects to
// AuthFailureUrl without detail.
func (g *GoogleOAuth2) HandleCallback(w http.ResponseWriter, r *http.Request) {
	oauthState, _ := r.Cookie("oauthstate")
	if oauthState == nil {
		http.Error(w, "OauthState is nil", http.StatusBadRequest)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		http.SetCookie(w, &http.Cookie{
			Name:   "oauthstate",
			MaxAge: 0,
		})
		http.Error(w, fmt.Sprintf("invalid oauth google state: %s", r.FormValue("state")), http.StatusBadRequest)
		return
	}

	var userInfo map[string]any
	code := r.FormValue("code")
	token, err := g.oauthConfig.Exchange(g.exchangeContext(r), code)
	if err != nil {
		slog.Info("invalid code exchange", "err", err)
	} else {
		userInfo, err = g.fetchUserInfo(token)
		if err == nil {
			g.HandleUser("oauth", "google", token, userInfo, w, r)
		}
	}
	if err != nil {
		slog.Info("redirecting due to error", "err", err)
		http.Redirect(w, r, g.AuthFailureUrl, http.StatusTemporaryRedirect)
	}
}

func (g *GoogleOAuth2) exchangeContext(r *http.Request) context.Context {
	ctx := r.Context()
	if g.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}
	return ctx
}

func (g *GoogleOAuth2) fetchUserInfo(token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequest("GET", g.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %s", err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	client := g.getHTTPClient()
	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info from google: %s", err.Error())
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request failed with status %d", response.StatusCode)
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed read response: %s", err.Error())
	}

	var userInfo map[string]any
	if err := json.Unmarshal(contents, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %s", err.Error())
	}
	return userInfo, nil
}

func (g *GoogleOAuth2) getHTTPClient() *http.Client {
	if g.httpClient != nil {
		return g.httpClient
	}
	return http.DefaultClient
}
