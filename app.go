package secretwall

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"

	oa2 "github.com/telaga/secretwall/oauth2"
)

// App wires the credential strategy, the federated strategy, the session
// manager and the route handlers around a single injected UserStore. No
// process-wide state: everything hangs off this struct.
type App struct {
	router     *mux.Router
	Session    *scs.SessionManager
	Middleware Middleware

	// Must be passed in
	Store UserStore

	Local  *LocalAuth
	Google *oa2.GoogleOAuth2

	// Optional name used as a prefix for session/cookie variable names
	AppName string

	// Name of the session variable (and cookie) where the auth token is stored
	AuthTokenSessionVar string

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string

	// How long a session is valid for. Defaults to 1 day.
	SessionTimeoutInSeconds int
}

// NewApp builds a fully wired application around the given store.
func NewApp(cfg Config, store UserStore) *App {
	a := &App{
		Store:                   store,
		JWTSecretKey:            cfg.SessionSecret,
		SessionTimeoutInSeconds: cfg.SessionTimeoutInSeconds,
	}
	a.EnsureDefaults()

	a.Local = &LocalAuth{
		ValidateCredentials: NewCredentialsValidator(store),
		CreateUser:          NewCreateUserFunc(store),
		HandleUser:          a.SaveUserAndRedirect,
		LoginURL:            "/login",
		SignupURL:           "/register",
	}
	a.Google = oa2.NewGoogleOAuth2(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL, a.handleFederatedUser)

	a.setupRoutes()
	return a
}

func (a *App) EnsureDefaults() *App {
	if a.AppName == "" {
		a.AppName = "Secretwall"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = fmt.Sprintf("%s-Issuer", a.AppName)
	}
	if a.AuthTokenSessionVar == "" {
		a.AuthTokenSessionVar = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.JWTSecretKey == "" {
		a.JWTSecretKey = "MyTestJWTSecretKey123456"
	}
	if a.Session == nil {
		a.Session = scs.New()
		a.Session.Lifetime = time.Second * time.Duration(a.SessionTimeoutInSeconds)
	}
	a.Middleware.EnsureReasonableDefaults()
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenSessionVar
	}
	if a.Middleware.SessionGetter == nil {
		a.Middleware.SessionGetter = func(r *http.Request, param string) any {
			return a.Session.Get(r.Context(), param)
		}
	}
	if a.Middleware.VerifyToken == nil {
		a.Middleware.VerifyToken = a.verifyJWT
	}
	if a.Middleware.GetRedirURL == nil {
		a.Middleware.GetRedirURL = func(r *http.Request) string { return "/login" }
	}
	return a
}

// Handler returns the full HTTP surface, with session load/save wrapped
// around every route.
func (a *App) Handler() http.Handler {
	return a.Session.LoadAndSave(a.router)
}

func (a *App) setupRoutes() {
	r := mux.NewRouter()

	r.HandleFunc("/", a.handleHome).Methods("GET")
	r.HandleFunc("/login", a.handleLoginPage).Methods("GET")
	r.Handle("/login", a.Local).Methods("POST")
	r.HandleFunc("/register", a.handleRegisterPage).Methods("GET")
	r.HandleFunc("/register", a.Local.HandleSignup).Methods("POST")
	r.HandleFunc("/secrets", a.handleSecrets).Methods("GET")
	r.HandleFunc("/logout", a.onLogout).Methods("GET")
	r.Handle("/submit", a.Middleware.EnsureUser(http.HandlerFunc(a.handleSubmitForm))).Methods("GET")
	r.Handle("/submit", a.Middleware.EnsureUser(http.HandlerFunc(a.handleSubmitSecret))).Methods("POST")
	r.HandleFunc("/auth/google", a.Google.RedirectHandler()).Methods("GET")
	r.HandleFunc("/auth/google/secrets", a.Google.HandleCallback).Methods("GET")

	a.router = r
}

func (a *App) verifyJWT(tokenString string) (loggedInUserId string, t any, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.JWTSecretKey), nil
	})
	if err != nil {
		return "", nil, err
	}
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", nil, fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if sub == "" {
		return "", nil, fmt.Errorf("subject not found")
	} else if err != nil {
		return "", nil, err
	}
	return sub, token, nil
}

// SaveUserAndRedirect establishes the authenticated session for a user
// resolved by the local strategy and sends them to the wall.
func (a *App) SaveUserAndRedirect(authtype, provider string, user *User, w http.ResponseWriter, r *http.Request) {
	a.setLoggedInUser(user, w, r)
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// handleFederatedUser maps a provider profile onto a local user record,
// provisioning one on first login.
func (a *App) handleFederatedUser(authtype, provider string, token *oauth2.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
	googleId := externalId(userInfo)
	if googleId == "" {
		slog.Warn("provider profile missing subject", "provider", provider)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	user, err := a.Store.EnsureGoogleUser(r.Context(), googleId)
	if err != nil {
		slog.Warn("error resolving federated user", "provider", provider, "err", err)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	a.setLoggedInUser(user, w, r)
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// externalId pulls the provider's stable identifier out of the profile.
// Google's v3 userinfo endpoint calls it "sub", the older v2 one "id".
func externalId(userInfo map[string]any) string {
	if sub, ok := userInfo["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := userInfo["id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// Sets (or, with a nil user, clears) the session principal and the signed
// auth token cookie.
func (a *App) setLoggedInUser(user *User, w http.ResponseWriter, r *http.Request) {
	a.EnsureDefaults()
	if user != nil {
		if err := a.Session.RenewToken(r.Context()); err != nil {
			slog.Warn("error renewing session token", "err", err)
		}
		a.Session.Put(r.Context(), a.Middleware.UserParamName, user.ID)

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": user.ID,
			"iss": a.JwtIssuer,
			"aud": a.AppName,
			"exp": time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)).Unix(),
			"iat": time.Now().Unix(),
		})
		tokenString, err := token.SignedString([]byte(a.JWTSecretKey))
		if err != nil {
			slog.Warn("error signing token", "err", err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:    a.AuthTokenSessionVar,
			Value:   tokenString,
			Path:    "/",
			Expires: time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)),
			MaxAge:  a.SessionTimeoutInSeconds,
		})
		return
	}

	// logout: destroy the session so the old token resolves to Anonymous
	if err := a.Session.Destroy(r.Context()); err != nil {
		slog.Warn("error destroying session", "err", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:    a.AuthTokenSessionVar,
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Now(),
	})
}

func (a *App) onLogout(w http.ResponseWriter, r *http.Request) {
	a.setLoggedInUser(nil, w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) handleHome(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "home", nil)
}

func (a *App) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "login", nil)
}

func (a *App) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "register", nil)
}

type secretView struct {
	Secret string
}

// handleSecrets lists every stored secret. Deliberately public: this is
// the wall of anonymous secrets, authenticated or not.
func (a *App) handleSecrets(w http.ResponseWriter, r *http.Request) {
	users, err := a.Store.UsersWithSecrets(r.Context())
	if err != nil {
		slog.Warn("error listing secrets", "err", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "There aren't any secrets yet.")
		return
	}

	views := make([]secretView, 0, len(users))
	for _, u := range users {
		if u.Secret != nil {
			views = append(views, secretView{Secret: *u.Secret})
		}
	}
	renderPage(w, "secrets", map[string]any{"Users": views})
}

func (a *App) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	renderPage(w, "submit", nil)
}

// handleSubmitSecret overwrites the caller's secret. Submitting twice
// leaves only the second value.
func (a *App) handleSubmitSecret(w http.ResponseWriter, r *http.Request) {
	userId := a.Middleware.GetLoggedInUserId(r)
	if userId == "" {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}
	secret := r.FormValue("secret")
	if secret == "" {
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}

	if err := a.Store.SetSecret(r.Context(), userId, secret); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// the principal vanished between session resolution and lookup
			a.setLoggedInUser(nil, w, r)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		slog.Warn("error storing secret", "userId", userId, "err", err)
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/secrets", http.StatusFound)
}
