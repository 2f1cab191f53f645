// Package secretwall implements a small multi-user secrets sharing web
// application: register or log in with a username and password or with
// Google, then store a single free-text secret that appears on a public
// wall.
//
// # Architecture
//
// User: the sole persisted entity. A record carries local credentials
// (username plus bcrypt password hash), a Google identifier, or both, and
// at most one secret.
//
// UserStore: the persistence boundary. Backends live under stores/
// (in-memory, GORM/Postgres, Cloud Datastore); all of them expose an
// atomic find-or-create for federated provisioning and an atomic
// overwrite for secret submission.
//
// LocalAuth: the username/password strategy. A failed login never reveals
// whether the username exists.
//
// oauth2.GoogleOAuth2: the federated strategy. State-cookie bound consent
// redirect, authorization code exchange, profile fetch.
//
// App: the composition root. It owns the router, the scs session manager
// and the middleware, and receives the UserStore by injection.
//
// # Basic Usage
//
//	cfg, _ := secretwall.LoadConfig()
//	store := stores.NewMemUserStore()
//	app := secretwall.NewApp(cfg, store)
//	http.ListenAndServe(cfg.Addr, app.Handler())
//
// # Sessions
//
// Every request resolves its session cookie to a principal before route
// handling. Login and registration renew the session token and put the
// user id into the session; alongside it a signed JWT cookie is issued so
// sessionless callers can still be recognized. Logout destroys the
// session state entirely: a replayed old token resolves to Anonymous.
//
// # Security
//
// Passwords are hashed with bcrypt at default cost; the plaintext is
// never persisted. Unknown-username and wrong-password logins are
// indistinguishable to the caller, and both cost one bcrypt comparison.
package secretwall
