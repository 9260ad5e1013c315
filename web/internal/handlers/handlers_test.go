package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/passage/internal/auth"
	"github.com/devilmonastery/passage/internal/auth/oidc"
	"github.com/devilmonastery/passage/internal/domain/entities"
	"github.com/devilmonastery/passage/internal/domain/services"
	"github.com/devilmonastery/passage/internal/infrastructure/database"
	"github.com/devilmonastery/passage/migrations"
	"github.com/devilmonastery/passage/web/internal/middleware"
	"github.com/devilmonastery/passage/web/internal/session"
)

// fakeProvider asserts a fixed identity for any code
type fakeProvider struct {
	name         string
	identity     *entities.ExternalIdentity
	exchangeErr  error
	gotCode      string
	gotVerifier  string
	authVerifier string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state, verifier string) string {
	p.authVerifier = verifier
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code, verifier string) (*entities.ExternalIdentity, error) {
	p.gotCode, p.gotVerifier = code, verifier
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	id := *p.identity
	return &id, nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(context.Context) error { return f.err }

type testServer struct {
	router   *mux.Router
	manager  *session.Manager
	provider *fakeProvider
}

func newTestServer(t *testing.T, hooks services.SessionHooks, providers ...*fakeProvider) *testServer {
	t.Helper()

	registry := oidc.NewRegistry()
	for _, p := range providers {
		registry.Register(p)
	}

	manager, err := session.NewManager([]byte("cookie-secret"), session.Options{MaxAge: time.Hour})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	codec, err := auth.NewCodec(auth.CodecConfig{Secret: []byte("token-secret")})
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	creds := session.NewCredentials(manager, codec)

	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(registry, hooks, manager, creds, fakeHealth{}, log)

	ts := &testServer{
		router:  NewRouter(h, middleware.NewAuthMiddleware(creds, hooks, log), log),
		manager: manager,
	}
	if len(providers) > 0 {
		ts.provider = providers[0]
	}
	return ts
}

// browser replays cookies between requests like a user agent would
type browser struct {
	cookies map[string]*http.Cookie
}

func newBrowser() *browser { return &browser{cookies: map[string]*http.Cookie{}} }

func (b *browser) do(t *testing.T, ts *testServer, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

// signIn runs the login redirect and the callback, returning the callback response
func (b *browser) signIn(t *testing.T, ts *testServer, next string) *httptest.ResponseRecorder {
	t.Helper()

	target := "/login?provider=" + ts.provider.name
	if next != "" {
		target += "&next=" + url.QueryEscape(next)
	}
	rec := b.do(t, ts, http.MethodGet, target)
	if rec.Code != http.StatusFound {
		t.Fatalf("GET /login = %d, want 302", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	state := loc.Query().Get("state")

	return b.do(t, ts, http.MethodGet, "/auth/callback?code=code-1&state="+url.QueryEscape(state))
}

func sessionJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

type stubHooks struct {
	admit    bool
	signedIn []entities.ExternalIdentity
}

func (s *stubHooks) OnSignIn(_ context.Context, identity entities.ExternalIdentity) bool {
	s.signedIn = append(s.signedIn, identity)
	return s.admit
}

func (s *stubHooks) OnSessionMaterialize(_ context.Context, session entities.Session) entities.Session {
	return session
}

func identityA() *entities.ExternalIdentity {
	return &entities.ExternalIdentity{Provider: "fake", Subject: "sub-1", Email: "a@x.com", EmailVerified: true, DisplayName: "A", AvatarRef: "img1"}
}

func TestLogin_ListsProviders(t *testing.T) {
	ts := newTestServer(t, &stubHooks{}, &fakeProvider{name: "okta"}, &fakeProvider{name: "google"})

	rec := newBrowser().do(t, ts, http.MethodGet, "/login?reason=denied")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /login = %d, want 200", rec.Code)
	}
	body := sessionJSON(t, rec)
	providers, _ := body["providers"].([]any)
	if len(providers) != 2 || providers[0] != "google" || providers[1] != "okta" {
		t.Errorf("providers = %v, want [google okta]", body["providers"])
	}
	if body["message"] != loginMessages["denied"] {
		t.Errorf("message = %v, want denied message", body["message"])
	}
}

func TestLogin_UnknownProvider(t *testing.T) {
	ts := newTestServer(t, &stubHooks{}, &fakeProvider{name: "google"})

	if rec := newBrowser().do(t, ts, http.MethodGet, "/login?provider=github"); rec.Code != http.StatusBadRequest {
		t.Errorf("GET /login?provider=github = %d, want 400", rec.Code)
	}
}

func TestSignIn_Admitted(t *testing.T) {
	hooks := &stubHooks{admit: true}
	ts := newTestServer(t, hooks, &fakeProvider{name: "fake", identity: identityA()})
	b := newBrowser()

	rec := b.signIn(t, ts, "/account")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/account" {
		t.Fatalf("callback = %d %q, want 303 to /account", rec.Code, rec.Header().Get("Location"))
	}
	if len(hooks.signedIn) != 1 || hooks.signedIn[0].Email != "a@x.com" {
		t.Errorf("OnSignIn calls = %+v", hooks.signedIn)
	}
	if ts.provider.gotCode != "code-1" || ts.provider.gotVerifier == "" || ts.provider.gotVerifier != ts.provider.authVerifier {
		t.Errorf("Exchange got code=%q verifier=%q, want the login verifier", ts.provider.gotCode, ts.provider.gotVerifier)
	}

	body := sessionJSON(t, b.do(t, ts, http.MethodGet, "/api/auth/session"))
	user, _ := body["user"].(map[string]any)
	want := map[string]any{"email": "a@x.com", "name": "A", "image": "img1"}
	for k, v := range want {
		if user[k] != v {
			t.Errorf("session user.%s = %v, want %v", k, user[k], v)
		}
	}
}

func TestSignIn_Denied(t *testing.T) {
	ts := newTestServer(t, &stubHooks{admit: false}, &fakeProvider{name: "fake", identity: identityA()})
	b := newBrowser()

	rec := b.signIn(t, ts, "")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login?reason=denied" {
		t.Fatalf("callback = %d %q, want 303 to /login?reason=denied", rec.Code, rec.Header().Get("Location"))
	}

	body := sessionJSON(t, b.do(t, ts, http.MethodGet, "/api/auth/session"))
	if len(body) != 0 {
		t.Errorf("session = %v, want {}", body)
	}
}

func TestCallback_Rejects(t *testing.T) {
	t.Run("state mismatch", func(t *testing.T) {
		hooks := &stubHooks{admit: true}
		ts := newTestServer(t, hooks, &fakeProvider{name: "fake", identity: identityA()})
		b := newBrowser()
		b.do(t, ts, http.MethodGet, "/login?provider=fake")

		rec := b.do(t, ts, http.MethodGet, "/auth/callback?code=code-1&state=forged")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("callback = %d, want 400", rec.Code)
		}
		if len(hooks.signedIn) != 0 {
			t.Error("OnSignIn called for a forged state")
		}
	})

	t.Run("no login in progress", func(t *testing.T) {
		ts := newTestServer(t, &stubHooks{admit: true}, &fakeProvider{name: "fake", identity: identityA()})
		if rec := newBrowser().do(t, ts, http.MethodGet, "/auth/callback?code=code-1&state=s"); rec.Code != http.StatusBadRequest {
			t.Errorf("callback = %d, want 400", rec.Code)
		}
	})

	t.Run("provider error", func(t *testing.T) {
		ts := newTestServer(t, &stubHooks{admit: true}, &fakeProvider{name: "fake"})
		rec := newBrowser().do(t, ts, http.MethodGet, "/auth/callback?error=access_denied")
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login?reason=error" {
			t.Errorf("callback = %d %q, want 303 to /login?reason=error", rec.Code, rec.Header().Get("Location"))
		}
	})

	t.Run("exchange fails", func(t *testing.T) {
		hooks := &stubHooks{admit: true}
		ts := newTestServer(t, hooks, &fakeProvider{name: "fake", exchangeErr: errors.New("bad code")})
		rec := newBrowser().signIn(t, ts, "")
		if rec.Header().Get("Location") != "/login?reason=error" {
			t.Errorf("callback Location = %q, want /login?reason=error", rec.Header().Get("Location"))
		}
		if len(hooks.signedIn) != 0 {
			t.Error("OnSignIn called after a failed exchange")
		}
	})
}

func TestSignIn_WithStaleTokenCookie(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-valid-jwt"},
		{name: "expired", token: expiredToken(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubHooks{admit: true}, &fakeProvider{name: "fake", identity: identityA()})
			b := newBrowser()

			rec := httptest.NewRecorder()
			if err := ts.manager.SetToken(httptest.NewRequest(http.MethodGet, "/", nil), rec, tt.token); err != nil {
				t.Fatalf("SetToken() error = %v", err)
			}
			for _, c := range rec.Result().Cookies() {
				b.cookies[c.Name] = c
			}

			rec = b.signIn(t, ts, "/account")
			if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/account" {
				t.Fatalf("callback = %d %q (%s), want 303 to /account", rec.Code, rec.Header().Get("Location"), rec.Body.String())
			}

			body := sessionJSON(t, b.do(t, ts, http.MethodGet, "/api/auth/session"))
			if user, _ := body["user"].(map[string]any); user["email"] != "a@x.com" {
				t.Errorf("session = %v, want signed in as a@x.com", body)
			}
		})
	}
}

func TestExpiredSession_RedirectsWithReason(t *testing.T) {
	ts := newTestServer(t, &stubHooks{admit: true}, &fakeProvider{name: "fake", identity: identityA()})
	b := newBrowser()

	rec := httptest.NewRecorder()
	if err := ts.manager.SetToken(httptest.NewRequest(http.MethodGet, "/", nil), rec, expiredToken(t)); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}

	rec = b.do(t, ts, http.MethodGet, "/")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login?reason=expired" {
		t.Fatalf("GET / = %d %q, want 303 to /login?reason=expired", rec.Code, rec.Header().Get("Location"))
	}
	if _, ok := b.cookies[session.SessionName]; ok {
		t.Error("expired session cookie kept")
	}

	body := sessionJSON(t, b.do(t, ts, http.MethodGet, "/login?reason=expired"))
	if body["message"] != loginMessages["expired"] {
		t.Errorf("message = %v, want expired message", body["message"])
	}
}

// expiredToken returns a token the test server's codec accepts apart from its expiry
func expiredToken(t *testing.T) string {
	t.Helper()
	codec, err := auth.NewCodec(auth.CodecConfig{
		Secret: []byte("token-secret"),
		Now:    func() time.Time { return time.Now().Add(-2 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	token, err := codec.Encode(auth.SessionClaims{Session: map[string]any{"user": map[string]any{"email": "old@x.com"}}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return token
}

func TestSignIn_OpenRedirectBlocked(t *testing.T) {
	ts := newTestServer(t, &stubHooks{admit: true}, &fakeProvider{name: "fake", identity: identityA()})

	rec := newBrowser().signIn(t, ts, "https://evil.example.com/")
	if rec.Header().Get("Location") != "/" {
		t.Errorf("callback Location = %q, want /", rec.Header().Get("Location"))
	}
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t, &stubHooks{admit: true}, &fakeProvider{name: "fake", identity: identityA()})
	b := newBrowser()
	b.signIn(t, ts, "")

	if rec := b.do(t, ts, http.MethodGet, "/"); rec.Code != http.StatusOK {
		t.Fatalf("GET / while signed in = %d, want 200", rec.Code)
	}

	rec := b.do(t, ts, http.MethodPost, "/logout")
	if rec.Code != http.StatusSeeOther {
		t.Errorf("POST /logout = %d, want 303", rec.Code)
	}

	rec = b.do(t, ts, http.MethodGet, "/")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login?reason=required" {
		t.Errorf("GET / after logout = %d %q, want redirect to login", rec.Code, rec.Header().Get("Location"))
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &stubHooks{})
	if rec := newBrowser().do(t, ts, http.MethodGet, "/health"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("GET /health = %d %q, want 200 ok", rec.Code, rec.Body.String())
	}

	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(oidc.NewRegistry(), &stubHooks{}, nil, nil, fakeHealth{err: errors.New("down")}, log)
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Health() with store down = %d, want 503", rec.Code)
	}
}

// TestSignIn_EndToEnd runs the whole flow against a real sqlite store
func TestSignIn_EndToEnd(t *testing.T) {
	conn, err := database.NewConnection(database.DriverSQLite, filepath.Join(t.TempDir(), "passage.db"))
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.RunMigrations(migrations.FS); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	reconciler := services.NewReconciler(database.NewUserRepository(conn.DB), services.ReconcilerConfig{})
	hooks := services.NewHooks(
		services.NewSignInGate(reconciler, services.SignInPolicy{AutoProvision: true}),
		services.NewSessionAssembler(reconciler),
	)
	provider := &fakeProvider{name: "fake", identity: identityA()}
	ts := newTestServer(t, hooks, provider)

	first := newBrowser()
	if rec := first.signIn(t, ts, ""); rec.Header().Get("Location") != "/" {
		t.Fatalf("first sign-in Location = %q, want /", rec.Header().Get("Location"))
	}

	// A second sign-in with a changed display name keeps the stored profile
	provider.identity = &entities.ExternalIdentity{Provider: "fake", Subject: "sub-1", Email: "A@x.com", EmailVerified: true, DisplayName: "A2"}
	second := newBrowser()
	if rec := second.signIn(t, ts, ""); rec.Header().Get("Location") != "/" {
		t.Fatalf("second sign-in Location = %q, want /", rec.Header().Get("Location"))
	}

	body := sessionJSON(t, second.do(t, ts, http.MethodGet, "/api/auth/session"))
	user, _ := body["user"].(map[string]any)
	if user["name"] != "A" || user["email"] != "a@x.com" || user["id"] == nil || user["handle"] != "a" {
		t.Errorf("session user = %v, want stored profile for a@x.com", user)
	}

	var count int
	if err := conn.DB.Get(&count, `SELECT COUNT(*) FROM users`); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Errorf("users = %d, want 1", count)
	}
}
