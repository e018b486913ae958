package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"finrecord/api/internal/models"
	"finrecord/api/internal/repository"
	"finrecord/api/internal/security"
	"finrecord/api/internal/service"
	"finrecord/api/internal/session"
)

type memoryAccounts struct {
	accounts map[string]models.Account
}

func (s *memoryAccounts) findBy(match func(models.Account) bool) (models.Account, error) {
	for _, a := range s.accounts {
		if match(a) {
			return a, nil
		}
	}
	return models.Account{}, repository.ErrAccountNotFound
}

func (s *memoryAccounts) FindByID(_ context.Context, id string) (models.Account, error) {
	if a, ok := s.accounts[id]; ok {
		return a, nil
	}
	return models.Account{}, repository.ErrAccountNotFound
}

func (s *memoryAccounts) FindByEmail(_ context.Context, email string) (models.Account, error) {
	return s.findBy(func(a models.Account) bool { return a.Email == email })
}

func (s *memoryAccounts) FindByUsername(_ context.Context, username string) (models.Account, error) {
	return s.findBy(func(a models.Account) bool { return a.Username == username })
}

func (s *memoryAccounts) FindBySessionToken(_ context.Context, token string) (models.Account, error) {
	return s.findBy(func(a models.Account) bool {
		return a.Credential != nil && a.Credential.SessionToken != "" && a.Credential.SessionToken == token
	})
}

func (s *memoryAccounts) FindByRefreshToken(_ context.Context, token string) (models.Account, error) {
	return s.findBy(func(a models.Account) bool {
		return a.Credential != nil && a.Credential.RefreshToken != "" && a.Credential.RefreshToken == token
	})
}

func (s *memoryAccounts) CountByRegistrationIP(context.Context, string) (int, error) { return 0, nil }

func (s *memoryAccounts) Count(context.Context) (int, error) { return len(s.accounts), nil }

func (s *memoryAccounts) List(context.Context, int, int) ([]models.Account, error) { return nil, nil }

func (s *memoryAccounts) Create(_ context.Context, a models.Account) error {
	s.accounts[a.ID] = a
	return nil
}

func (s *memoryAccounts) Save(_ context.Context, a models.Account) error {
	if _, ok := s.accounts[a.ID]; !ok {
		return repository.ErrAccountNotFound
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *memoryAccounts) Delete(_ context.Context, id string) error {
	delete(s.accounts, id)
	return nil
}

func newAuthTestApp(t *testing.T, store *memoryAccounts) (*fiber.App, *security.TokenAuthority) {
	t.Helper()
	tokens := security.NewTokenAuthority("test-secret", time.Hour)
	h := HandlerSet{
		log:     zerolog.Nop(),
		cookies: session.NewCookiePolicy("test", 0),
		auth:    service.NewAuthService(store, tokens, zerolog.Nop(), 4, "test", false),
	}

	app := fiber.New()
	app.Post("/auth/register", h.RegisterAccount)
	app.Post("/auth/login", h.Login)
	app.Post("/auth/logout", h.Logout)
	app.Post("/auth/token", h.RefreshToken)
	app.Post("/auth/session", h.BrowserSession)
	app.Post("/users/session", h.TokenSession)
	return app, tokens
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode body %q: %v", raw, err)
	}
	return body
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == session.CookieName {
			return cookie
		}
	}
	return nil
}

func seedAccount(t *testing.T, store *memoryAccounts, tokens *security.TokenAuthority) models.Account {
	t.Helper()
	sessionToken, err := tokens.Issue("jane@example.com", security.TokenKindAccess)
	if err != nil {
		t.Fatalf("issue session token: %v", err)
	}
	refreshToken, err := tokens.Issue("jane@example.com", security.TokenKindRefresh)
	if err != nil {
		t.Fatalf("issue refresh token: %v", err)
	}
	hashed, err := security.HashPassword("Sup3rSecret", 4)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account := models.Account{
		ID:       "user_1",
		Email:    "jane@example.com",
		Username: "jane",
		Role:     models.RoleUser,
		Provider: models.ProviderCredentials,
		Credential: &models.Credential{
			Password:     hashed,
			SessionToken: sessionToken,
			RefreshToken: refreshToken,
		},
	}
	// Give the store its own credential so later mutations through the
	// stored pointer cannot reach back into the returned fixture.
	stored := account
	cred := *account.Credential
	stored.Credential = &cred
	store.accounts[account.ID] = stored
	return account
}

func TestRegisterEndpoint(t *testing.T) {
	store := &memoryAccounts{accounts: map[string]models.Account{}}
	app, _ := newAuthTestApp(t, store)

	resp, err := app.Test(jsonRequest(t, "POST", "/auth/register", fiber.Map{
		"email":    "jane@example.com",
		"password": "Sup3rSecret",
		"provider": "credentials",
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	cookie := sessionCookie(resp)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("registration must set the session cookie")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be http-only")
	}

	body := decodeBody(t, resp)
	if body["email"] != "jane@example.com" {
		t.Fatalf("email = %v", body["email"])
	}
	if _, leaked := body["authentication"]; leaked {
		t.Fatal("registration response must not carry the credential")
	}
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	store := &memoryAccounts{accounts: map[string]models.Account{}}
	app, tokens := newAuthTestApp(t, store)
	seedAccount(t, store, tokens)

	resp, err := app.Test(jsonRequest(t, "POST", "/auth/register", fiber.Map{
		"email":    "jane@example.com",
		"password": "Sup3rSecret",
		"provider": "credentials",
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 for duplicate registration", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "user already registered" {
		t.Fatalf("error = %v", body["error"])
	}
	if body["email"] != "jane@example.com" {
		t.Fatalf("email = %v", body["email"])
	}
}

func TestLoginEndpointStatuses(t *testing.T) {
	store := &memoryAccounts{accounts: map[string]models.Account{}}
	app, tokens := newAuthTestApp(t, store)
	seedAccount(t, store, tokens)

	resp, err := app.Test(jsonRequest(t, "POST", "/auth/login", fiber.Map{
		"email":    "ghost@example.com",
		"password": "Sup3rSecret",
		"provider": "credentials",
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("unknown email status = %d, want 401", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "User not found" {
		t.Fatalf("error = %v", body["error"])
	}

	resp, err = app.Test(jsonRequest(t, "POST", "/auth/login", fiber.Map{
		"email":    "jane@example.com",
		"password": "wrong-password",
		"provider": "credentials",
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("wrong password status = %d, want 403", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "Incorrect password" {
		t.Fatalf("error = %v", body["error"])
	}

	resp, err = app.Test(jsonRequest(t, "POST", "/auth/login", fiber.Map{
		"email":    "jane@example.com",
		"password": "Sup3rSecret",
		"provider": "credentials",
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	if sessionCookie(resp) == nil {
		t.Fatal("login must set the session cookie")
	}
}

func TestRefreshEndpointStatuses(t *testing.T) {
	store := &memoryAccounts{accounts: map[string]models.Account{}}
	app, tokens := newAuthTestApp(t, store)
	seeded := seedAccount(t, store, tokens)

	// No token at all: bare 401.
	resp, err := app.Test(jsonRequest(t, "POST", "/auth/token", fiber.Map{}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", resp.StatusCode)
	}

	// A token that resolves to an account but fails verification: bare 403.
	access, _ := tokens.Issue("jane@example.com", security.TokenKindAccess)
	stored := store.accounts["user_1"]
	stored.Credential.RefreshToken = access
	store.accounts["user_1"] = stored
	resp, err = app.Test(jsonRequest(t, "POST", "/auth/token", fiber.Map{"token": access}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("rejected token status = %d, want 403", resp.StatusCode)
	}

	// Restore and exchange for a fresh access token via the query string.
	stored.Credential.RefreshToken = seeded.Credential.RefreshToken
	store.accounts["user_1"] = stored
	req := httptest.NewRequest("POST", "/auth/token?token="+seeded.Credential.RefreshToken, nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("refresh status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["accessToken"] == "" || body["accessToken"] == nil {
		t.Fatal("refresh must return the new access token")
	}
	if sessionCookie(resp) == nil {
		t.Fatal("refresh must reset the session cookie")
	}
}

func TestBrowserSessionEndpoint(t *testing.T) {
	store := &memoryAccounts{accounts: map[string]models.Account{}}
	app, tokens := newAuthTestApp(t, store)
	seeded := seedAccount(t, store, tokens)

	// Non-browser callers are turned away regardless of the cookie.
	req := httptest.NewRequest("POST", "/auth/session", nil)
	req.Header.Set("User-Agent", "curl/8.0")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("non-browser status = %d, want 403", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["message"] != "no session" {
		t.Fatalf("message = %v", body["message"])
	}

	// A browser without the cookie gets the signed-out marker.
	req = httptest.NewRequest("POST", "/auth/session", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("signed-out status = %d, want 201", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["error"] != "no session" {
		t.Fatalf("error = %v", body["error"])
	}

	// A live cookie resolves the account.
	req = httptest.NewRequest("POST", "/auth/session", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: seeded.Credential.SessionToken})
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("live session status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["id"] != "user_1" {
		t.Fatalf("id = %v", body["id"])
	}

	// A dead cookie is cleared alongside the 401.
	req = httptest.NewRequest("POST", "/auth/session", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "stale-token"})
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("dead session status = %d, want 401", resp.StatusCode)
	}
	cookie := sessionCookie(resp)
	if cookie == nil || cookie.Value != "" {
		t.Fatal("dead session must clear the cookie")
	}
}

func TestTokenSessionEndpoint(t *testing.T) {
	store := &memoryAccounts{accounts: map[string]models.Account{}}
	app, tokens := newAuthTestApp(t, store)
	seeded := seedAccount(t, store, tokens)

	// The body-token variant has no browser gate.
	resp, err := app.Test(jsonRequest(t, "POST", "/users/session", fiber.Map{
		"token": seeded.Credential.SessionToken,
	}))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["id"] != "user_1" {
		t.Fatalf("id = %v", body["id"])
	}
}

func TestLogoutEndpoint(t *testing.T) {
	store := &memoryAccounts{accounts: map[string]models.Account{}}
	app, _ := newAuthTestApp(t, store)

	resp, err := app.Test(httptest.NewRequest("POST", "/auth/logout", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["message"] != "User logged out" {
		t.Fatalf("message = %v", body["message"])
	}
	cookie := sessionCookie(resp)
	if cookie == nil || cookie.Value != "" {
		t.Fatal("logout must clear the session cookie")
	}
}
