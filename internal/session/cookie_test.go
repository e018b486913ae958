package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func issueCookie(t *testing.T, policy CookiePolicy, maxAge time.Duration) *http.Cookie {
	t.Helper()
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		policy.Set(c, "token-value", maxAge)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == CookieName {
			return cookie
		}
	}
	t.Fatalf("no %s cookie in response", CookieName)
	return nil
}

func TestSetCookieAttributes(t *testing.T) {
	policy := NewCookiePolicy("production", 0)
	cookie := issueCookie(t, policy, 0)

	if cookie.Value != "token-value" {
		t.Fatalf("value = %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Fatal("cookie must be http-only")
	}
	if !cookie.Secure {
		t.Fatal("cookie must be secure outside development")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("same-site = %v, want strict", cookie.SameSite)
	}
	if cookie.Path != "/" {
		t.Fatalf("path = %q, want /", cookie.Path)
	}
	if want := int(DefaultMaxAge.Seconds()); cookie.MaxAge != want {
		t.Fatalf("max-age = %d, want %d", cookie.MaxAge, want)
	}
}

func TestSetCookieDevelopmentNotSecure(t *testing.T) {
	policy := NewCookiePolicy("development", 0)
	cookie := issueCookie(t, policy, 0)
	if cookie.Secure {
		t.Fatal("development cookies must work over plain http")
	}
}

func TestSetCookieCustomMaxAge(t *testing.T) {
	policy := NewCookiePolicy("production", time.Hour)
	cookie := issueCookie(t, policy, 5*time.Minute)
	if cookie.MaxAge != 300 {
		t.Fatalf("max-age = %d, want 300", cookie.MaxAge)
	}

	// Non-positive ages fall back to the configured default.
	cookie = issueCookie(t, policy, 0)
	if cookie.MaxAge != 3600 {
		t.Fatalf("max-age = %d, want 3600", cookie.MaxAge)
	}
}

func TestClearExpiresCookie(t *testing.T) {
	policy := NewCookiePolicy("production", 0)
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		policy.Clear(c)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name != CookieName {
			continue
		}
		if cookie.Value != "" {
			t.Fatalf("cleared cookie value = %q, want empty", cookie.Value)
		}
		if cookie.MaxAge >= 0 && !cookie.Expires.Before(time.Now()) {
			t.Fatal("cleared cookie must be expired")
		}
		return
	}
	t.Fatalf("no %s cookie in response", CookieName)
}

func TestTokenReadsRequestCookie(t *testing.T) {
	app := fiber.New()
	var got string
	app.Get("/", func(c *fiber.Ctx) error {
		got = Token(c)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "abc"})
	if _, err := app.Test(req); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if got != "abc" {
		t.Fatalf("Token = %q, want abc", got)
	}

	if _, err := app.Test(httptest.NewRequest("GET", "/", nil)); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if got != "" {
		t.Fatalf("Token without cookie = %q, want empty", got)
	}
}
