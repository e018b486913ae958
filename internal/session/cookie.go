// Package session defines the browser-cookie policy for the live session
// token.
package session

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// CookieName is the browser-held credential carrying the current access token.
const CookieName = "user_session"

// DefaultMaxAge matches the access token's default lifetime; the two are
// configured together but may diverge when a caller requests a custom age.
const DefaultMaxAge = 30 * 24 * time.Hour

// CookiePolicy writes and clears the session cookie with fixed security
// attributes: HTTP-only, strict same-site, secure outside development.
type CookiePolicy struct {
	secure        bool
	defaultMaxAge time.Duration
}

func NewCookiePolicy(environment string, defaultMaxAge time.Duration) CookiePolicy {
	if defaultMaxAge <= 0 {
		defaultMaxAge = DefaultMaxAge
	}
	return CookiePolicy{
		secure:        environment != "development",
		defaultMaxAge: defaultMaxAge,
	}
}

// Set attaches the access token as the session cookie. A non-positive maxAge
// falls back to the policy default.
func (p CookiePolicy) Set(c *fiber.Ctx, token string, maxAge time.Duration) {
	if maxAge <= 0 {
		maxAge = p.defaultMaxAge
	}
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HTTPOnly: true,
		Secure:   p.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// Clear overwrites the cookie with an immediately expired empty value.
func (p CookiePolicy) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
	})
}

// Token reads the session token from the request cookie, "" when absent.
func Token(c *fiber.Ctx) string {
	return c.Cookies(CookieName)
}
