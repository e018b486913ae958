package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"finrecord/api/internal/models"
	"finrecord/api/internal/service"
	"finrecord/api/internal/session"
)

// authFailure maps the credential-flow errors to their wire statuses. The
// message text is the contract; only the shape varies per error.
func (h HandlerSet) authFailure(c *fiber.Ctx, err error) error {
	var registered *service.AlreadyRegisteredError
	if errors.As(err, &registered) {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"email": registered.Email,
			"error": registered.Error(),
		})
	}
	var weak *service.WeakPasswordError
	if errors.As(err, &weak) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": weak.Reason})
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrUserNotFound):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrIncorrectPassword):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrTooManyAccounts):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   err.Error(),
			"message": service.TooManyAccountsMessage,
		})
	case errors.Is(err, service.ErrEmailRequired),
		errors.Is(err, service.ErrPasswordRequired),
		errors.Is(err, service.ErrIncorrectEmail),
		errors.Is(err, service.ErrEmailOrNameTooLong):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	h.log.Error().Err(err).Str("path", c.Path()).Msg("auth operation failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func (h HandlerSet) RegisterAccount(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	in.IP = c.IP()

	account, accessToken, err := h.auth.Register(c.UserContext(), in)
	if err != nil {
		return h.authFailure(c, err)
	}

	h.cookies.Set(c, accessToken, 0)
	return c.Status(fiber.StatusOK).JSON(account)
}

func (h HandlerSet) Login(c *fiber.Ctx) error {
	var in service.LoginInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	account, accessToken, err := h.auth.Login(c.UserContext(), in)
	if err != nil {
		return h.authFailure(c, err)
	}

	if accessToken != "" {
		h.cookies.Set(c, accessToken, 0)
	}
	return c.Status(fiber.StatusOK).JSON(account)
}

func (h HandlerSet) Logout(c *fiber.Ctx) error {
	h.cookies.Clear(c)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "User logged out"})
}

type refreshRequest struct {
	Token  string   `json:"token"`
	MaxAge *float64 `json:"maxAge"`
}

// RefreshToken exchanges a refresh token for a new access token. The token
// and the optional cookie age in milliseconds come from the body or the query
// string.
func (h HandlerSet) RefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	_ = c.BodyParser(&req)

	if req.Token == "" {
		req.Token = c.Query("token")
	}
	if req.MaxAge == nil {
		if raw := c.Query("maxAge"); raw != "" {
			if ms, err := strconv.ParseFloat(raw, 64); err == nil {
				req.MaxAge = &ms
			}
		}
	}

	var maxAge time.Duration
	if req.MaxAge != nil && *req.MaxAge > 0 {
		maxAge = time.Duration(*req.MaxAge) * time.Millisecond
	}

	accessToken, err := h.auth.Refresh(c.UserContext(), req.Token, maxAge)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshTokenMissing):
			return c.SendStatus(fiber.StatusUnauthorized)
		case errors.Is(err, service.ErrRefreshTokenRejected):
			return c.SendStatus(fiber.StatusForbidden)
		case errors.Is(err, service.ErrUserNotFound):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error().Err(err).Msg("refresh failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	h.cookies.Set(c, accessToken, maxAge)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"accessToken": accessToken})
}

type passwordResetRequest struct {
	Password string          `json:"password"`
	Provider models.Provider `json:"provider"`
}

func (h HandlerSet) ResetPassword(c *fiber.Ctx) error {
	var req passwordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	accessToken, err := h.auth.ResetPassword(c.UserContext(), c.Params("id"), req.Password, req.Provider)
	if err != nil {
		return h.authFailure(c, err)
	}

	h.cookies.Set(c, accessToken, 0)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":     "Your password changed successful",
		"accessToken": accessToken,
	})
}

// sessionLookup resolves a session token to its account. No token answers 201
// so browser clients can treat "signed out" as a non-error; a dead token
// clears the cookie.
func (h HandlerSet) sessionLookup(c *fiber.Ctx, token string) error {
	account, err := h.auth.SessionFromToken(c.UserContext(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoSession):
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{"error": "no session"})
		case errors.Is(err, service.ErrUserNotFound):
			h.cookies.Clear(c)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(account)
}

// BrowserSession reads the cookie-held session, gated to browser callers.
func (h HandlerSet) BrowserSession(c *fiber.Ctx) error {
	if !strings.HasPrefix(c.Get(fiber.HeaderUserAgent), "Mozilla/") {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "no session"})
	}
	return h.sessionLookup(c, session.Token(c))
}

type tokenSessionRequest struct {
	Token string `json:"token"`
}

// TokenSession resolves an explicitly provided session token.
func (h HandlerSet) TokenSession(c *fiber.Ctx) error {
	var req tokenSessionRequest
	_ = c.BodyParser(&req)
	return h.sessionLookup(c, req.Token)
}
