package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"finrecord/api/internal/models"
	"finrecord/api/internal/service"
)

func withLicenses(c *fiber.Ctx) bool {
	return c.Query("_with_licenses") == "true"
}

func (h HandlerSet) ListUsers(c *fiber.Ctx) error {
	views, total, err := h.users.List(c.UserContext(), pageFromQuery(c), withLicenses(c))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if views == nil {
		views = []service.UserView{}
	}
	exposeTotal(c, total)
	return c.Status(fiber.StatusOK).JSON(views)
}

func (h HandlerSet) GetUser(c *fiber.Ctx) error {
	view, err := h.users.Get(c.UserContext(), c.Params("id"), withLicenses(c))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error(), "id": c.Params("id")})
	}
	return c.Status(fiber.StatusOK).JSON(view)
}

func (h HandlerSet) UpdateUser(c *fiber.Ctx) error {
	var patch service.UserPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	account, accessToken, err := h.users.Update(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrUsernameExists), errors.Is(err, service.ErrEmailExists):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error(), "id": c.Params("id")})
	}

	if accessToken != "" {
		h.cookies.Set(c, accessToken, 0)
	}
	return c.Status(fiber.StatusOK).JSON(account)
}

type deletedUserResponse struct {
	Message string `json:"message"`
	models.Account
}

func (h HandlerSet) DeleteUser(c *fiber.Ctx) error {
	account, err := h.users.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		var missing *service.NotFoundError
		if errors.As(err, &missing) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error(), "id": c.Params("id")})
	}
	return c.Status(fiber.StatusOK).JSON(deletedUserResponse{
		Message: "User deleted successful",
		Account: account,
	})
}

type bulkUpdateRequest struct {
	Records        []service.BulkUserUpdate `json:"records"`
	AllowCreateNew bool                     `json:"allowCreateNewRecord"`
}

type bulkFailure struct {
	Error string `json:"error"`
	ID    string `json:"id,omitempty"`
}

// BulkUpdateUsers applies many account patches in one request. Individual
// failures are reported inline; the call fails only when nothing succeeded.
func (h HandlerSet) BulkUpdateUsers(c *fiber.Ctx) error {
	var req bulkUpdateRequest
	if err := c.BodyParser(&req); err != nil || req.Records == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Please provide an records body"})
	}

	results, anyOK := h.users.BulkUpdate(c.UserContext(), req.Records, req.AllowCreateNew)

	if !anyOK {
		failures := make([]bulkFailure, 0, len(results))
		for _, result := range results {
			if !result.OK() {
				failures = append(failures, bulkFailure{Error: result.Err, ID: result.ID})
			}
		}
		return c.Status(fiber.StatusInternalServerError).JSON(failures)
	}

	out := make([]any, len(results))
	for i, result := range results {
		if result.OK() {
			out[i] = result.Account
		} else {
			out[i] = bulkFailure{Error: result.Err, ID: result.ID}
		}
	}
	return c.Status(fiber.StatusOK).JSON(out)
}
