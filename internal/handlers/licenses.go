package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"finrecord/api/internal/models"
	"finrecord/api/internal/service"
)

func licenseFilterFromQuery(c *fiber.Ctx) models.LicenseFilter {
	return models.LicenseFilter{
		ProductID:     c.Query("productId"),
		Status:        c.Query("status"),
		ToolName:      c.Query("toolName"),
		Category:      c.Query("category"),
		PaymentMethod: c.Query("paymentMethod"),
	}
}

func (h HandlerSet) licenseFailure(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrRecordMissing):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("license operation failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func (h HandlerSet) ListLicenses(c *fiber.Ctx) error {
	licenses, total, err := h.licenses.ListForAccount(
		c.UserContext(), c.Params("userId"), licenseFilterFromQuery(c), pageFromQuery(c))
	if err != nil {
		return h.licenseFailure(c, err)
	}
	if licenses == nil {
		licenses = []models.License{}
	}
	exposeTotal(c, total)
	return c.Status(fiber.StatusOK).JSON(licenses)
}

func (h HandlerSet) GetLicense(c *fiber.Ctx) error {
	lic, err := h.licenses.GetForAccount(c.UserContext(), c.Params("userId"), c.Params("id"))
	if err != nil {
		return h.licenseFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(lic)
}

func (h HandlerSet) CreateLicense(c *fiber.Ctx) error {
	var in service.GrantInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	lic, err := h.licenses.Grant(c.UserContext(), c.Params("userId"), in)
	if err != nil {
		return h.licenseFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(lic)
}

func (h HandlerSet) UpdateLicense(c *fiber.Ctx) error {
	var patch service.LicensePatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	lic, err := h.licenses.Update(c.UserContext(), c.Params("userId"), c.Params("id"), patch)
	if err != nil {
		return h.licenseFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(lic)
}

func (h HandlerSet) DeleteLicense(c *fiber.Ctx) error {
	if err := h.licenses.Delete(c.UserContext(), c.Params("userId"), c.Params("id")); err != nil {
		return h.licenseFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Record deleted successfully"})
}
