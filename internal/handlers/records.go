package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"finrecord/api/internal/models"
	"finrecord/api/internal/service"
)

func recordFilterFromQuery(c *fiber.Ctx) models.RecordFilter {
	filter := models.RecordFilter{
		Category:      c.Query("category"),
		ChildCategory: c.Query("childCategory"),
		PaymentMethod: c.Query("paymentMethod"),
	}
	if raw := c.Query("amount"); raw != "" {
		if amount, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.Amount = &amount
		}
	}
	if raw := c.Query("originalAmount"); raw != "" {
		if amount, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.OriginalAmount = &amount
		}
	}
	return filter
}

func (h HandlerSet) ListRecords(c *fiber.Ctx) error {
	records, total, err := h.records.ListForAccount(
		c.UserContext(), c.Params("userId"), recordFilterFromQuery(c), pageFromQuery(c))
	if err != nil {
		return h.licenseFailure(c, err)
	}
	if records == nil {
		records = []models.FinancialRecord{}
	}
	exposeTotal(c, total)
	return c.Status(fiber.StatusOK).JSON(records)
}

func (h HandlerSet) CreateRecord(c *fiber.Ctx) error {
	var in service.CreateRecordInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	rec, err := h.records.Create(c.UserContext(), c.Params("userId"), in)
	if err != nil {
		return h.licenseFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(rec)
}

func (h HandlerSet) UpdateRecord(c *fiber.Ctx) error {
	var patch service.RecordPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	rec, err := h.records.Update(c.UserContext(), c.Params("userId"), c.Params("id"), patch)
	if err != nil {
		return h.licenseFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(rec)
}

func (h HandlerSet) DeleteRecord(c *fiber.Ctx) error {
	if err := h.records.Delete(c.UserContext(), c.Params("userId"), c.Params("id")); err != nil {
		return h.licenseFailure(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Record deleted successfully"})
}
