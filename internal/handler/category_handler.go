package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"frozen-pos/internal/service"
)

type CategoryHandler struct {
	service service.CategoryService
	log     *zap.Logger
}

func NewCategoryHandler(s service.CategoryService, log *zap.Logger) *CategoryHandler {
	return &CategoryHandler{service: s, log: log}
}

func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(categories)
}

func (h *CategoryHandler) CreateCategory(c *fiber.Ctx) error {
	var req service.CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	category, err := h.service.CreateCategory(c.UserContext(), actorFrom(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Category created", "data": category})
}

func (h *CategoryHandler) DeleteCategory(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid category ID")
	}
	if err := h.service.DeleteCategory(c.UserContext(), actorFrom(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Category deleted"})
}
