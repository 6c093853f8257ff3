package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"frozen-pos/internal/service"
)

type ProductHandler struct {
	service service.ProductService
	log     *zap.Logger
}

func NewProductHandler(s service.ProductService, log *zap.Logger) *ProductHandler {
	return &ProductHandler{service: s, log: log}
}

// GET /api/v1/products?category_id=&active=true&low_stock_below=&q=
func (h *ProductHandler) GetProducts(c *fiber.Ctx) error {
	categoryID, ok := queryUint(c, "category_id")
	if !ok {
		return badRequest(c, "Invalid category_id")
	}
	filter := service.ProductFilter{
		CategoryID: categoryID,
		ActiveOnly: c.QueryBool("active", false),
		Search:     c.Query("q"),
	}
	if raw := c.Query("low_stock_below"); raw != "" {
		below := c.QueryInt("low_stock_below", -1)
		if below < 0 {
			return badRequest(c, "Invalid low_stock_below")
		}
		filter.LowStockBelow = &below
	}

	products, err := h.service.ListProducts(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(products)
}

func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid product ID")
	}
	product, err := h.service.GetProduct(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(product)
}

func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	product, err := h.service.CreateProduct(c.UserContext(), actorFrom(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Product created", "data": product})
}

func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid product ID")
	}
	var req service.UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	updated, err := h.service.UpdateProduct(c.UserContext(), actorFrom(c), id, req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}

func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid product ID")
	}
	if err := h.service.DeleteProduct(c.UserContext(), actorFrom(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}
