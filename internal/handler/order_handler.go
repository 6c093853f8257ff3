package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"frozen-pos/internal/model"
	"frozen-pos/internal/service"
)

type OrderHandler struct {
	service service.OrderService
	log     *zap.Logger
}

func NewOrderHandler(s service.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{service: s, log: log}
}

// GET /api/v1/orders?status=&cashier_id=
func (h *OrderHandler) GetOrders(c *fiber.Ctx) error {
	filter := service.OrderFilter{Status: model.OrderStatus(c.Query("status"))}
	if raw := c.Query("cashier_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "Invalid cashier_id")
		}
		filter.CashierID = &id
	}

	orders, err := h.service.ListOrders(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	order, err := h.service.GetOrder(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(order)
}

func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req service.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	order, err := h.service.CreateOrder(c.UserContext(), actorFrom(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Order created", "data": order})
}

// UpdateOrder handles status transitions and payment edits.
// PUT /api/v1/orders/:id
func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	var req service.UpdateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	order, err := h.service.UpdateOrder(c.UserContext(), actorFrom(c), id, req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Order updated", "data": order})
}

func (h *OrderHandler) DeleteOrder(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	if err := h.service.DeleteOrder(c.UserContext(), actorFrom(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Order deleted"})
}

// POST /api/v1/orders/:id/items
func (h *OrderHandler) AddItem(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order ID")
	}
	var req service.AddOrderItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	item, err := h.service.AddOrderItem(c.UserContext(), actorFrom(c), id, req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Item added", "data": item})
}

// PUT /api/v1/order-items/:id
func (h *OrderHandler) UpdateItem(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order item ID")
	}
	var req service.UpdateOrderItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	item, err := h.service.UpdateOrderItem(c.UserContext(), actorFrom(c), id, req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Item updated", "data": item})
}

// DELETE /api/v1/order-items/:id
func (h *OrderHandler) DeleteItem(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid order item ID")
	}
	if err := h.service.DeleteOrderItem(c.UserContext(), actorFrom(c), id); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Item deleted"})
}
