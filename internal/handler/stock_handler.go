package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"frozen-pos/internal/model"
	"frozen-pos/internal/service"
)

type StockHandler struct {
	service service.StockService
	log     *zap.Logger
}

func NewStockHandler(s service.StockService, log *zap.Logger) *StockHandler {
	return &StockHandler{service: s, log: log}
}

// GET /api/v1/stock-logs?product_id=&order_id=&type=&limit=
func (h *StockHandler) GetLogs(c *fiber.Ctx) error {
	productID, ok := queryUint(c, "product_id")
	if !ok {
		return badRequest(c, "Invalid product_id")
	}
	orderID, ok := queryUint(c, "order_id")
	if !ok {
		return badRequest(c, "Invalid order_id")
	}

	logs, err := h.service.ListLogs(c.UserContext(), service.StockLogFilter{
		ProductID: productID,
		OrderID:   orderID,
		Type:      model.StockLogType(c.Query("type")),
		Limit:     c.QueryInt("limit", 0),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(logs)
}

func (h *StockHandler) GetLog(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid stock log ID")
	}
	entry, err := h.service.GetLog(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(entry)
}

func (h *StockHandler) RecordMovement(c *fiber.Ctx) error {
	var req service.RecordMovementRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	entry, err := h.service.RecordMovement(c.UserContext(), actorFrom(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Stock movement recorded", "data": entry})
}

// UpdateNotes handles PATCH /api/v1/stock-logs/:id/notes
func (h *StockHandler) UpdateNotes(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid stock log ID")
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	entry, err := h.service.UpdateNotes(c.UserContext(), actorFrom(c), id, req.Notes)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Notes updated", "data": entry})
}

// ReverseMovement handles DELETE /api/v1/stock-logs/:id. The entry stays;
// a compensating adjustment is written instead.
func (h *StockHandler) ReverseMovement(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid stock log ID")
	}
	reversal, err := h.service.ReverseMovement(c.UserContext(), actorFrom(c), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"message": "Stock movement reversed", "data": reversal})
}
