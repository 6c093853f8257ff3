package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"frozen-pos/internal/service"
)

type ReportHandler struct {
	service service.ReportService
	loc     *time.Location
	log     *zap.Logger
}

func NewReportHandler(s service.ReportService, loc *time.Location, log *zap.Logger) *ReportHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportHandler{service: s, loc: loc, log: log}
}

// GET /api/v1/reports/summary?from=&to=
func (h *ReportHandler) GetSummary(c *fiber.Ctx) error {
	from, to, ok := queryRange(c, h.loc)
	if !ok {
		return badRequest(c, "Invalid from/to; use RFC3339 or YYYY-MM-DD")
	}
	summary, err := h.service.Summary(c.UserContext(), from, to)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(summary)
}

// GET /api/v1/reports/sales-trend?days=7
func (h *ReportHandler) GetSalesTrend(c *fiber.Ctx) error {
	trend, err := h.service.SalesTrend(c.UserContext(), c.QueryInt("days", 7))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(trend)
}

// GET /api/v1/reports/top-products?from=&to=&limit=5
func (h *ReportHandler) GetTopProducts(c *fiber.Ctx) error {
	from, to, ok := queryRange(c, h.loc)
	if !ok {
		return badRequest(c, "Invalid from/to; use RFC3339 or YYYY-MM-DD")
	}
	top, err := h.service.TopProducts(c.UserContext(), from, to, c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(top)
}

// GET /api/v1/reports/stock-movement?days=7
func (h *ReportHandler) GetStockMovement(c *fiber.Ctx) error {
	data, err := h.service.StockMovement(c.UserContext(), c.QueryInt("days", 7))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(data)
}

func (h *ReportHandler) GetDashboard(c *fiber.Ctx) error {
	stats, err := h.service.Dashboard(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(stats)
}

// GetReconciliation lists products whose stock drifted from their log.
func (h *ReportHandler) GetReconciliation(c *fiber.Ctx) error {
	mismatches, err := h.service.Reconcile(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(fiber.Map{"consistent": len(mismatches) == 0, "mismatches": mismatches})
}
