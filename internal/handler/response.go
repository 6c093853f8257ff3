package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"frozen-pos/internal/service"
	"frozen-pos/pkg/apperror"
)

var statusByKind = map[apperror.Kind]int{
	apperror.KindValidation:        fiber.StatusBadRequest,
	apperror.KindNotFound:          fiber.StatusNotFound,
	apperror.KindConflict:          fiber.StatusConflict,
	apperror.KindInsufficientStock: fiber.StatusConflict,
	apperror.KindInconsistentState: fiber.StatusInternalServerError,
	apperror.KindTransient:         fiber.StatusServiceUnavailable,
	apperror.KindUnauthorized:      fiber.StatusUnauthorized,
	apperror.KindInternal:          fiber.StatusInternalServerError,
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	if status, ok := statusByKind[apperror.KindOf(err)]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// respondError writes {"error", "kind"}. Server-side failures are logged
// with their cause, clients only see the message.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := StatusOf(err)
	kind := apperror.KindOf(err)
	if status >= fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": apperror.MessageOf(err),
		"kind":  kind,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
		"kind":  apperror.KindValidation,
	})
}

// Helper untuk ambil User Info dari JWT Context (set by auth middleware)
func actorFrom(c *fiber.Ctx) service.Actor {
	actor := service.Actor{}
	if id, ok := c.Locals("user_id").(string); ok {
		actor.ID, _ = uuid.Parse(id)
	}
	if name, ok := c.Locals("user_name").(string); ok {
		actor.Name = name
	}
	if email, ok := c.Locals("user_email").(string); ok {
		actor.Email = email
	}
	return actor
}

func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *fiber.Ctx, key string) (*uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	id := uint(v)
	return &id, true
}

// queryRange reads from/to as RFC3339 or YYYY-MM-DD; to defaults to now
// and from to seven days before to.
func queryRange(c *fiber.Ctx, loc *time.Location) (time.Time, time.Time, bool) {
	to := time.Now().In(loc)
	if raw := c.Query("to"); raw != "" {
		t, ok := parseTime(raw, loc)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		to = t
	}
	from := to.AddDate(0, 0, -7)
	if raw := c.Query("from"); raw != "" {
		t, ok := parseTime(raw, loc)
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		from = t
	}
	return from, to, true
}

func parseTime(raw string, loc *time.Location) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}
