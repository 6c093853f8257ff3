package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"frozen-pos/internal/events"
)

var tracer = otel.Tracer("frozen-pos/service")

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID    uuid.UUID
	Name  string
	Email string
}

func (a Actor) audit() string {
	return a.ID.String()
}

func (a Actor) event() *events.Actor {
	return &events.Actor{ID: a.ID.String(), Name: a.Name, Email: a.Email}
}

func (a Actor) display() string {
	if a.Name != "" {
		return a.Name
	}
	return "system"
}

func productKey(id uint) string { return fmt.Sprintf("product-%d", id) }
func orderKey(id uint) string   { return fmt.Sprintf("order-%d", id) }

// Payment methods the counter offers. Anything else is stored upper-cased.
const (
	PaymentCash     = "CASH"
	PaymentTransfer = "TRANSFER"
	PaymentQRIS     = "QRIS"
	PaymentCard     = "CARD"
)

func normalizePaymentMethod(m string) string {
	return strings.ToUpper(strings.TrimSpace(m))
}
