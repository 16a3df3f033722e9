package service

import (
	"time"

	"intraday_bot/internal/models"
	"intraday_bot/pkg/logger"
)

// wireOrder is the gateway's order representation.
type wireOrder struct {
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`       // "buy" / "sell"
	OrderType string  `json:"order_type"` // "limit" / "market"
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Filled    float64 `json:"filled_quantity"`
	Status    string  `json:"status"`
	UpdatedAt int64   `json:"updated_at"` // unix milliseconds
}

type submitRequest struct {
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	OrderType string  `json:"order_type"`
	Price     float64 `json:"price,omitempty"`
	Quantity  float64 `json:"quantity"`
}

type submitResponse struct {
	OrderID string `json:"order_id"`
	Error   string `json:"error,omitempty"`
}

type cancelResponse struct {
	Cancelled bool   `json:"cancelled"`
	Error     string `json:"error,omitempty"`
}

type ordersResponse struct {
	Orders []wireOrder `json:"orders"`
}

// statusFromWire maps gateway statuses onto the local order life cycle.
// Unknown values map to working: treating a live order as dead is the
// only dangerous mistake here.
func statusFromWire(s string) models.OrderStatus {
	switch s {
	case "submitting", "pending":
		return models.OrderSubmitting
	case "submitted", "working", "accepted":
		return models.OrderWorking
	case "partial_filled", "partially_filled":
		return models.OrderPartFilled
	case "filled":
		return models.OrderFilled
	case "cancelled", "canceled":
		return models.OrderCancelled
	case "rejected":
		return models.OrderRejected
	default:
		logger.Warn("broker: unknown order status %q, treating as working", s)
		return models.OrderWorking
	}
}

func sideToWire(s models.Side) string {
	if s == models.SideSell {
		return "sell"
	}
	return "buy"
}

func sideFromWire(s string) models.Side {
	if s == "sell" {
		return models.SideSell
	}
	return models.SideBuy
}

func kindToWire(k models.OrderKind) string {
	if k == models.OrderMarket {
		return "market"
	}
	return "limit"
}

func kindFromWire(s string) models.OrderKind {
	if s == "market" {
		return models.OrderMarket
	}
	return models.OrderLimit
}

func recordFromWire(w wireOrder) models.OrderRecord {
	return models.OrderRecord{
		OrderID:   w.OrderID,
		Symbol:    w.Symbol,
		Side:      sideFromWire(w.Side),
		Kind:      kindFromWire(w.OrderType),
		Price:     w.Price,
		Quantity:  w.Quantity,
		Filled:    w.Filled,
		Status:    statusFromWire(w.Status),
		UpdatedAt: time.UnixMilli(w.UpdatedAt),
	}
}
