package models

import "time"

type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for a position opened with s.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideNone
	}
}

type OrderKind string

const (
	OrderLimit  OrderKind = "limit"
	OrderMarket OrderKind = "market"
)

type OrderStatus string

const (
	OrderSubmitting OrderStatus = "submitting"
	OrderWorking    OrderStatus = "working"
	OrderPartFilled OrderStatus = "partial_filled"
	OrderFilled     OrderStatus = "filled"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRejected   OrderStatus = "rejected"
)

// Terminal reports whether no further broker updates can change the order.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected:
		return true
	default:
		return false
	}
}

// OrderRecord is the locally cached view of one broker order.
type OrderRecord struct {
	OrderID   string
	Symbol    string
	Side      Side
	Kind      OrderKind
	Price     float64
	Quantity  float64
	Filled    float64
	Status    OrderStatus
	UpdatedAt time.Time
}

// OrderRequest is what the bot asks the broker to do.
type OrderRequest struct {
	Symbol   string
	Side     Side
	Kind     OrderKind
	Price    float64
	Quantity float64
}
