package app

import (
	"context"

	"order-engine/internal/core"
)

// Service is the single interface all adapters (web, CLI) call. It decouples
// presentation from the transactional core. Implementations must contain no
// display logic of any kind.
type Service interface {
	// CreateOrder persists a new order with server-computed pricing and a
	// freshly issued per-year order number.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error)

	// ReplaceOrderLines atomically swaps the order's entire line set and
	// recomputes all monetary fields. Optional header fields travel in the
	// same request and commit in the same transaction.
	ReplaceOrderLines(ctx context.Context, orderID int, req ReplaceLinesRequest) (*ReplaceResult, error)

	// DeleteOrder removes the order header together with its lines.
	DeleteOrder(ctx context.Context, orderID int) (*DeleteResult, error)

	// GetOrder returns one order with its lines.
	GetOrder(ctx context.Context, orderID int) (*OrderResult, error)

	// ListOrders returns order headers, newest first, optionally filtered by
	// client.
	ListOrders(ctx context.Context, clientID *int) (*OrderListResult, error)

	// NextOrderNumber previews the next number for a year without reserving it.
	NextOrderNumber(ctx context.Context, year int) (*NextNumberResult, error)

	// ListDiscountTiers returns the active volume discount catalog.
	ListDiscountTiers(ctx context.Context) (*TierListResult, error)

	// ListOrderStatuses returns the active order status catalog.
	ListOrderStatuses(ctx context.Context) (*StatusListResult, error)
}

// OrderResult is returned by every operation that yields a full order.
type OrderResult struct {
	Order *core.Order `json:"order"`
}

// OrderListResult is returned by ListOrders.
type OrderListResult struct {
	Orders []core.Order `json:"orders"`
}

// ReplaceResult is returned by ReplaceOrderLines.
type ReplaceResult struct {
	Result *core.ReplaceResult `json:"result"`
}

// DeleteResult is returned by DeleteOrder.
type DeleteResult struct {
	Result *core.DeleteResult `json:"result"`
}

// NextNumberResult is returned by NextOrderNumber.
type NextNumberResult struct {
	Year   int    `json:"year"`
	Number string `json:"number"`
}

// TierListResult is returned by ListDiscountTiers.
type TierListResult struct {
	Tiers []core.DiscountTier `json:"tiers"`
}

// StatusListResult is returned by ListOrderStatuses.
type StatusListResult struct {
	Statuses []core.OrderStatus `json:"statuses"`
}
