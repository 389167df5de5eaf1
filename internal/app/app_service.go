package app

import (
	"context"
	"time"

	"order-engine/internal/core"
)

type appService struct {
	orders *core.OrderService
}

// NewService constructs the facade over the transactional core.
func NewService(orders *core.OrderService) Service {
	return &appService{orders: orders}
}

func lineInputs(lines []LineRequest) []core.OrderLineInput {
	out := make([]core.OrderLineInput, len(lines))
	for i, l := range lines {
		out[i] = core.OrderLineInput{
			ArticleID:   l.ArticleID,
			Quantity:    l.Quantity,
			DiscountPct: l.DiscountPct,
		}
	}
	return out
}

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	order, err := s.orders.CreateOrder(ctx, core.OrderInput{
		ClientID:          req.ClientID,
		ShippingAddressID: req.ShippingAddressID,
		TariffID:          req.TariffID,
		StatusCode:        req.StatusCode,
		Special:           req.Special,
		ManualDiscountPct: req.ManualDiscountPct,
		OrderType:         req.OrderType,
		OrderDate:         req.OrderDate,
		Year:              req.Year,
	}, lineInputs(req.Lines))
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) ReplaceOrderLines(ctx context.Context, orderID int, req ReplaceLinesRequest) (*ReplaceResult, error) {
	patch := core.HeaderPatch{
		ClientID:          req.ClientID,
		ShippingAddressID: req.ShippingAddressID,
		TariffID:          req.TariffID,
		StatusCode:        req.StatusCode,
		Special:           req.Special,
		ManualDiscountPct: req.ManualDiscountPct,
		OrderType:         req.OrderType,
		OrderDate:         req.OrderDate,
	}
	result, err := s.orders.ReplaceOrderLines(ctx, orderID, patch, lineInputs(req.Lines))
	if err != nil {
		return nil, err
	}
	return &ReplaceResult{Result: result}, nil
}

func (s *appService) DeleteOrder(ctx context.Context, orderID int) (*DeleteResult, error) {
	result, err := s.orders.DeleteOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{Result: result}, nil
}

func (s *appService) GetOrder(ctx context.Context, orderID int) (*OrderResult, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) ListOrders(ctx context.Context, clientID *int) (*OrderListResult, error) {
	orders, err := s.orders.ListOrders(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders}, nil
}

func (s *appService) NextOrderNumber(ctx context.Context, year int) (*NextNumberResult, error) {
	if year == 0 {
		year = time.Now().Year()
	}
	number, err := s.orders.GetNextOrderNumber(ctx, year)
	if err != nil {
		return nil, err
	}
	return &NextNumberResult{Year: year, Number: number}, nil
}

func (s *appService) ListDiscountTiers(ctx context.Context) (*TierListResult, error) {
	tiers, err := s.orders.DiscountTiers(ctx)
	if err != nil {
		return nil, err
	}
	return &TierListResult{Tiers: tiers}, nil
}

func (s *appService) ListOrderStatuses(ctx context.Context) (*StatusListResult, error) {
	statuses, err := s.orders.OrderStatuses(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusListResult{Statuses: statuses}, nil
}
