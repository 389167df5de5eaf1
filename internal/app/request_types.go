package app

import "github.com/shopspring/decimal"

// LineRequest is one requested order line. Monetary fields are always
// computed server-side; the caller only chooses article, quantity and
// optionally an explicit line discount.
type LineRequest struct {
	ArticleID   int              `json:"article_id"`
	Quantity    decimal.Decimal  `json:"quantity"`
	DiscountPct *decimal.Decimal `json:"discount_pct,omitempty"`
}

// CreateOrderRequest carries everything needed to create an order.
// TariffID 0 means the client's assigned tariff; Year 0 means the current
// year.
type CreateOrderRequest struct {
	ClientID          int             `json:"client_id"`
	ShippingAddressID *int            `json:"shipping_address_id,omitempty"`
	TariffID          int             `json:"tariff_id,omitempty"`
	StatusCode        string          `json:"status_code,omitempty"`
	Special           bool            `json:"special,omitempty"`
	ManualDiscountPct decimal.Decimal `json:"manual_discount_pct,omitempty"`
	OrderType         string          `json:"order_type,omitempty"`
	OrderDate         string          `json:"order_date,omitempty"`
	Year              int             `json:"year,omitempty"`
	Lines             []LineRequest   `json:"lines"`
}

// ReplaceLinesRequest is the full-replacement payload: the new line set plus
// any header fields changing alongside it. Nil header fields stay untouched.
type ReplaceLinesRequest struct {
	ClientID          *int             `json:"client_id,omitempty"`
	ShippingAddressID *int             `json:"shipping_address_id,omitempty"`
	TariffID          *int             `json:"tariff_id,omitempty"`
	StatusCode        *string          `json:"status_code,omitempty"`
	Special           *bool            `json:"special,omitempty"`
	ManualDiscountPct *decimal.Decimal `json:"manual_discount_pct,omitempty"`
	OrderType         *string          `json:"order_type,omitempty"`
	OrderDate         *string          `json:"order_date,omitempty"`
	Lines             []LineRequest    `json:"lines"`
}
