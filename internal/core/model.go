package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferOrderType marks non-valued transfer orders: line prices are forced
// to zero and the order-level discount is always 0.
const TransferOrderType = "Transfer"

// ListPriceTariffID is the sentinel price list holding default (PVL) prices.
const ListPriceTariffID = 0

// Order is a sales order header with its current line set.
type Order struct {
	ID                int             `json:"id"`
	Number            string          `json:"number"`
	ClientID          int             `json:"client_id"`
	ShippingAddressID *int            `json:"shipping_address_id,omitempty"`
	TariffID          int             `json:"tariff_id"`
	StatusID          *int            `json:"status_id,omitempty"`
	Status            string          `json:"status,omitempty"`
	OrderDate         string          `json:"order_date,omitempty"` // YYYY-MM-DD
	Base              decimal.Decimal `json:"base"`
	Tax               decimal.Decimal `json:"tax"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	DiscountPct       decimal.Decimal `json:"discount_pct"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	Total             decimal.Decimal `json:"total"`
	Special           bool            `json:"special"`
	OrderType         string          `json:"order_type,omitempty"`
	Lines             []OrderLine     `json:"lines"`
}

// OrderLine is one persisted line. Every monetary field is server-computed;
// caller-supplied prices are never trusted.
type OrderLine struct {
	ID           int             `json:"id,omitempty"`
	OrderID      int             `json:"order_id,omitempty"`
	ArticleID    int             `json:"article_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DiscountPct  decimal.Decimal `json:"discount_pct"`
	TaxPct       decimal.Decimal `json:"tax_pct"`
	Base         decimal.Decimal `json:"base"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	Total        decimal.Decimal `json:"total"`
	PriceMissing bool            `json:"price_missing,omitempty"`
}

/// OrderLineInput is the caller's view of a line: an article, a quantity and
// optionally an explicit line discount. DiscountPct nil means "use the
// default for the order mode" (0%, or 5% on transfer orders).
type OrderLineInput struct {
	ArticleID   int              `json:"article_id"`
	Quantity    decimal.Decimal  `json:"quantity"`
	DiscountPct *decimal.Decimal `json:"discount_pct,omitempty"`
}

// OrderInput carries the header fields accepted on create.
// TariffID 0 means "use the client's assigned tariff".
type OrderInput struct {
	ClientID          int             `json:"client_id"`
	ShippingAddressID *int            `json:"shipping_address_id,omitempty"`
	TariffID          int             `json:"tariff_id,omitempty"`
	StatusCode        string          `json:"status_code,omitempty"`
	Special           bool            `json:"special,omitempty"`
	ManualDiscountPct decimal.Decimal `json:"manual_discount_pct,omitempty"`
	OrderType         string          `json:"order_type,omitempty"`
	OrderDate         string          `json:"order_date,omitempty"`
	Year              int             `json:"year,omitempty"` // 0 = current year
}

// HeaderPatch applies partial header changes during a line replace.
// Nil fields are left untouched.
type HeaderPatch struct {
	ClientID          *int             `json:"client_id,omitempty"`
	ShippingAddressID *int             `json:"shipping_address_id,omitempty"`
	TariffID          *int             `json:"tariff_id,omitempty"`
	StatusCode        *string          `json:"status_code,omitempty"`
	Special           *bool            `json:"special,omitempty"`
	ManualDiscountPct *decimal.Decimal `json:"manual_discount_pct,omitempty"`
	OrderType         *string          `json:"order_type,omitempty"`
	OrderDate         *string          `json:"order_date,omitempty"`
}

// OrderMode drives pricing and discount resolution for one operation.
type OrderMode int

const (
	ModeNormal OrderMode = iota
	ModeSpecial
	ModeTransfer
)

func (m OrderMode) String() string {
	switch m {
	case ModeSpecial:
		return "special"
	case ModeTransfer:
		return "transfer"
	}
	return "normal"
}

// ReplaceResult reports what one atomic replace committed.
type ReplaceResult struct {
	UpdatedHeaderCount int          `json:"updated_header_count"`
	DeletedLineCount   int          `json:"deleted_line_count"`
	InsertedLineCount  int          `json:"inserted_line_count"`
	FlaggedLineCount   int          `json:"flagged_line_count"`
	Totals             OrderAmounts `json:"totals"`
	ResolvedTariffID   int          `json:"resolved_tariff_id"`
}

type DeleteResult struct {
	DeletedHeader int `json:"deleted_header"`
	DeletedLines  int `json:"deleted_lines"`
}

// Tariff is a named price list with an optional validity window.
type Tariff struct {
	ID        int        `json:"id"`
	Name      string     `json:"name,omitempty"`
	Active    bool       `json:"active"`
	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
}

// EffectiveAt reports whether the tariff may price orders at asOf.
// Open bounds are allowed on either side of the window.
func (t Tariff) EffectiveAt(asOf time.Time) bool {
	if !t.Active {
		return false
	}
	if t.ValidFrom != nil && asOf.Before(*t.ValidFrom) {
		return false
	}
	if t.ValidTo != nil && asOf.After(*t.ValidTo) {
		return false
	}
	return true
}

// DiscountTier maps a subtotal range to an order-level discount percentage.
// To nil means the range is open-ended.
type DiscountTier struct {
	ID       int              `json:"id,omitempty"`
	From     decimal.Decimal  `json:"from"`
	To       *decimal.Decimal `json:"to,omitempty"`
	Pct      decimal.Decimal  `json:"pct"`
	Active   bool             `json:"active"`
	Position int              `json:"position"`
}

// OrderStatus is one row of the status catalog.
type OrderStatus struct {
	ID       int    `json:"id"`
	Code     string `json:"code,omitempty"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Active   bool   `json:"active"`
	Position int    `json:"position"`
}

// Article is the slice of the article master this engine needs.
// BasePrice nil means the article has no list price on record.
type Article struct {
	ID        int              `json:"id"`
	Name      string           `json:"name,omitempty"`
	BasePrice *decimal.Decimal `json:"base_price,omitempty"`
	TaxPct    decimal.Decimal  `json:"tax_pct"`
}
