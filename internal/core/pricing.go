package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineAmounts are the derived monetary fields of one order line. Each stage
// is rounded to 2 decimals (half away from zero) before feeding the next so
// that repeated edits never accumulate drift, and identical inputs always
// produce identical stored amounts.
type LineAmounts struct {
	Gross          decimal.Decimal `json:"gross"`
	Base           decimal.Decimal `json:"base"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// ComputeLine derives the monetary fields of a single line:
//
//	gross = qty × unitPrice
//	base  = gross × (1 − discountPct/100)
//	tax   = base × taxPct/100
//	total = base + tax
func ComputeLine(qty, unitPrice, discountPct, taxPct decimal.Decimal) LineAmounts {
	gross := qty.Mul(unitPrice).Round(2)
	base := gross.Mul(hundred.Sub(discountPct)).Div(hundred).Round(2)
	taxAmount := base.Mul(taxPct).Div(hundred).Round(2)
	total := base.Add(taxAmount)
	return LineAmounts{
		Gross:          gross,
		Base:           base,
		TaxAmount:      taxAmount,
		Total:          total,
		DiscountAmount: gross.Sub(base),
	}
}

// OrderAmounts are the header-level aggregates persisted after a replace.
type OrderAmounts struct {
	Base                  decimal.Decimal `json:"base"`
	Tax                   decimal.Decimal `json:"tax"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DiscountPct           decimal.Decimal `json:"discount_pct"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	Total                 decimal.Decimal `json:"total"`
	LineDiscountTotal     decimal.Decimal `json:"line_discount_total"`
	CombinedDiscountTotal decimal.Decimal `json:"combined_discount_total"`
}

// ComputeOrderAggregates sums the line amounts and applies the order-level
// discount percentage to the subtotal.
func ComputeOrderAggregates(lines []LineAmounts, orderDiscountPct decimal.Decimal) OrderAmounts {
	agg := OrderAmounts{DiscountPct: orderDiscountPct}
	for _, l := range lines {
		agg.Base = agg.Base.Add(l.Base)
		agg.Tax = agg.Tax.Add(l.TaxAmount)
		agg.Subtotal = agg.Subtotal.Add(l.Total)
		agg.LineDiscountTotal = agg.LineDiscountTotal.Add(l.DiscountAmount)
	}
	agg.DiscountAmount = agg.Subtotal.Mul(orderDiscountPct).Div(hundred).Round(2)
	agg.Total = agg.Subtotal.Sub(agg.DiscountAmount)
	agg.CombinedDiscountTotal = agg.LineDiscountTotal.Add(agg.DiscountAmount)
	return agg
}
