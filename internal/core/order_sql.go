package core

import (
	"context"
	"errors"
	"fmt"

	"order-engine/internal/schema"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// All statements in this file interpolate identifiers resolved at discovery
// time (always through schema.QuoteIdent); values stay positional parameters.

type assignment struct {
	col string
	val any
}

type scanner interface {
	Scan(dest ...any) error
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// headerColumnsSQL lists the header columns in the canonical order
// scanOrder binds them: mandatory roles first, then whichever optional
// roles this deployment has.
func (s *OrderService) headerColumnsSQL() string {
	om := s.maps.Orders
	cols := []string{
		schema.QuoteIdent(om.ID),
		schema.QuoteIdent(om.Number),
		schema.QuoteIdent(om.ClientID),
		schema.QuoteIdent(om.Base),
		schema.QuoteIdent(om.Tax),
		schema.QuoteIdent(om.Subtotal),
		schema.QuoteIdent(om.DiscountPct),
		schema.QuoteIdent(om.Total),
	}
	if om.ShippingAddressID != "" {
		cols = append(cols, schema.QuoteIdent(om.ShippingAddressID))
	}
	if om.TariffID != "" {
		cols = append(cols, schema.QuoteIdent(om.TariffID))
	}
	if om.StatusID != "" {
		cols = append(cols, schema.QuoteIdent(om.StatusID))
	}
	if om.StatusText != "" {
		cols = append(cols, schema.QuoteIdent(om.StatusText))
	}
	if om.OrderDate != "" {
		cols = append(cols, schema.QuoteIdent(om.OrderDate)+"::text")
	}
	if om.DiscountAmount != "" {
		cols = append(cols, schema.QuoteIdent(om.DiscountAmount))
	}
	if om.Special != "" {
		cols = append(cols, schema.QuoteIdent(om.Special))
	}
	if om.OrderType != "" {
		cols = append(cols, schema.QuoteIdent(om.OrderType))
	}
	return joinColumns(cols)
}

func (s *OrderService) scanOrder(ctx context.Context, row scanner) (*Order, error) {
	om := s.maps.Orders
	o := &Order{}

	var number, statusText, orderDate, orderType *string
	var tariffID, statusID *int
	var special *bool
	var base, tax, subtotal, discountPct, total, discountAmount decimal.NullDecimal

	dests := []any{&o.ID, &number, &o.ClientID, &base, &tax, &subtotal, &discountPct, &total}
	if om.ShippingAddressID != "" {
		dests = append(dests, &o.ShippingAddressID)
	}
	if om.TariffID != "" {
		dests = append(dests, &tariffID)
	}
	if om.StatusID != "" {
		dests = append(dests, &statusID)
	}
	if om.StatusText != "" {
		dests = append(dests, &statusText)
	}
	if om.OrderDate != "" {
		dests = append(dests, &orderDate)
	}
	if om.DiscountAmount != "" {
		dests = append(dests, &discountAmount)
	}
	if om.Special != "" {
		dests = append(dests, &special)
	}
	if om.OrderType != "" {
		dests = append(dests, &orderType)
	}

	if err := row.Scan(dests...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("order not found")
		}
		return nil, dbErr(ctx, err, "failed to scan order header")
	}

	if number != nil {
		o.Number = *number
	}
	o.Base = base.Decimal
	o.Tax = tax.Decimal
	o.Subtotal = subtotal.Decimal
	o.DiscountPct = discountPct.Decimal
	o.Total = total.Decimal
	o.DiscountAmount = discountAmount.Decimal
	if tariffID != nil {
		o.TariffID = *tariffID
	}
	o.StatusID = statusID
	if statusText != nil {
		o.Status = *statusText
	}
	if orderDate != nil {
		o.OrderDate = *orderDate
	}
	if special != nil {
		o.Special = *special
	}
	if orderType != nil {
		o.OrderType = *orderType
	}
	return o, nil
}

func (s *OrderService) insertHeaderTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	om := s.maps.Orders

	assigns := []assignment{
		{om.Number, o.Number},
		{om.ClientID, o.ClientID},
		{om.Base, decimal.Zero},
		{om.Tax, decimal.Zero},
		{om.Subtotal, decimal.Zero},
		{om.DiscountPct, o.DiscountPct},
		{om.Total, decimal.Zero},
	}
	if om.DiscountAmount != "" {
		assigns = append(assigns, assignment{om.DiscountAmount, decimal.Zero})
	}
	if om.ShippingAddressID != "" {
		assigns = append(assigns, assignment{om.ShippingAddressID, o.ShippingAddressID})
	}
	if om.TariffID != "" {
		assigns = append(assigns, assignment{om.TariffID, o.TariffID})
	}
	if om.StatusID != "" {
		assigns = append(assigns, assignment{om.StatusID, o.StatusID})
	}
	if om.StatusText != "" {
		assigns = append(assigns, assignment{om.StatusText, nullIfEmpty(o.Status)})
	}
	if om.OrderDate != "" {
		assigns = append(assigns, assignment{om.OrderDate, nullIfEmpty(o.OrderDate)})
	}
	if om.Special != "" {
		assigns = append(assigns, assignment{om.Special, o.Special})
	}
	if om.OrderType != "" {
		assigns = append(assigns, assignment{om.OrderType, nullIfEmpty(o.OrderType)})
	}

	cols := make([]string, len(assigns))
	placeholders := make([]string, len(assigns))
	args := make([]any, len(assigns))
	for i, a := range assigns {
		cols[i] = schema.QuoteIdent(a.col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = a.val
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		schema.QuoteIdent(om.Table), joinColumns(cols), joinColumns(placeholders),
		schema.QuoteIdent(om.ID))

	if err := tx.QueryRow(ctx, query, args...).Scan(&o.ID); err != nil {
		return dbErr(ctx, err, "failed to insert order header")
	}
	return nil
}

// applyPatchTx folds the patch into the in-memory header and collects the
// column assignments to persist. Roles the deployment lacks are applied in
// memory only (they still steer pricing) except the shipping address, whose
// absence is a schema error because the ownership invariant would be
// unverifiable.
func (s *OrderService) applyPatchTx(ctx context.Context, tx pgx.Tx, o *Order, patch HeaderPatch) ([]assignment, error) {
	om := s.maps.Orders
	var assigns []assignment

	if patch.ClientID != nil {
		o.ClientID = *patch.ClientID
		assigns = append(assigns, assignment{om.ClientID, o.ClientID})
	}
	if patch.ShippingAddressID != nil {
		if om.ShippingAddressID == "" {
			return nil, schemaErr(nil, "deployment has no shipping address column on the order header")
		}
		if *patch.ShippingAddressID == 0 {
			o.ShippingAddressID = nil
			assigns = append(assigns, assignment{om.ShippingAddressID, nil})
		} else {
			v := *patch.ShippingAddressID
			o.ShippingAddressID = &v
			assigns = append(assigns, assignment{om.ShippingAddressID, v})
		}
	}
	if patch.TariffID != nil {
		o.TariffID = *patch.TariffID
		if om.TariffID != "" {
			assigns = append(assigns, assignment{om.TariffID, o.TariffID})
		}
	}
	if patch.StatusCode != nil {
		st, err := s.statuses.ResolveByCode(ctx, tx, *patch.StatusCode)
		if err != nil {
			return nil, err
		}
		o.StatusID = &st.ID
		o.Status = st.Name
		if om.StatusID != "" {
			assigns = append(assigns, assignment{om.StatusID, st.ID})
		}
		if om.StatusText != "" {
			assigns = append(assigns, assignment{om.StatusText, st.Name})
		}
	}
	if patch.Special != nil {
		o.Special = *patch.Special
		if om.Special != "" {
			assigns = append(assigns, assignment{om.Special, o.Special})
		}
	}
	if patch.ManualDiscountPct != nil {
		// Persisted through the aggregate update once the discount resolves.
		o.DiscountPct = *patch.ManualDiscountPct
	}
	if patch.OrderType != nil {
		o.OrderType = *patch.OrderType
		if om.OrderType != "" {
			assigns = append(assigns, assignment{om.OrderType, nullIfEmpty(o.OrderType)})
		}
	}
	if patch.OrderDate != nil {
		o.OrderDate = *patch.OrderDate
		if om.OrderDate != "" {
			assigns = append(assigns, assignment{om.OrderDate, nullIfEmpty(o.OrderDate)})
		}
	}
	return assigns, nil
}

func (s *OrderService) updateHeaderTx(ctx context.Context, tx pgx.Tx, orderID int, assigns []assignment) error {
	om := s.maps.Orders

	sets := make([]string, len(assigns))
	args := make([]any, 0, len(assigns)+1)
	for i, a := range assigns {
		sets[i] = fmt.Sprintf("%s = $%d", schema.QuoteIdent(a.col), i+1)
		args = append(args, a.val)
	}
	args = append(args, orderID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		schema.QuoteIdent(om.Table), joinColumns(sets), schema.QuoteIdent(om.ID), len(args))

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return dbErr(ctx, err, "failed to update order %d header", orderID)
	}
	return nil
}

func (s *OrderService) updateAggregatesTx(ctx context.Context, tx pgx.Tx, orderID int, agg OrderAmounts) error {
	om := s.maps.Orders

	assigns := []assignment{
		{om.Base, agg.Base},
		{om.Tax, agg.Tax},
		{om.Subtotal, agg.Subtotal},
		{om.DiscountPct, agg.DiscountPct},
		{om.Total, agg.Total},
	}
	if om.DiscountAmount != "" {
		assigns = append(assigns, assignment{om.DiscountAmount, agg.DiscountAmount})
	}
	return s.updateHeaderTx(ctx, tx, orderID, assigns)
}

// insertLineStatement builds the line INSERT once per operation, along with
// the binder producing its argument list. Both sides follow the same column
// sequence.
func (s *OrderService) insertLineStatement() (string, func(o *Order, l *OrderLine) []any) {
	lm := s.maps.Lines

	var cols []string
	writeOrderID := lm.OrderID != ""
	writeOrderNumber := lm.OrderNumber != ""
	if writeOrderID {
		cols = append(cols, schema.QuoteIdent(lm.OrderID))
	}
	if writeOrderNumber {
		cols = append(cols, schema.QuoteIdent(lm.OrderNumber))
	}
	cols = append(cols,
		schema.QuoteIdent(lm.ArticleID),
		schema.QuoteIdent(lm.Quantity),
		schema.QuoteIdent(lm.UnitPrice),
		schema.QuoteIdent(lm.DiscountPct),
		schema.QuoteIdent(lm.TaxPct),
		schema.QuoteIdent(lm.Base),
		schema.QuoteIdent(lm.TaxAmount),
		schema.QuoteIdent(lm.Total),
	)
	writeFlag := lm.PriceMissing != ""
	if writeFlag {
		cols = append(cols, schema.QuoteIdent(lm.PriceMissing))
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.QuoteIdent(lm.Table), joinColumns(cols), joinColumns(placeholders))

	bind := func(o *Order, l *OrderLine) []any {
		var args []any
		if writeOrderID {
			args = append(args, o.ID)
		}
		if writeOrderNumber {
			args = append(args, o.Number)
		}
		args = append(args, l.ArticleID, l.Quantity, l.UnitPrice, l.DiscountPct,
			l.TaxPct, l.Base, l.TaxAmount, l.Total)
		if writeFlag {
			args = append(args, l.PriceMissing)
		}
		return args
	}
	return query, bind
}

func (s *OrderService) fetchLines(ctx context.Context, q pgxQuerier, o *Order) ([]OrderLine, error) {
	lm := s.maps.Lines

	hasID := lm.ID != ""
	hasFlag := lm.PriceMissing != ""

	var cols []string
	if hasID {
		cols = append(cols, schema.QuoteIdent(lm.ID))
	}
	cols = append(cols,
		schema.QuoteIdent(lm.ArticleID),
		schema.QuoteIdent(lm.Quantity),
		schema.QuoteIdent(lm.UnitPrice),
		schema.QuoteIdent(lm.DiscountPct),
		schema.QuoteIdent(lm.TaxPct),
		schema.QuoteIdent(lm.Base),
		schema.QuoteIdent(lm.TaxAmount),
		schema.QuoteIdent(lm.Total),
	)
	if hasFlag {
		cols = append(cols, schema.QuoteIdent(lm.PriceMissing))
	}

	linkCol, linkArg := schema.QuoteIdent(lm.OrderNumber), any(o.Number)
	if lm.Link == schema.LinkByID || lm.Link == schema.LinkBoth {
		linkCol, linkArg = schema.QuoteIdent(lm.OrderID), any(o.ID)
	}
	orderBy := schema.QuoteIdent(lm.ArticleID)
	if hasID {
		orderBy = schema.QuoteIdent(lm.ID)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 ORDER BY %s",
		joinColumns(cols), schema.QuoteIdent(lm.Table), linkCol, orderBy)

	rows, err := q.Query(ctx, query, linkArg)
	if err != nil {
		return nil, dbErr(ctx, err, "failed to query lines of order %d", o.ID)
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		l.OrderID = o.ID
		var qty, price, discountPct, taxPct, base, taxAmount, total decimal.NullDecimal
		var flag *bool

		dests := []any{}
		if hasID {
			dests = append(dests, &l.ID)
		}
		dests = append(dests, &l.ArticleID, &qty, &price, &discountPct, &taxPct, &base, &taxAmount, &total)
		if hasFlag {
			dests = append(dests, &flag)
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, dbErr(ctx, err, "failed to scan order line")
		}

		l.Quantity = qty.Decimal
		l.UnitPrice = price.Decimal
		l.DiscountPct = discountPct.Decimal
		l.TaxPct = taxPct.Decimal
		l.Base = base.Decimal
		l.TaxAmount = taxAmount.Decimal
		l.Total = total.Decimal
		if flag != nil {
			l.PriceMissing = *flag
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(ctx, err, "failed to read order lines")
	}
	return lines, nil
}
