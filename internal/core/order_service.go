package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"order-engine/internal/schema"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// defaultOperationTimeout bounds every write transaction. A timeout aborts
// and rolls back the whole operation; partial commits are never possible.
const defaultOperationTimeout = 15 * time.Second

// transferLineDiscountPct is the default line discount on transfer orders,
// applied unless the caller overrides it explicitly.
var transferLineDiscountPct = decimal.NewFromInt(5)

// OrderService is the transactional orchestrator for order persistence and
// pricing. All cross-operation exclusion is delegated to database row locks;
// the service itself holds no in-process state beyond resolved schema maps.
type OrderService struct {
	pool      *pgxpool.Pool
	maps      *schema.Maps
	tariffs   *TariffService
	discounts *DiscountService
	statuses  *StatusService
	clients   ClientProvider
	articles  ArticleProvider
	addresses ShippingAddressProvider
	timeout   time.Duration
}

func NewOrderService(pool *pgxpool.Pool, maps *schema.Maps) *OrderService {
	return &OrderService{
		pool:      pool,
		maps:      maps,
		tariffs:   NewTariffService(maps),
		discounts: NewDiscountService(maps),
		statuses:  NewStatusService(maps),
		clients:   NewClientProvider(maps),
		articles:  NewArticleProvider(maps),
		addresses: NewShippingAddressProvider(maps),
		timeout:   operationTimeout(),
	}
}

func operationTimeout() time.Duration {
	if v := os.Getenv("OPERATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultOperationTimeout
}

func (s *OrderService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func orderMode(o *Order) OrderMode {
	if strings.EqualFold(o.OrderType, TransferOrderType) {
		return ModeTransfer
	}
	if o.Special {
		return ModeSpecial
	}
	return ModeNormal
}

// ── Create ───────────────────────────────────────────────────────────────────

// CreateOrder persists a new order header and its lines in one transaction,
// drawing the order number from the per-year sequence inside that same
// transaction.
func (s *OrderService) CreateOrder(ctx context.Context, in OrderInput, lines []OrderLineInput) (*Order, error) {
	if in.ClientID <= 0 {
		return nil, validationf("order must reference a client")
	}
	if len(lines) == 0 {
		return nil, validationf("order must have at least one line")
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.pool.Begin(opCtx)
	if err != nil {
		return nil, dbErr(opCtx, err, "failed to begin transaction")
	}
	defer tx.Rollback(opCtx)

	clientTariff, clientDiscount, err := s.clients.TariffAndDiscount(opCtx, tx, in.ClientID)
	if err != nil {
		return nil, err
	}

	if in.ShippingAddressID != nil {
		if err := s.checkAddressOwnership(opCtx, tx, *in.ShippingAddressID, in.ClientID); err != nil {
			return nil, err
		}
	}

	tariffID := in.TariffID
	if tariffID <= 0 {
		tariffID = clientTariff
	}

	manualPct := in.ManualDiscountPct
	if in.Special && manualPct.IsZero() {
		manualPct = clientDiscount
	}

	year := in.Year
	if year == 0 {
		year = time.Now().Year()
	}
	number, err := NextOrderNumberTx(opCtx, tx, s.maps, year)
	if err != nil {
		return nil, err
	}

	o := &Order{
		Number:            number,
		ClientID:          in.ClientID,
		ShippingAddressID: in.ShippingAddressID,
		TariffID:          tariffID,
		OrderDate:         in.OrderDate,
		Special:           in.Special,
		OrderType:         in.OrderType,
	}
	if in.Special {
		o.DiscountPct = manualPct
	}
	if in.StatusCode != "" {
		st, err := s.statuses.ResolveByCode(opCtx, tx, in.StatusCode)
		if err != nil {
			return nil, err
		}
		o.StatusID = &st.ID
		o.Status = st.Name
	}

	if err := s.insertHeaderTx(opCtx, tx, o); err != nil {
		return nil, err
	}

	if _, err := s.applyLinesTx(opCtx, tx, o, lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(opCtx); err != nil {
		return nil, dbErr(opCtx, err, "failed to commit order creation")
	}

	return s.GetOrder(ctx, o.ID)
}

// ── Replace ──────────────────────────────────────────────────────────────────

// ReplaceOrderLines atomically replaces the order's entire line set:
// validate and lock the header, apply the header patch, delete the old
// lines, compute and insert the new ones, recompute the header aggregates,
// then commit. Any failure before commit rolls everything back. Concurrent
// replaces on the same order serialize on the header row lock; different
// orders proceed in parallel.
func (s *OrderService) ReplaceOrderLines(ctx context.Context, orderID int, patch HeaderPatch, lines []OrderLineInput) (*ReplaceResult, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.pool.Begin(opCtx)
	if err != nil {
		return nil, dbErr(opCtx, err, "failed to begin transaction")
	}
	defer tx.Rollback(opCtx)

	// Lock before any read-modify-write; the existence check shares the
	// transaction so a concurrent delete cannot race us.
	o, err := s.lockHeaderTx(opCtx, tx, orderID)
	if err != nil {
		return nil, err
	}

	assignments, err := s.applyPatchTx(opCtx, tx, o, patch)
	if err != nil {
		return nil, err
	}

	// The ownership invariant holds for the post-patch header, whether the
	// address came from the patch or was already set.
	if o.ShippingAddressID != nil {
		if err := s.checkAddressOwnership(opCtx, tx, *o.ShippingAddressID, o.ClientID); err != nil {
			return nil, err
		}
	}

	if len(assignments) > 0 {
		if err := s.updateHeaderTx(opCtx, tx, o.ID, assignments); err != nil {
			return nil, err
		}
	}

	result, err := s.applyLinesTx(opCtx, tx, o, lines)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(opCtx); err != nil {
		return nil, dbErr(opCtx, err, "failed to commit line replacement")
	}
	return result, nil
}

// ── Delete ───────────────────────────────────────────────────────────────────

// DeleteOrder removes the header and its lines in one transaction.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID int) (*DeleteResult, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.pool.Begin(opCtx)
	if err != nil {
		return nil, dbErr(opCtx, err, "failed to begin transaction")
	}
	defer tx.Rollback(opCtx)

	o, err := s.lockHeaderTx(opCtx, tx, orderID)
	if err != nil {
		return nil, err
	}

	deletedLines, err := s.deleteLinesTx(opCtx, tx, o)
	if err != nil {
		return nil, err
	}

	om := s.maps.Orders
	tag, err := tx.Exec(opCtx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		schema.QuoteIdent(om.Table), schema.QuoteIdent(om.ID)), o.ID)
	if err != nil {
		return nil, dbErr(opCtx, err, "failed to delete order %d", orderID)
	}

	if err := tx.Commit(opCtx); err != nil {
		return nil, dbErr(opCtx, err, "failed to commit order deletion")
	}
	return &DeleteResult{DeletedHeader: int(tag.RowsAffected()), DeletedLines: deletedLines}, nil
}

// ── Sequence ─────────────────────────────────────────────────────────────────

// GetNextOrderNumber previews the next number for year. The advisory lock is
// released when the inner transaction ends, so the preview does not reserve
// the number; creation re-derives it inside its own transaction.
func (s *OrderService) GetNextOrderNumber(ctx context.Context, year int) (string, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	tx, err := s.pool.Begin(opCtx)
	if err != nil {
		return "", dbErr(opCtx, err, "failed to begin transaction")
	}
	defer tx.Rollback(opCtx)

	number, err := NextOrderNumberTx(opCtx, tx, s.maps, year)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(opCtx); err != nil {
		return "", dbErr(opCtx, err, "failed to commit sequence read")
	}
	return number, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *OrderService) GetOrder(ctx context.Context, orderID int) (*Order, error) {
	om := s.maps.Orders
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		s.headerColumnsSQL(), schema.QuoteIdent(om.Table), schema.QuoteIdent(om.ID))

	o, err := s.scanOrder(ctx, s.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, notFoundf("order %d not found", orderID)
		}
		return nil, err
	}

	lines, err := s.fetchLines(ctx, s.pool, o)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return o, nil
}

// ListOrders returns headers (no lines), newest first, optionally filtered
// by client.
func (s *OrderService) ListOrders(ctx context.Context, clientID *int) ([]Order, error) {
	om := s.maps.Orders
	query := fmt.Sprintf("SELECT %s FROM %s",
		s.headerColumnsSQL(), schema.QuoteIdent(om.Table))
	var args []any
	if clientID != nil {
		query += fmt.Sprintf(" WHERE %s = $1", schema.QuoteIdent(om.ClientID))
		args = append(args, *clientID)
	}
	query += fmt.Sprintf(" ORDER BY %s DESC", schema.QuoteIdent(om.ID))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dbErr(ctx, err, "failed to query orders")
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := s.scanOrder(ctx, rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(ctx, err, "failed to read orders")
	}
	return orders, nil
}

// DiscountTiers exposes the active tier catalog to upper layers.
func (s *OrderService) DiscountTiers(ctx context.Context) ([]DiscountTier, error) {
	return s.discounts.ActiveTiers(ctx, s.pool)
}

// OrderStatuses exposes the status catalog to upper layers.
func (s *OrderService) OrderStatuses(ctx context.Context) ([]OrderStatus, error) {
	return s.statuses.List(ctx, s.pool)
}

// ── Internals ────────────────────────────────────────────────────────────────

func (s *OrderService) checkAddressOwnership(ctx context.Context, q pgxQuerier, addressID, clientID int) error {
	if s.maps.Orders.ShippingAddressID == "" {
		return schemaErr(nil, "deployment has no shipping address column on the order header")
	}
	ok, err := s.addresses.BelongsToClient(ctx, q, addressID, clientID)
	if err != nil {
		return err
	}
	if !ok {
		return validationf("shipping address %d does not belong to client %d", addressID, clientID)
	}
	return nil
}

// applyLinesTx is the shared tail of create and replace: delete whatever
// lines exist, price and insert the new set, resolve the order discount and
// persist the header aggregates. Runs entirely inside the caller's tx.
func (s *OrderService) applyLinesTx(ctx context.Context, tx pgx.Tx, o *Order, inputs []OrderLineInput) (*ReplaceResult, error) {
	mode := orderMode(o)

	effectiveTariff, err := s.tariffs.EffectiveTariffID(ctx, tx, o.TariffID, time.Now())
	if err != nil {
		return nil, err
	}

	deleted, err := s.deleteLinesTx(ctx, tx, o)
	if err != nil {
		return nil, err
	}

	flagged := 0
	amounts := make([]LineAmounts, 0, len(inputs))
	insertSQL, bindInsert := s.insertLineStatement()
	for i, in := range inputs {
		if in.ArticleID <= 0 {
			return nil, validationf("line %d: missing article reference", i+1)
		}
		if in.Quantity.Sign() <= 0 {
			return nil, validationf("line %d: quantity must be positive", i+1)
		}

		line, la, err := s.computeLineTx(ctx, tx, mode, effectiveTariff, in)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if line.PriceMissing {
			flagged++
		}
		amounts = append(amounts, la)

		if _, err := tx.Exec(ctx, insertSQL, bindInsert(o, line)...); err != nil {
			return nil, dbErr(ctx, err, "failed to insert line %d", i+1)
		}
	}

	orderPct, err := s.resolveOrderDiscount(ctx, tx, mode, o, amounts)
	if err != nil {
		return nil, err
	}
	agg := ComputeOrderAggregates(amounts, orderPct)

	if err := s.updateAggregatesTx(ctx, tx, o.ID, agg); err != nil {
		return nil, err
	}

	return &ReplaceResult{
		UpdatedHeaderCount: 1,
		DeletedLineCount:   deleted,
		InsertedLineCount:  len(inputs),
		FlaggedLineCount:   flagged,
		Totals:             agg,
		ResolvedTariffID:   effectiveTariff,
	}, nil
}

// computeLineTx prices one input line. Pricing data missing for the article
// degrades the line to price 0 with the data-quality flag set; it never
// fails the surrounding operation.
func (s *OrderService) computeLineTx(ctx context.Context, tx pgx.Tx, mode OrderMode, effectiveTariff int, in OrderLineInput) (*OrderLine, LineAmounts, error) {
	article, err := s.articles.Article(ctx, tx, in.ArticleID)
	if err != nil {
		if KindOf(err) != KindNotFound {
			return nil, LineAmounts{}, err
		}
		article = nil
	}

	var price decimal.Decimal
	missing := false
	if mode == ModeTransfer {
		price = decimal.Zero
	} else {
		price, missing, err = s.tariffs.PriceForArticle(ctx, tx, effectiveTariff, in.ArticleID, article)
		if err != nil {
			return nil, LineAmounts{}, err
		}
	}
	if article == nil {
		missing = true
	}

	discountPct := decimal.Zero
	if in.DiscountPct != nil {
		discountPct = *in.DiscountPct
	} else if mode == ModeTransfer {
		discountPct = transferLineDiscountPct
	}

	taxPct := decimal.Zero
	if article != nil {
		taxPct = article.TaxPct
	}

	la := ComputeLine(in.Quantity, price, discountPct, taxPct)
	line := &OrderLine{
		ArticleID:    in.ArticleID,
		Quantity:     in.Quantity,
		UnitPrice:    price,
		DiscountPct:  discountPct,
		TaxPct:       taxPct,
		Base:         la.Base,
		TaxAmount:    la.TaxAmount,
		Total:        la.Total,
		PriceMissing: missing,
	}
	return line, la, nil
}

func (s *OrderService) resolveOrderDiscount(ctx context.Context, tx pgx.Tx, mode OrderMode, o *Order, amounts []LineAmounts) (decimal.Decimal, error) {
	switch mode {
	case ModeTransfer:
		return decimal.Zero, nil
	case ModeSpecial:
		return o.DiscountPct, nil
	}

	subtotal := decimal.Zero
	for _, a := range amounts {
		subtotal = subtotal.Add(a.Total)
	}
	tiers, err := s.discounts.ActiveTiers(ctx, tx)
	if err != nil {
		return decimal.Zero, err
	}
	return ResolveTierPct(tiers, subtotal), nil
}

// deleteLinesTx removes the order's current lines using the strongest
// available linkage: the numeric id when the deployment has one, so a
// duplicated order number can never take unrelated lines with it.
func (s *OrderService) deleteLinesTx(ctx context.Context, tx pgx.Tx, o *Order) (int, error) {
	lm := s.maps.Lines

	var query string
	var arg any
	switch lm.Link {
	case schema.LinkByID, schema.LinkBoth:
		query = fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
			schema.QuoteIdent(lm.Table), schema.QuoteIdent(lm.OrderID))
		arg = o.ID
	case schema.LinkByNumber:
		query = fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
			schema.QuoteIdent(lm.Table), schema.QuoteIdent(lm.OrderNumber))
		arg = o.Number
	}

	tag, err := tx.Exec(ctx, query, arg)
	if err != nil {
		return 0, dbErr(ctx, err, "failed to delete lines of order %d", o.ID)
	}
	return int(tag.RowsAffected()), nil
}

// lockHeaderTx fetches the header FOR UPDATE, serializing all writers of the
// same order for the rest of the transaction.
func (s *OrderService) lockHeaderTx(ctx context.Context, tx pgx.Tx, orderID int) (*Order, error) {
	om := s.maps.Orders
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 FOR UPDATE",
		s.headerColumnsSQL(), schema.QuoteIdent(om.Table), schema.QuoteIdent(om.ID))

	o, err := s.scanOrder(ctx, tx.QueryRow(ctx, query, orderID))
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, notFoundf("order %d not found", orderID)
		}
		return nil, err
	}
	return o, nil
}
