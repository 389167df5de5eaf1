package core

import (
	"context"
	"errors"
	"fmt"

	"order-engine/internal/schema"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// The providers below are the engine's view of master data owned elsewhere
// (client, article and address CRUD is routine and lives outside this core).
// Each call takes a querier so ownership and pricing checks can run inside
// the caller's transaction.

// ClientProvider exposes the two client fields that cross into pricing.
type ClientProvider interface {
	// TariffAndDiscount returns the client's assigned tariff id (0 = list
	// price) and default discount percentage.
	TariffAndDiscount(ctx context.Context, q pgxQuerier, clientID int) (int, decimal.Decimal, error)
}

// ArticleProvider fetches the pricing-relevant slice of an article.
type ArticleProvider interface {
	Article(ctx context.Context, q pgxQuerier, articleID int) (*Article, error)
}

// ShippingAddressProvider answers ownership checks for header addresses.
type ShippingAddressProvider interface {
	BelongsToClient(ctx context.Context, q pgxQuerier, addressID, clientID int) (bool, error)
}

type pgClientProvider struct {
	maps *schema.Maps
}

func NewClientProvider(maps *schema.Maps) ClientProvider {
	return &pgClientProvider{maps: maps}
}

func (p *pgClientProvider) TariffAndDiscount(ctx context.Context, q pgxQuerier, clientID int) (int, decimal.Decimal, error) {
	cm := p.maps.Clients

	cols := []string{schema.QuoteIdent(cm.ID)}
	hasTariff := cm.TariffID != ""
	hasDiscount := cm.DiscountPct != ""
	if hasTariff {
		cols = append(cols, schema.QuoteIdent(cm.TariffID))
	}
	if hasDiscount {
		cols = append(cols, schema.QuoteIdent(cm.DiscountPct))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		joinColumns(cols), schema.QuoteIdent(cm.Table), schema.QuoteIdent(cm.ID))

	var id int
	var tariffID *int
	var discount decimal.NullDecimal
	dests := []any{&id}
	if hasTariff {
		dests = append(dests, &tariffID)
	}
	if hasDiscount {
		dests = append(dests, &discount)
	}

	if err := q.QueryRow(ctx, query, clientID).Scan(dests...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, decimal.Zero, notFoundf("client %d not found", clientID)
		}
		return 0, decimal.Zero, dbErr(ctx, err, "failed to fetch client %d", clientID)
	}

	tariff := ListPriceTariffID
	if tariffID != nil {
		tariff = *tariffID
	}
	pct := decimal.Zero
	if discount.Valid {
		pct = discount.Decimal
	}
	return tariff, pct, nil
}

type pgArticleProvider struct {
	maps *schema.Maps
}

func NewArticleProvider(maps *schema.Maps) ArticleProvider {
	return &pgArticleProvider{maps: maps}
}

func (p *pgArticleProvider) Article(ctx context.Context, q pgxQuerier, articleID int) (*Article, error) {
	am := p.maps.Articles

	cols := []string{schema.QuoteIdent(am.ID), schema.QuoteIdent(am.BasePrice), schema.QuoteIdent(am.TaxPct)}
	hasName := am.Name != ""
	if hasName {
		cols = append(cols, schema.QuoteIdent(am.Name))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		joinColumns(cols), schema.QuoteIdent(am.Table), schema.QuoteIdent(am.ID))

	var a Article
	var basePrice, taxPct decimal.NullDecimal
	var name *string
	dests := []any{&a.ID, &basePrice, &taxPct}
	if hasName {
		dests = append(dests, &name)
	}

	if err := q.QueryRow(ctx, query, articleID).Scan(dests...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("article %d not found", articleID)
		}
		return nil, dbErr(ctx, err, "failed to fetch article %d", articleID)
	}

	if basePrice.Valid {
		v := basePrice.Decimal
		a.BasePrice = &v
	}
	if taxPct.Valid {
		a.TaxPct = taxPct.Decimal
	}
	if name != nil {
		a.Name = *name
	}
	return &a, nil
}

type pgAddressProvider struct {
	maps *schema.Maps
}

func NewShippingAddressProvider(maps *schema.Maps) ShippingAddressProvider {
	return &pgAddressProvider{maps: maps}
}

func (p *pgAddressProvider) BelongsToClient(ctx context.Context, q pgxQuerier, addressID, clientID int) (bool, error) {
	am := p.maps.Addresses
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		schema.QuoteIdent(am.ClientID), schema.QuoteIdent(am.Table), schema.QuoteIdent(am.ID))

	var owner *int
	if err := q.QueryRow(ctx, query, addressID).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, dbErr(ctx, err, "failed to fetch shipping address %d", addressID)
	}
	return owner != nil && *owner == clientID, nil
}
