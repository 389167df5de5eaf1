package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-engine/internal/schema"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TariffService resolves price lists and per-article prices through the
// resolved schema map.
type TariffService struct {
	maps *schema.Maps
}

func NewTariffService(maps *schema.Maps) *TariffService {
	return &TariffService{maps: maps}
}

// Get fetches one tariff. A missing row is NotFound.
func (s *TariffService) Get(ctx context.Context, q pgxQuerier, tariffID int) (*Tariff, error) {
	tm := s.maps.Tariffs

	cols := []string{schema.QuoteIdent(tm.ID), schema.QuoteIdent(tm.Active)}
	hasName := tm.Name != ""
	hasFrom := tm.ValidFrom != ""
	hasTo := tm.ValidTo != ""
	if hasName {
		cols = append(cols, schema.QuoteIdent(tm.Name))
	}
	if hasFrom {
		cols = append(cols, schema.QuoteIdent(tm.ValidFrom))
	}
	if hasTo {
		cols = append(cols, schema.QuoteIdent(tm.ValidTo))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		joinColumns(cols), schema.QuoteIdent(tm.Table), schema.QuoteIdent(tm.ID))

	var t Tariff
	var name *string
	dests := []any{&t.ID, &t.Active}
	if hasName {
		dests = append(dests, &name)
	}
	if hasFrom {
		dests = append(dests, &t.ValidFrom)
	}
	if hasTo {
		dests = append(dests, &t.ValidTo)
	}

	if err := q.QueryRow(ctx, query, tariffID).Scan(dests...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("tariff %d not found", tariffID)
		}
		return nil, dbErr(ctx, err, "failed to fetch tariff %d", tariffID)
	}
	if name != nil {
		t.Name = *name
	}
	return &t, nil
}

// EffectiveTariffID returns tariffID when that tariff is active and asOf
// falls inside its validity window, otherwise the list-price sentinel 0.
// An unknown tariff also degrades to list price rather than failing.
func (s *TariffService) EffectiveTariffID(ctx context.Context, q pgxQuerier, tariffID int, asOf time.Time) (int, error) {
	if tariffID <= 0 {
		return ListPriceTariffID, nil
	}
	t, err := s.Get(ctx, q, tariffID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return ListPriceTariffID, nil
		}
		return 0, err
	}
	if !t.EffectiveAt(asOf) {
		return ListPriceTariffID, nil
	}
	return tariffID, nil
}

// PriceForArticle resolves the unit price for one article:
// tariff-specific row → list-price row (tariff 0) → the article's own base
// price. A miss at every level degrades to price 0 with the missing flag set
// and never aborts the caller's batch.
func (s *TariffService) PriceForArticle(ctx context.Context, q pgxQuerier, effectiveTariffID, articleID int, article *Article) (decimal.Decimal, bool, error) {
	if effectiveTariffID != ListPriceTariffID {
		price, found, err := s.tariffPrice(ctx, q, effectiveTariffID, articleID)
		if err != nil {
			return decimal.Zero, false, err
		}
		if found {
			return price, false, nil
		}
	}

	price, found, err := s.tariffPrice(ctx, q, ListPriceTariffID, articleID)
	if err != nil {
		return decimal.Zero, false, err
	}
	if found {
		return price, false, nil
	}

	if article != nil && article.BasePrice != nil {
		return *article.BasePrice, false, nil
	}
	return decimal.Zero, true, nil
}

func (s *TariffService) tariffPrice(ctx context.Context, q pgxQuerier, tariffID, articleID int) (decimal.Decimal, bool, error) {
	pm := s.maps.TariffPrices
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 AND %s = $2",
		schema.QuoteIdent(pm.Price), schema.QuoteIdent(pm.Table),
		schema.QuoteIdent(pm.TariffID), schema.QuoteIdent(pm.ArticleID))

	var price decimal.NullDecimal
	err := q.QueryRow(ctx, query, tariffID, articleID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, dbErr(ctx, err, "failed to look up price for article %d in tariff %d", articleID, tariffID)
	}
	if !price.Valid {
		return decimal.Zero, false, nil
	}
	return price.Decimal, true, nil
}
