package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"order-engine/internal/schema"

	"github.com/shopspring/decimal"
)

// ResolveTierPct returns the discount percentage for subtotal: the first
// tier (in the given order) where subtotal ≥ From and, when To is set,
// subtotal < To. Tiers may overlap; declared order decides, so callers must
// pass the slice sorted by SortTiers. Zero when nothing matches or the
// subtotal is not positive.
func ResolveTierPct(tiers []DiscountTier, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.Sign() <= 0 {
		return decimal.Zero
	}
	for _, t := range tiers {
		if subtotal.LessThan(t.From) {
			continue
		}
		if t.To != nil && !subtotal.LessThan(*t.To) {
			continue
		}
		return t.Pct
	}
	return decimal.Zero
}

// SortTiers orders tiers by explicit position, then by From ascending.
// The sort is stable so equal rows keep their catalog order.
func SortTiers(tiers []DiscountTier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].Position != tiers[j].Position {
			return tiers[i].Position < tiers[j].Position
		}
		return tiers[i].From.LessThan(tiers[j].From)
	})
}

// DiscountService reads the discount-tier catalog through the resolved
// schema map.
type DiscountService struct {
	maps *schema.Maps
}

func NewDiscountService(maps *schema.Maps) *DiscountService {
	return &DiscountService{maps: maps}
}

// ActiveTiers returns the active tiers in resolution order. Deployments
// without an active flag treat every row as active; without a position
// column the From bound alone orders the scan.
func (s *DiscountService) ActiveTiers(ctx context.Context, q pgxQuerier) ([]DiscountTier, error) {
	tm := s.maps.Tiers

	cols := []string{schema.QuoteIdent(tm.From), schema.QuoteIdent(tm.Pct)}
	hasID := tm.ID != ""
	hasTo := tm.To != ""
	hasActive := tm.Active != ""
	hasPosition := tm.Position != ""
	if hasID {
		cols = append(cols, schema.QuoteIdent(tm.ID))
	}
	if hasTo {
		cols = append(cols, schema.QuoteIdent(tm.To))
	}
	if hasActive {
		cols = append(cols, schema.QuoteIdent(tm.Active))
	}
	if hasPosition {
		cols = append(cols, schema.QuoteIdent(tm.Position))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), schema.QuoteIdent(tm.Table))
	if hasActive {
		query += fmt.Sprintf(" WHERE %s", schema.QuoteIdent(tm.Active))
	}

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, dbErr(ctx, err, "failed to query discount tiers")
	}
	defer rows.Close()

	var tiers []DiscountTier
	for rows.Next() {
		var t DiscountTier
		t.Active = true
		var to decimal.NullDecimal
		var id, position *int

		dests := []any{&t.From, &t.Pct}
		if hasID {
			dests = append(dests, &id)
		}
		if hasTo {
			dests = append(dests, &to)
		}
		if hasActive {
			dests = append(dests, &t.Active)
		}
		if hasPosition {
			dests = append(dests, &position)
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, dbErr(ctx, err, "failed to scan discount tier")
		}

		if id != nil {
			t.ID = *id
		}
		if to.Valid {
			v := to.Decimal
			t.To = &v
		}
		if position != nil {
			t.Position = *position
		}
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(ctx, err, "failed to read discount tiers")
	}

	SortTiers(tiers)
	return tiers, nil
}
