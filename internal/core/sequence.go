package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"order-engine/internal/schema"

	"github.com/jackc/pgx/v5"
)

const orderNumberSuffixDigits = 6

// FormatOrderNumber renders a per-year order number: the year followed by a
// zero-padded sequence, e.g. 2026000042.
func FormatOrderNumber(year, seq int) string {
	return fmt.Sprintf("%d%0*d", year, orderNumberSuffixDigits, seq)
}

// nextSequence returns max(numeric suffix)+1 over the existing numbers that
// carry the year prefix. Numbers with non-numeric suffixes are ignored.
func nextSequence(numbers []string, year int) int {
	prefix := strconv.Itoa(year)
	max := 0
	for _, n := range numbers {
		suffix, ok := strings.CutPrefix(n, prefix)
		if !ok || suffix == "" {
			continue
		}
		v, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max + 1
}

// NextOrderNumberTx issues the next order number for year inside tx. The
// scan-and-increment runs under a per-year advisory lock held until the
// transaction ends, so the number must be consumed by the same transaction:
// releasing the lock before the insert commits would reopen the
// duplicate-number race.
func NextOrderNumberTx(ctx context.Context, tx pgx.Tx, maps *schema.Maps, year int) (string, error) {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))",
		fmt.Sprintf("order-number-%d", year)); err != nil {
		return "", dbErr(ctx, err, "failed to acquire order number lock for %d", year)
	}

	om := maps.Orders
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIKE $1",
		schema.QuoteIdent(om.Number), schema.QuoteIdent(om.Table), schema.QuoteIdent(om.Number))

	rows, err := tx.Query(ctx, query, strconv.Itoa(year)+"%")
	if err != nil {
		return "", dbErr(ctx, err, "failed to scan order numbers for %d", year)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n *string
		if err := rows.Scan(&n); err != nil {
			return "", dbErr(ctx, err, "failed to scan order number")
		}
		if n != nil {
			numbers = append(numbers, *n)
		}
	}
	if err := rows.Err(); err != nil {
		return "", dbErr(ctx, err, "failed to read order numbers for %d", year)
	}

	return FormatOrderNumber(year, nextSequence(numbers, year)), nil
}
