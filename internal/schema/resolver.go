// Package schema discovers the physical table and column names of a
// deployment at runtime. Legacy installations carry Spanish column names
// while renamed ones use English snake_case; business code addresses
// columns through semantic roles resolved here exactly once per process.
package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Resolver probes and memoizes real table and column names.
// All discovery results are cached for the lifetime of the process.
type Resolver struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	tables  map[string]string
	columns map[string][]string
}

func NewResolver(pool *pgxpool.Pool) *Resolver {
	return &Resolver{
		pool:    pool,
		tables:  make(map[string]string),
		columns: make(map[string][]string),
	}
}

// ResolveTable probes case variants (lower, Capitalized, UPPER) of each base
// name in priority order and returns the first variant whose columns can be
// listed. When every probe fails the first base name is returned untouched;
// callers must tolerate the table not existing downstream.
func (r *Resolver) ResolveTable(ctx context.Context, bases ...string) string {
	key := strings.Join(bases, "|")

	r.mu.Lock()
	if t, ok := r.tables[key]; ok {
		r.mu.Unlock()
		return t
	}
	r.mu.Unlock()

	for _, base := range bases {
		for _, variant := range caseVariants(base) {
			cols, err := r.probeColumns(ctx, variant)
			if err != nil || len(cols) == 0 {
				continue
			}
			r.mu.Lock()
			r.tables[key] = variant
			r.columns[variant] = cols
			r.mu.Unlock()
			return variant
		}
	}

	r.mu.Lock()
	r.tables[key] = bases[0]
	r.mu.Unlock()
	return bases[0]
}

// Columns returns the real column names of table, cached after first use.
// An empty slice means the table could not be found under that name.
func (r *Resolver) Columns(ctx context.Context, table string) ([]string, error) {
	r.mu.Lock()
	if cols, ok := r.columns[table]; ok {
		r.mu.Unlock()
		return cols, nil
	}
	r.mu.Unlock()

	cols, err := r.probeColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.columns[table] = cols
	r.mu.Unlock()
	return cols, nil
}

// probeColumns lists the columns of table. It first asks the information
// schema; deployments that restrict catalog access fall back to a zero-row
// select, reading the names off the result descriptor. Only a failure of
// both strategies surfaces as an error.
func (r *Resolver) probeColumns(ctx context.Context, table string) ([]string, error) {
	cols, infoErr := r.columnsFromInformationSchema(ctx, table)
	if infoErr == nil && len(cols) > 0 {
		return cols, nil
	}

	cols, selErr := r.columnsFromSelect(ctx, table)
	if selErr == nil {
		return cols, nil
	}
	if infoErr == nil {
		// Information schema was readable and simply had no rows: the table
		// does not exist under this name.
		return nil, nil
	}
	return nil, fmt.Errorf("unable to list columns of %s: %w", table, selErr)
}

func (r *Resolver) columnsFromInformationSchema(ctx context.Context, table string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (r *Resolver) columnsFromSelect(ctx context.Context, table string) ([]string, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s WHERE false", QuoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, f.Name)
	}
	return cols, rows.Err()
}

// PickColumn returns the first candidate present in columns, compared
// case-insensitively, in its real casing. Empty string when none match.
func PickColumn(columns []string, candidates ...string) string {
	for _, cand := range candidates {
		for _, col := range columns {
			if strings.EqualFold(col, cand) {
				return col
			}
		}
	}
	return ""
}

// QuoteIdent quotes a runtime-discovered identifier for safe interpolation.
// Identifier positions cannot be parameterized, so every discovered name
// passes through here before entering SQL text.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func caseVariants(base string) []string {
	variants := []string{strings.ToLower(base)}
	if cap := capitalize(base); cap != variants[0] {
		variants = append(variants, cap)
	}
	if upper := strings.ToUpper(base); upper != variants[0] {
		variants = append(variants, upper)
	}
	return variants
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
