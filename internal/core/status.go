package core

import (
	"context"
	"errors"
	"fmt"

	"order-engine/internal/schema"

	"github.com/jackc/pgx/v5"
)

// StatusService reads the order-status catalog. Header writes keep the
// status id and its display text in sync through ResolveByCode/NameByID.
type StatusService struct {
	maps *schema.Maps
}

func NewStatusService(maps *schema.Maps) *StatusService {
	return &StatusService{maps: maps}
}

func (s *StatusService) selectColumns() ([]string, func(*OrderStatus) []any) {
	sm := s.maps.Statuses
	cols := []string{schema.QuoteIdent(sm.ID), schema.QuoteIdent(sm.Name)}
	hasCode := sm.Code != ""
	hasColor := sm.Color != ""
	hasActive := sm.Active != ""
	hasPosition := sm.Position != ""
	if hasCode {
		cols = append(cols, schema.QuoteIdent(sm.Code))
	}
	if hasColor {
		cols = append(cols, schema.QuoteIdent(sm.Color))
	}
	if hasActive {
		cols = append(cols, schema.QuoteIdent(sm.Active))
	}
	if hasPosition {
		cols = append(cols, schema.QuoteIdent(sm.Position))
	}

	bind := func(st *OrderStatus) []any {
		st.Active = true
		dests := []any{&st.ID, &st.Name}
		if hasCode {
			dests = append(dests, &st.Code)
		}
		if hasColor {
			dests = append(dests, &st.Color)
		}
		if hasActive {
			dests = append(dests, &st.Active)
		}
		if hasPosition {
			dests = append(dests, &st.Position)
		}
		return dests
	}
	return cols, bind
}

// List returns the status catalog in display order, active rows only when
// the deployment has an active flag.
func (s *StatusService) List(ctx context.Context, q pgxQuerier) ([]OrderStatus, error) {
	sm := s.maps.Statuses
	cols, bind := s.selectColumns()

	query := fmt.Sprintf("SELECT %s FROM %s", joinColumns(cols), schema.QuoteIdent(sm.Table))
	if sm.Active != "" {
		query += fmt.Sprintf(" WHERE %s", schema.QuoteIdent(sm.Active))
	}
	if sm.Position != "" {
		query += fmt.Sprintf(" ORDER BY %s", schema.QuoteIdent(sm.Position))
	} else {
		query += fmt.Sprintf(" ORDER BY %s", schema.QuoteIdent(sm.ID))
	}

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, dbErr(ctx, err, "failed to query order statuses")
	}
	defer rows.Close()

	var statuses []OrderStatus
	for rows.Next() {
		var st OrderStatus
		if err := rows.Scan(bind(&st)...); err != nil {
			return nil, dbErr(ctx, err, "failed to scan order status")
		}
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(ctx, err, "failed to read order statuses")
	}
	return statuses, nil
}

// ResolveByCode finds a status by its code; deployments without a code
// column match on the name instead.
func (s *StatusService) ResolveByCode(ctx context.Context, q pgxQuerier, code string) (*OrderStatus, error) {
	sm := s.maps.Statuses
	cols, bind := s.selectColumns()

	match := sm.Code
	if match == "" {
		match = sm.Name
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		joinColumns(cols), schema.QuoteIdent(sm.Table), schema.QuoteIdent(match))

	var st OrderStatus
	if err := q.QueryRow(ctx, query, code).Scan(bind(&st)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("order status %q not found", code)
		}
		return nil, dbErr(ctx, err, "failed to resolve order status %q", code)
	}
	return &st, nil
}

// NameByID returns the display text for a status id.
func (s *StatusService) NameByID(ctx context.Context, q pgxQuerier, id int) (string, error) {
	sm := s.maps.Statuses
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		schema.QuoteIdent(sm.Name), schema.QuoteIdent(sm.Table), schema.QuoteIdent(sm.ID))

	var name string
	if err := q.QueryRow(ctx, query, id).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", notFoundf("order status %d not found", id)
		}
		return "", dbErr(ctx, err, "failed to resolve order status %d", id)
	}
	return name, nil
}
