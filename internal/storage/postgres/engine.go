package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"tombstone/internal/core/apperror"
	"tombstone/internal/query"
	"tombstone/internal/storage"
)

// Engine implements the storage contract on PostgreSQL. A session flush is
// applied inside one transaction; selects compile conditions (including
// injected read filters) into squirrel predicates.
type Engine struct {
	txm    *TxManager
	schema storage.Schema
}

// Compile-time check that Engine implements the storage contract.
var _ storage.Engine = (*Engine)(nil)

// NewEngine creates a PostgreSQL engine over the given schema. The schema's
// column lists drive SELECT projections and whitelist condition fields.
func NewEngine(txm *TxManager, schema storage.Schema) *Engine {
	return &Engine{txm: txm, schema: schema}
}

// builder returns a squirrel builder with PostgreSQL placeholder format.
func (e *Engine) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Flush applies the batch in order within one transaction. Any failure rolls
// the whole batch back and surfaces unchanged.
func (e *Engine) Flush(ctx context.Context, ops []storage.Operation) error {
	return e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		querier := e.txm.GetQuerier(ctx)
		for _, op := range ops {
			if err := e.apply(ctx, querier, op); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) apply(ctx context.Context, querier Querier, op storage.Operation) error {
	switch op.Kind {
	case storage.OpInsert:
		return e.insert(ctx, querier, op)
	case storage.OpUpdate:
		return e.update(ctx, querier, op)
	case storage.OpDelete:
		return e.delete(ctx, querier, op)
	default:
		return apperror.NewInternal(fmt.Errorf("unknown operation kind %d", op.Kind))
	}
}

func (e *Engine) insertSQL(op storage.Operation) (string, []any, error) {
	data := e.knownColumns(op.Table, op.Columns)
	if len(data) == 0 {
		return "", nil, fmt.Errorf("no known columns for insert into %s", op.Table)
	}

	return e.builder().
		Insert(op.Table).
		SetMap(data).
		ToSql()
}

func (e *Engine) insert(ctx context.Context, querier Querier, op storage.Operation) error {
	sql, args, err := e.insertSQL(op)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", op.Table, err)
	}
	return nil
}

func (e *Engine) updateSQL(op storage.Operation) (string, []any, error) {
	data := e.knownColumns(op.Table, op.Columns)
	delete(data, "id")      // never update the primary key
	delete(data, "version") // version is managed below (optimistic locking)
	if len(data) == 0 {
		return "", nil, fmt.Errorf("no known columns for update of %s", op.Table)
	}

	q := e.builder().
		Update(op.Table).
		SetMap(data).
		Where(squirrel.Eq{"id": op.ID})

	if op.ExpectedVersion > 0 {
		q = q.
			Set("version", squirrel.Expr("version + 1")).
			Where(squirrel.Eq{"version": op.ExpectedVersion})
	}

	return q.ToSql()
}

func (e *Engine) update(ctx context.Context, querier Querier, op storage.Operation) error {
	sql, args, err := e.updateSQL(op)
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", op.Table, err)
	}

	if result.RowsAffected() == 0 {
		if op.ExpectedVersion > 0 {
			return apperror.NewConcurrentModification(op.Table, op.ID.String())
		}
		return apperror.NewNotFound(op.Table, op.ID.String())
	}
	return nil
}

func (e *Engine) deleteSQL(op storage.Operation) (string, []any, error) {
	return e.builder().
		Delete(op.Table).
		Where(squirrel.Eq{"id": op.ID}).
		ToSql()
}

func (e *Engine) delete(ctx context.Context, querier Querier, op storage.Operation) error {
	sql, args, err := e.deleteSQL(op)
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		// Foreign key violation (23503): the row is referenced elsewhere.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperror.NewConflict("cannot delete: row is referenced by other records").
				WithDetail("table", op.Table).
				WithDetail("id", op.ID.String()).
				WithCause(err)
		}
		return fmt.Errorf("delete %s: %w", op.Table, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(op.Table, op.ID.String())
	}
	return nil
}

// knownColumns keeps only columns present in the table's schema.
func (e *Engine) knownColumns(table string, columns map[string]any) map[string]any {
	t, ok := e.schema[table]
	if !ok {
		return nil
	}
	filtered := make(map[string]any, len(t.Columns))
	for _, col := range t.Columns {
		if val, ok := columns[col]; ok {
			filtered[col] = val
		}
	}
	return filtered
}

// Select executes a compiled query and scans all rows into dest.
func (e *Engine) Select(ctx context.Context, q query.Compiled, dest any) error {
	sql, args, err := e.buildSelect(q)
	if err != nil {
		return err
	}

	querier := e.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, dest, sql, args...); err != nil {
		return fmt.Errorf("select %s: %w", q.Table, err)
	}
	return nil
}

// Get executes a compiled query expecting a single row.
func (e *Engine) Get(ctx context.Context, q query.Compiled, dest any) error {
	q.Limit = 1
	sql, args, err := e.buildSelect(q)
	if err != nil {
		return err
	}

	querier := e.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, dest, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(q.Table, nil)
		}
		return fmt.Errorf("get %s: %w", q.Table, err)
	}
	return nil
}

func (e *Engine) buildSelect(q query.Compiled) (string, []any, error) {
	table, ok := e.schema[q.Table]
	if !ok {
		return "", nil, apperror.NewValidation("unknown table").WithDetail("table", q.Table)
	}

	sb := e.builder().
		Select(table.Columns...).
		From(q.Table)

	sb, err := e.applyConditions(sb, q.Table, q.Conditions)
	if err != nil {
		return "", nil, err
	}

	if q.OrderBy != "" {
		orderBy, err := e.parseOrderBy(q.Table, q.OrderBy)
		if err != nil {
			return "", nil, err
		}
		sb = sb.OrderBy(orderBy)
	}

	if q.Limit > 0 {
		sb = sb.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		sb = sb.Offset(uint64(q.Offset))
	}

	return sb.ToSql()
}

// applyConditions compiles conditions into squirrel predicates. Fields are
// whitelisted against the schema for SQL injection protection.
func (e *Engine) applyConditions(sb squirrel.SelectBuilder, table string, conds []query.Condition) (squirrel.SelectBuilder, error) {
	for _, c := range conds {
		if !e.schema.HasColumn(table, c.Field) {
			return sb, apperror.NewValidation("invalid condition column").
				WithDetail("table", table).
				WithDetail("field", c.Field)
		}

		switch c.Op {
		case query.OpEq:
			sb = sb.Where(squirrel.Eq{c.Field: c.Value})
		case query.OpNotEq:
			sb = sb.Where(squirrel.NotEq{c.Field: c.Value})
		case query.OpLt:
			sb = sb.Where(squirrel.Lt{c.Field: c.Value})
		case query.OpLte:
			sb = sb.Where(squirrel.LtOrEq{c.Field: c.Value})
		case query.OpGt:
			sb = sb.Where(squirrel.Gt{c.Field: c.Value})
		case query.OpGte:
			sb = sb.Where(squirrel.GtOrEq{c.Field: c.Value})
		case query.OpIn:
			sb = sb.Where(squirrel.Eq{c.Field: c.Value})
		case query.OpNotIn:
			sb = sb.Where(squirrel.NotEq{c.Field: c.Value})
		case query.OpIsNull:
			sb = sb.Where(squirrel.Eq{c.Field: nil})
		case query.OpNotNull:
			sb = sb.Where(squirrel.NotEq{c.Field: nil})
		case query.OpContains:
			sb = sb.Where(squirrel.ILike{c.Field: fmt.Sprintf("%%%v%%", c.Value)})
		default:
			return sb, apperror.NewValidation("unknown condition operator").
				WithDetail("operator", string(c.Op))
		}
	}
	return sb, nil
}

// parseOrderBy validates and translates "field" / "-field" ordering.
func (e *Engine) parseOrderBy(table, orderBy string) (string, error) {
	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" || !e.schema.HasColumn(table, field) {
		return "", apperror.NewValidation("invalid orderBy").
			WithDetail("orderBy", orderBy).
			WithDetail("table", table)
	}

	return field + " " + direction, nil
}
