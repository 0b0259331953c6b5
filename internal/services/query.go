package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // registers the sqlite3 dialect
	"github.com/isdelr/bookshare-be/internal/database"
	"github.com/jmoiron/sqlx"
)

var dialect = goqu.Dialect(database.Dialect)

// sqlBuilder is satisfied by every goqu dataset.
type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func selectAll(ctx context.Context, q querier, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return q.SelectContext(ctx, dest, query, args...)
}

func getOne(ctx context.Context, q querier, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return q.GetContext(ctx, dest, query, args...)
}

// execAffected runs b and returns the number of rows it touched.
func execAffected(ctx context.Context, q querier, b sqlBuilder) (int64, error) {
	res, err := execResult(ctx, q, b)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// execInsert runs b and returns the id of the inserted row.
func execInsert(ctx context.Context, q querier, b sqlBuilder) (int64, error) {
	res, err := execResult(ctx, q, b)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func execResult(ctx context.Context, q querier, b sqlBuilder) (sql.Result, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return q.ExecContext(ctx, query, args...)
}
