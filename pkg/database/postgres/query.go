package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// QueryBuilder 使用 $n 占位符的 squirrel 构建器
var QueryBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Querier Client 与事务共同实现的查询接口，DAO 只依赖它
type Querier interface {
	// Exec 执行写操作，返回影响行数
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*Client)(nil)

// applyQueryTimeout 为单次查询附加超时
func (c *Client) applyQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.QueryTimeout)
	}
	return ctx, func() {}
}

// Exec 在主库执行写操作
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	ctx, cancel := c.applyQueryTimeout(ctx)
	defer cancel()

	tag, err := c.getMaster().Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Query 在从库执行查询，超时在 rows.Close 时释放
func (c *Client) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, cancel := c.applyQueryTimeout(ctx)
	rows, err := c.getSlave().Query(ctx, sql, args...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return &timeoutRows{Rows: rows, cancel: cancel}, nil
}

// QueryRow 在从库查询单行，超时在 Scan 后释放
func (c *Client) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, cancel := c.applyQueryTimeout(ctx)
	return &timeoutRow{row: c.getSlave().QueryRow(ctx, sql, args...), cancel: cancel}
}

// QueryRowMaster 在主库查询单行，用于写后立即读
func (c *Client) QueryRowMaster(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, cancel := c.applyQueryTimeout(ctx)
	return &timeoutRow{row: c.getMaster().QueryRow(ctx, sql, args...), cancel: cancel}
}

type timeoutRow struct {
	row    pgx.Row
	cancel context.CancelFunc
}

func (r *timeoutRow) Scan(dest ...any) error {
	defer r.cancel()
	return r.row.Scan(dest...)
}

type timeoutRows struct {
	pgx.Rows
	cancel context.CancelFunc
}

func (r *timeoutRows) Close() {
	r.Rows.Close()
	r.cancel()
}
