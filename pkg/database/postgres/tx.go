package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxOptions 事务选项
type TxOptions struct {
	IsoLevel   pgx.TxIsoLevel
	AccessMode pgx.TxAccessMode
}

type txQuerier struct {
	tx pgx.Tx
}

func (t *txQuerier) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return rows, nil
}

func (t *txQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

// WithTx 在主库事务中执行 fn，fn 返回错误或 panic 时回滚
func (c *Client) WithTx(ctx context.Context, fn func(Querier) error) error {
	return c.WithTxOptions(ctx, TxOptions{}, fn)
}

// WithTxOptions 使用指定隔离级别执行事务
func (c *Client) WithTxOptions(ctx context.Context, opts TxOptions, fn func(Querier) error) error {
	tx, err := c.getMaster().BeginTx(ctx, pgx.TxOptions{IsoLevel: opts.IsoLevel, AccessMode: opts.AccessMode})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&txQuerier{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
