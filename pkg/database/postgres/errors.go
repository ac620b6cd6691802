package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("postgres: config is nil")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("postgres: invalid config")

	// ErrNoRows 没有查询到数据
	ErrNoRows = pgx.ErrNoRows
)

// 常用的 SQLSTATE
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// IsNoRows 是否为空结果
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation 是否违反唯一约束
func IsUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// IsCheckViolation 是否违反 CHECK 约束（例如数量不能为负）
func IsCheckViolation(err error) bool {
	return pgCode(err) == codeCheckViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
