// 包 utils：外部连接（PostgreSQL / Redis）与 TLS 证书的初始化工具
package utils

import (
	"database/sql"

	_ "github.com/lib/pq"

	"parking-api/internal/config"
)

// OpenPostgres：按配置打开连接池；不做 Ping，由调用方决定失败策略
func OpenPostgres(p config.Postgres) (*sql.DB, error) {
	db, err := sql.Open("postgres", p.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(p.MaxOpen)
	db.SetMaxIdleConns(p.MaxIdle)
	return db, nil
}
