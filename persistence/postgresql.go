// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS round_records (
        id BIGSERIAL PRIMARY KEY,
        round_id INTEGER NOT NULL,
        variant VARCHAR(32) NOT NULL,
        width INTEGER NOT NULL,
        height INTEGER NOT NULL,
        length INTEGER NOT NULL,
        winner_id VARCHAR(255) NOT NULL DEFAULT '',
        termination VARCHAR(32) NOT NULL,
        players JSONB NOT NULL,
        moves JSONB NOT NULL,
        started_at TIMESTAMPTZ NOT NULL,
        ended_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS round_players (
        record_id BIGINT NOT NULL REFERENCES round_records(id),
        user_id VARCHAR(255) NOT NULL,
        outcome VARCHAR(32) NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_round_records_round_id ON round_records(round_id)`,
	`CREATE INDEX IF NOT EXISTS idx_round_players_user_id ON round_players(user_id)`,
}

// PostgreSQL 数据库实现
type PostgreSQL struct {
	sqlArchive
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", postgresDSN(host, port, user, password, dbname))
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initSchema(ctx, db, postgresSchema); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{sqlArchive{db: db, numbered: true}}, nil
}

func postgresDSN(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}
