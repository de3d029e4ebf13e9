package persistence

import (
	"fmt"

	"github.com/wfunc/connect4bot/config"
)

// Open returns the archive selected by cfg.Driver, or nil for "none".
func Open(cfg config.DatabaseConfig) (Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		return NewSQLite(cfg.SQLite.Path)
	case "postgres":
		return NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "gorm":
		return NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
}
