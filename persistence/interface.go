// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/wfunc/connect4bot/models"
)

// Database 对局归档接口
type Database interface {
	// SaveRoundRecord stores a finished round and sets rec.ID.
	SaveRoundRecord(ctx context.Context, rec *models.RoundRecord) error
	// LoadRoundRecord returns the most recent archive of the given round id.
	LoadRoundRecord(ctx context.Context, roundID int) (*models.RoundRecord, error)
	GetPlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUnknownDriver  = errors.New("unknown database driver")
)
