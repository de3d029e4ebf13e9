// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/connect4bot/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	db, err := gorm.Open(postgres.Open(postgresDSN(host, port, user, password, dbname)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormRoundRecord{}, &models.GormRoundPlayer{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveRoundRecord 保存对局记录，参与者随记录一起写入
func (p *GormPostgreSQL) SaveRoundRecord(ctx context.Context, rec *models.RoundRecord) error {
	row := models.NewGormRoundRecord(rec)
	if err := p.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	rec.ID = int64(row.ID)
	return nil
}

func (p *GormPostgreSQL) LoadRoundRecord(ctx context.Context, roundID int) (*models.RoundRecord, error) {
	var row models.GormRoundRecord
	err := p.db.WithContext(ctx).Where("round_id = ?", roundID).Order("id desc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Record(), nil
}

func (p *GormPostgreSQL) GetPlayerStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	var counts []struct {
		Outcome string
		Count   int
	}
	err := p.db.WithContext(ctx).
		Model(&models.GormRoundPlayer{}).
		Select("outcome, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("outcome").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	stats := &models.PlayerStats{UserID: userID}
	for _, c := range counts {
		stats.Add(c.Outcome, c.Count)
	}
	return stats, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
