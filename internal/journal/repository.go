package journal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres and migrates the outcome table.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := db.AutoMigrate(&Outcome{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return db, nil
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, o *Outcome) error {
	return r.db.WithContext(ctx).Create(o).Error
}

// Recent returns the newest outcomes first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Outcome, error) {
	var out []Outcome
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Prune deletes outcomes older than before.
func (r *Repository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&Outcome{})
	return res.RowsAffected, res.Error
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
