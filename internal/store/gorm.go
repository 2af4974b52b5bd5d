package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// document is one stored collection.
type document struct {
	Name      string `gorm:"primaryKey;size:64"`
	Body      string `gorm:"type:longtext"`
	UpdatedAt time.Time
}

func (document) TableName() string { return "collections" }

// GormBackend stores every collection as a row of the collections table.
type GormBackend struct{ db *gorm.DB }

func NewGormBackend(db *gorm.DB) (*GormBackend, error) {
	if err := db.AutoMigrate(&document{}); err != nil {
		return nil, fmt.Errorf("migrate collections: %w", err)
	}
	return &GormBackend{db: db}, nil
}

func (b *GormBackend) Read(ctx context.Context, collection string) ([]byte, error) {
	var d document
	err := b.db.WithContext(ctx).Where("name = ?", collection).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	return []byte(d.Body), nil
}

func (b *GormBackend) Write(ctx context.Context, collection string, data []byte) error {
	d := document{Name: collection, Body: string(data), UpdatedAt: time.Now()}
	return b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&d).Error
}
