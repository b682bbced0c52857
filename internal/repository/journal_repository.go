package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"crm-gateway-go/internal/model"
)

// JournalRepository 接口定义了访问日志的持久化操作。
type JournalRepository interface {
	Create(ctx context.Context, record *model.AccessRecord) error
	// ExistsByEventID 用于消费端去重，Kafka 可能重复投递同一事件
	ExistsByEventID(ctx context.Context, eventID string) (bool, error)
	AutoMigrate() error
}

type journalRepository struct {
	db *gorm.DB
}

// NewJournalRepository 创建一个新的 JournalRepository 实例。
func NewJournalRepository(db *gorm.DB) JournalRepository {
	return &journalRepository{db: db}
}

// Create 写入一条访问记录。
func (r *journalRepository) Create(ctx context.Context, record *model.AccessRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *journalRepository) ExistsByEventID(ctx context.Context, eventID string) (bool, error) {
	var record model.AccessRecord
	err := r.db.WithContext(ctx).Select("id").Where("event_id = ?", eventID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *journalRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&model.AccessRecord{})
}
