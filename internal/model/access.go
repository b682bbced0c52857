package model

import (
	"time"

	"crm-gateway-go/pkg/tasks"
)

// AccessRecord 定义了 access_journal 表的 ORM 模型，每个处理过的请求一行。
type AccessRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    string    `gorm:"type:char(36);uniqueIndex;not null" json:"eventId"`
	Kind       string    `gorm:"type:varchar(32);index;not null" json:"kind"`
	DBHost     string    `gorm:"type:varchar(255)" json:"dbHost"`
	DBPath     string    `gorm:"type:varchar(512)" json:"dbPath"`
	Target     string    `gorm:"type:varchar(255)" json:"target"`
	Outcome    string    `gorm:"type:varchar(32);not null" json:"outcome"`
	Detail     string    `gorm:"type:text" json:"detail"`
	DurationMs int64     `gorm:"not null;default:0" json:"durationMs"`
	OccurredAt time.Time `gorm:"index;not null" json:"occurredAt"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (AccessRecord) TableName() string {
	return "access_journal"
}

// NewAccessRecord 把访问事件转换为表记录。
func NewAccessRecord(e tasks.AccessEvent) *AccessRecord {
	return &AccessRecord{
		EventID:    e.EventID,
		Kind:       e.Kind,
		DBHost:     e.DBHost,
		DBPath:     e.DBPath,
		Target:     e.Target,
		Outcome:    e.Outcome,
		Detail:     e.Detail,
		DurationMs: e.DurationMs,
		OccurredAt: e.OccurredAt,
	}
}
