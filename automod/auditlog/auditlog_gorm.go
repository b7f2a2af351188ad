package auditlog

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type AuditRow struct {
	ID         uint64    `gorm:"primaryKey"`
	ChatID     int64     `gorm:"index:idx_audit_chat_at"`
	ActorID    int64     `gorm:"not null"`
	ActionType string    `gorm:"not null"`
	TargetID   *int64
	Reason     string
	At         time.Time `gorm:"index:idx_audit_chat_at"`
}

func (AuditRow) TableName() string {
	return "audit_log"
}

type GormAuditLog struct {
	db *gorm.DB
}

var _ AuditLog = (*GormAuditLog)(nil)

func NewGormAuditLog(db *gorm.DB) (*GormAuditLog, error) {
	if err := db.AutoMigrate(&AuditRow{}); err != nil {
		return nil, err
	}
	return &GormAuditLog{db: db}, nil
}

func (l *GormAuditLog) Append(ctx context.Context, e Entry) error {
	row := AuditRow{
		ChatID:     e.ChatID,
		ActorID:    e.ActorID,
		ActionType: e.ActionType,
		TargetID:   e.TargetID,
		Reason:     e.Reason,
		At:         e.At.UTC(),
	}
	return l.db.WithContext(ctx).Create(&row).Error
}

func (l *GormAuditLog) Summarize(ctx context.Context, chatID int64) (map[SummaryKey]int, error) {
	var rows []struct {
		ActorID    int64
		ActionType string
		Total      int
	}
	err := l.db.WithContext(ctx).Model(&AuditRow{}).
		Select("actor_id, action_type, count(*) as total").
		Where("chat_id = ?", chatID).
		Group("actor_id, action_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[SummaryKey]int, len(rows))
	for _, r := range rows {
		out[SummaryKey{ActorID: r.ActorID, ActionType: r.ActionType}] = r.Total
	}
	return out, nil
}

func (l *GormAuditLog) ListActors(ctx context.Context, chatID int64) ([]int64, error) {
	var out []int64
	err := l.db.WithContext(ctx).Model(&AuditRow{}).
		Where("chat_id = ?", chatID).
		Distinct("actor_id").
		Order("actor_id").
		Pluck("actor_id", &out).Error
	return out, err
}

func (l *GormAuditLog) Recent(ctx context.Context, chatID int64, limit int) ([]Entry, error) {
	var rows []AuditRow
	err := l.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("id desc").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = Entry{
			ID:         r.ID,
			ChatID:     r.ChatID,
			ActorID:    r.ActorID,
			ActionType: r.ActionType,
			TargetID:   r.TargetID,
			Reason:     r.Reason,
			At:         r.At,
		}
	}
	return out, nil
}

func (l *GormAuditLog) PurgeBefore(ctx context.Context, chatID int64, cutoff time.Time) (int64, error) {
	res := l.db.WithContext(ctx).Where("chat_id = ? AND at < ?", chatID, cutoff.UTC()).Delete(&AuditRow{})
	return res.RowsAffected, res.Error
}

func (l *GormAuditLog) Chats(ctx context.Context) ([]int64, error) {
	var out []int64
	err := l.db.WithContext(ctx).Model(&AuditRow{}).Distinct("chat_id").Order("chat_id").Pluck("chat_id", &out).Error
	return out, err
}
