package strikestore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StrikeRow struct {
	ChatID     int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID     int64 `gorm:"primaryKey;autoIncrement:false"`
	Count      int   `gorm:"not null;default:0"`
	LastReason string
	UpdatedAt  time.Time
}

func (StrikeRow) TableName() string {
	return "strikes"
}

type GormStrikeStore struct {
	db *gorm.DB
}

var _ StrikeStore = (*GormStrikeStore)(nil)

func NewGormStrikeStore(db *gorm.DB) (*GormStrikeStore, error) {
	if err := db.AutoMigrate(&StrikeRow{}); err != nil {
		return nil, err
	}
	return &GormStrikeStore{db: db}, nil
}

func (s *GormStrikeStore) RecordStrike(ctx context.Context, chatID, userID int64, reason string) (int, error) {
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := StrikeRow{
			ChatID:     chatID,
			UserID:     userID,
			Count:      1,
			LastReason: reason,
			UpdatedAt:  time.Now(),
		}
		// single-statement upsert; the increment happens inside the database
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"count":       gorm.Expr("strikes.count + 1"),
				"last_reason": gorm.Expr("CASE WHEN excluded.last_reason <> '' THEN excluded.last_reason ELSE strikes.last_reason END"),
				"updated_at":  gorm.Expr("excluded.updated_at"),
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Model(&StrikeRow{}).
			Where("chat_id = ? AND user_id = ?", chatID, userID).
			Select("count").
			Scan(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *GormStrikeStore) ResetStrikes(ctx context.Context, chatID, userID int64) error {
	return s.db.WithContext(ctx).Model(&StrikeRow{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Updates(map[string]any{"count": 0, "updated_at": time.Now()}).Error
}

func (s *GormStrikeStore) GetStrikes(ctx context.Context, chatID, userID int64) (int, error) {
	rec, err := s.GetRecord(ctx, chatID, userID)
	return rec.Count, err
}

func (s *GormStrikeStore) GetRecord(ctx context.Context, chatID, userID int64) (Record, error) {
	rec := Record{ChatID: chatID, UserID: userID}
	var row StrikeRow
	err := s.db.WithContext(ctx).Where("chat_id = ? AND user_id = ?", chatID, userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, nil
	} else if err != nil {
		return rec, err
	}
	rec.Count = row.Count
	rec.LastReason = row.LastReason
	return rec, nil
}
