package restriction

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RestrictionRow struct {
	ChatID     int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID     int64 `gorm:"primaryKey;autoIncrement:false"`
	Active     bool  `gorm:"index"`
	Until      *time.Time
	Generation uint64
	UpdatedAt  time.Time
}

func (RestrictionRow) TableName() string {
	return "restrictions"
}

func (r RestrictionRow) restriction() Restriction {
	return Restriction{
		ChatID:     r.ChatID,
		UserID:     r.UserID,
		Active:     r.Active,
		Until:      r.Until,
		Generation: r.Generation,
	}
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&RestrictionRow{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, chatID, userID int64) (Restriction, error) {
	var row RestrictionRow
	err := s.db.WithContext(ctx).Where("chat_id = ? AND user_id = ?", chatID, userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Restriction{ChatID: chatID, UserID: userID}, nil
	} else if err != nil {
		return Restriction{}, err
	}
	return row.restriction(), nil
}

func (s *GormStore) Put(ctx context.Context, r Restriction) error {
	row := RestrictionRow{
		ChatID:     r.ChatID,
		UserID:     r.UserID,
		Active:     r.Active,
		Generation: r.Generation,
		UpdatedAt:  time.Now().UTC(),
	}
	if r.Until != nil {
		until := r.Until.UTC()
		row.Until = &until
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "until", "generation", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) ListActive(ctx context.Context) ([]Restriction, error) {
	var rows []RestrictionRow
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Restriction, len(rows))
	for i, r := range rows {
		out[i] = r.restriction()
	}
	return out, nil
}
