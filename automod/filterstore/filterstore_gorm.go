package filterstore

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type FilterRow struct {
	ID        uint64 `gorm:"primaryKey"`
	ChatID    int64  `gorm:"index"`
	Kind      string `gorm:"not null"`
	Pattern   string `gorm:"not null"`
	ExpiresAt *time.Time
	CreatedAt time.Time
}

func (FilterRow) TableName() string {
	return "filters"
}

func (r FilterRow) filter() Filter {
	return Filter{
		ID:        r.ID,
		ChatID:    r.ChatID,
		Kind:      Kind(r.Kind),
		Pattern:   r.Pattern,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
	}
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&FilterRow{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Add(ctx context.Context, f Filter) (Filter, error) {
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	row := FilterRow{
		ChatID:    f.ChatID,
		Kind:      string(f.Kind),
		Pattern:   f.Pattern,
		CreatedAt: f.CreatedAt.UTC(),
	}
	if f.ExpiresAt != nil {
		exp := f.ExpiresAt.UTC()
		row.ExpiresAt = &exp
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Filter{}, err
	}
	f.ID = row.ID
	return f, nil
}

func (s *GormStore) Remove(ctx context.Context, chatID int64, kind Kind, pattern string) (int, error) {
	res := s.db.WithContext(ctx).
		Where("chat_id = ? AND kind = ? AND pattern = ?", chatID, string(kind), pattern).
		Delete(&FilterRow{})
	return int(res.RowsAffected), res.Error
}

func (s *GormStore) List(ctx context.Context, chatID int64) ([]Filter, error) {
	var rows []FilterRow
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Filter, len(rows))
	for i, r := range rows {
		out[i] = r.filter()
	}
	return out, nil
}

// Expiry is evaluated in Go rather than SQL, so the result does not depend on how the driver serializes timestamps.
func (s *GormStore) ListActive(ctx context.Context, chatID int64, now time.Time) ([]Filter, error) {
	all, err := s.List(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return activeOnly(all, now), nil
}

func (s *GormStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	var rows []FilterRow
	if err := s.db.WithContext(ctx).Where("expires_at IS NOT NULL").Find(&rows).Error; err != nil {
		return 0, err
	}
	var ids []uint64
	for _, r := range rows {
		if !r.filter().ActiveAt(now) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Delete(&FilterRow{}, ids)
	return int(res.RowsAffected), res.Error
}
