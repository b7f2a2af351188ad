package settings

import (
	"context"
	"errors"
	"time"

	"github.com/iris-chat/warden/automod/policy"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PolicyRow struct {
	ChatID                int64 `gorm:"primaryKey;autoIncrement:false"`
	AutoModEnabled        bool
	StrikeLimit           int
	EscalationAction      string
	EscalationMuteMinutes int
	FloodEnabled          bool
	FloodThreshold        int
	FloodTimeframeSeconds int
	FloodAction           string
	FloodMuteMinutes      int
	PrivacyMode           bool
	RetentionDays         int
	UpdatedAt             time.Time
}

func (PolicyRow) TableName() string {
	return "chat_policies"
}

type GormPolicyStore struct {
	db *gorm.DB
}

var _ PolicyStore = (*GormPolicyStore)(nil)

func NewGormPolicyStore(db *gorm.DB) (*GormPolicyStore, error) {
	if err := db.AutoMigrate(&PolicyRow{}); err != nil {
		return nil, err
	}
	return &GormPolicyStore{db: db}, nil
}

func (s *GormPolicyStore) Get(ctx context.Context, chatID int64) (policy.ChatPolicy, error) {
	var row PolicyRow
	err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return policy.Default(), nil
	} else if err != nil {
		return policy.ChatPolicy{}, err
	}
	return policy.ChatPolicy{
		AutoModEnabled:        row.AutoModEnabled,
		StrikeLimit:           row.StrikeLimit,
		EscalationAction:      policy.Action(row.EscalationAction),
		EscalationMuteMinutes: row.EscalationMuteMinutes,
		FloodEnabled:          row.FloodEnabled,
		FloodThreshold:        row.FloodThreshold,
		FloodTimeframeSeconds: row.FloodTimeframeSeconds,
		FloodAction:           policy.Action(row.FloodAction),
		FloodMuteMinutes:      row.FloodMuteMinutes,
		PrivacyMode:           row.PrivacyMode,
		RetentionDays:         row.RetentionDays,
	}, nil
}

func (s *GormPolicyStore) Put(ctx context.Context, chatID int64, p policy.ChatPolicy) error {
	row := PolicyRow{
		ChatID:                chatID,
		AutoModEnabled:        p.AutoModEnabled,
		StrikeLimit:           p.StrikeLimit,
		EscalationAction:      string(p.EscalationAction),
		EscalationMuteMinutes: p.EscalationMuteMinutes,
		FloodEnabled:          p.FloodEnabled,
		FloodThreshold:        p.FloodThreshold,
		FloodTimeframeSeconds: p.FloodTimeframeSeconds,
		FloodAction:           string(p.FloodAction),
		FloodMuteMinutes:      p.FloodMuteMinutes,
		PrivacyMode:           p.PrivacyMode,
		RetentionDays:         p.RetentionDays,
		UpdatedAt:             time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}
