package storage

import (
	"context"
	"fmt"

	"jobhill/internal/model"

	"gorm.io/gorm/clause"
)

// GetPreferences 返回用户偏好，尚未保存过时返回 ErrNotFound。
func (s *Store) GetPreferences(ctx context.Context, userID string) (model.UserPreferences, error) {
	var prefs model.UserPreferences
	if err := s.db.WithContext(ctx).First(&prefs, "user_id = ?", userID).Error; err != nil {
		if err = notFound(err); err == ErrNotFound {
			return model.UserPreferences{}, err
		}
		return model.UserPreferences{}, fmt.Errorf("get preferences: %w", err)
	}
	prefs.Normalize()
	return prefs, nil
}

// SavePreferences 按 user_id 插入或整行覆盖偏好。
func (s *Store) SavePreferences(ctx context.Context, prefs *model.UserPreferences) error {
	prefs.Normalize()
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"hidden_jobs",
			"hidden_companies",
			"preferred_companies",
			"preferred_categories",
			"favorite_jobs",
			"requires_sponsorship",
			"american_citizen",
			"hide_ng",
			"hide_et",
			"hide_internships",
			"dont_show_conf_hide",
			"updated_at",
		}),
	}).Create(prefs)
	if tx.Error != nil {
		return fmt.Errorf("save preferences: %w", tx.Error)
	}
	return nil
}
