package storage

import (
	"context"
	"fmt"

	"jobhill/internal/model"
)

// ListApplications 返回用户的全部投递记录，按投递日期倒序。
func (s *Store) ListApplications(ctx context.Context, userID string) ([]model.Application, error) {
	var apps []model.Application
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("applied_date DESC").
		Order("created_at DESC").
		Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// AppliedJobIDs 返回用户已投递过的站内职位 ID。
func (s *Store) AppliedJobIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&model.Application{}).
		Where("user_id = ? AND job_offer_id <> ''", userID).
		Distinct().
		Pluck("job_offer_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("applied job ids: %w", err)
	}
	return ids, nil
}

// FindApplicationByJob 查找用户对某个职位的投递记录。
func (s *Store) FindApplicationByJob(ctx context.Context, userID, jobOfferID string) (*model.Application, error) {
	var app model.Application
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND job_offer_id = ?", userID, jobOfferID).
		First(&app).Error; err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return &app, nil
}

// CreateApplication 新增投递记录。
func (s *Store) CreateApplication(ctx context.Context, app *model.Application) error {
	if err := s.db.WithContext(ctx).Create(app).Error; err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// GetApplication 获取属于该用户的投递记录。
func (s *Store) GetApplication(ctx context.Context, userID, id string) (*model.Application, error) {
	var app model.Application
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&app).Error; err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &app, nil
}

// UpdateApplication 按列更新投递记录，归属校验放在 WHERE 条件里。
func (s *Store) UpdateApplication(ctx context.Context, userID, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	tx := s.db.WithContext(ctx).Model(&model.Application{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if tx.Error != nil {
		return fmt.Errorf("update application: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteApplication 删除属于该用户的投递记录。
func (s *Store) DeleteApplication(ctx context.Context, userID, id string) error {
	tx := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Application{})
	if tx.Error != nil {
		return fmt.Errorf("delete application: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
