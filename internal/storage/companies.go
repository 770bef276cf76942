package storage

import (
	"context"
	"fmt"
	"strings"

	"jobhill/internal/model"
)

// UpsertCompanyByName 按名称查找公司，不存在则创建；logo 非空且变化时更新。
func (s *Store) UpsertCompanyByName(ctx context.Context, name, logo string) (model.Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Company{}, fmt.Errorf("upsert company: empty name")
	}

	var company model.Company
	tx := s.db.WithContext(ctx).Where(model.Company{Name: name}).Attrs(model.Company{Logo: logo}).FirstOrCreate(&company)
	if tx.Error != nil {
		return model.Company{}, fmt.Errorf("upsert company %q: %w", name, tx.Error)
	}
	if logo != "" && company.Logo != logo {
		if err := s.db.WithContext(ctx).Model(&company).Update("logo", logo).Error; err != nil {
			return model.Company{}, fmt.Errorf("update company logo %q: %w", name, err)
		}
		company.Logo = logo
	}
	return company, nil
}

// GetCompany 根据 ID 获取公司。
func (s *Store) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	var company model.Company
	if err := s.db.WithContext(ctx).First(&company, id).Error; err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &company, nil
}

// DeleteCompany 删除公司记录，其职位保留但不再出现在列表中。
func (s *Store) DeleteCompany(ctx context.Context, id int64) error {
	tx := s.db.WithContext(ctx).Delete(&model.Company{}, id)
	if tx.Error != nil {
		return fmt.Errorf("delete company: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
