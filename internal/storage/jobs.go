package storage

import (
	"context"
	"fmt"

	"jobhill/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobQuery 描述开放职位的查询条件，空列表表示不限制。
type JobQuery struct {
	IDs               []string
	CompanyIDs        []int64
	ExcludeIDs        []string
	ExcludeCompanyIDs []int64
}

// UpsertResult 表示职位写入结果。
type UpsertResult struct {
	Created int
	NewJobs []model.JobOffer
}

// ListOpenJobs 返回状态为 Open 且公司存在的职位，按创建时间倒序，公司信息联表带出。
func (s *Store) ListOpenJobs(ctx context.Context, q JobQuery) ([]model.JobOffer, error) {
	var jobs []model.JobOffer
	query := s.db.WithContext(ctx).
		InnerJoins("Company").
		Where("job_offers.status = ?", model.StatusOpen)
	query = applyJobQuery(query, q)

	if err := query.Order("job_offers.created_at DESC").Order("job_offers.id").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list open jobs: %w", err)
	}
	return jobs, nil
}

// NOT IN () 在部分方言下会渲染为 NOT IN (NULL) 并过滤掉全部行，所以空列表直接跳过。
func applyJobQuery(db *gorm.DB, q JobQuery) *gorm.DB {
	if len(q.IDs) > 0 {
		db = db.Where("job_offers.id IN ?", q.IDs)
	}
	if len(q.CompanyIDs) > 0 {
		db = db.Where("job_offers.company_id IN ?", q.CompanyIDs)
	}
	if len(q.ExcludeIDs) > 0 {
		db = db.Where("job_offers.id NOT IN ?", q.ExcludeIDs)
	}
	if len(q.ExcludeCompanyIDs) > 0 {
		db = db.Where("job_offers.company_id NOT IN ?", q.ExcludeCompanyIDs)
	}
	return db
}

// UpsertJobs 写入职位列表，已有主键则更新，返回新增数量与新增记录。
func (s *Store) UpsertJobs(ctx context.Context, jobs []model.JobOffer) (UpsertResult, error) {
	res := UpsertResult{}
	if len(jobs) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}

	var existing []string
	if err := s.db.WithContext(ctx).Model(&model.JobOffer{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
		return res, fmt.Errorf("query existing ids: %w", err)
	}

	existingSet := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		existingSet[id] = struct{}{}
	}

	for i, id := range ids {
		if _, ok := existingSet[id]; !ok {
			res.Created++
			res.NewJobs = append(res.NewJobs, jobs[i])
			existingSet[id] = struct{}{}
		}
	}

	tx := s.db.WithContext(ctx).Omit("Company").Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"company_id",
			"job_title",
			"location",
			"modality",
			"period",
			"categories",
			"status",
			"url",
			"no_sponsor",
			"usa_citizen",
			"emerging_talent",
			"new_grad",
			"updated_at",
		}),
	}).Create(&jobs)
	if tx.Error != nil {
		return res, fmt.Errorf("upsert jobs: %w", tx.Error)
	}

	return res, nil
}

// GetJob 根据 ID 获取职位，不限状态，公司信息一并带出。
func (s *Store) GetJob(ctx context.Context, id string) (*model.JobOffer, error) {
	var job model.JobOffer
	if err := s.db.WithContext(ctx).Joins("Company").First(&job, "job_offers.id = ?", id).Error; err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// CloseMissingJobs 把不在 keep 中的开放职位标记为 Closed，返回受影响行数。
func (s *Store) CloseMissingJobs(ctx context.Context, keep []string) (int64, error) {
	query := s.db.WithContext(ctx).Model(&model.JobOffer{}).Where("status = ?", model.StatusOpen)
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	tx := query.Update("status", model.StatusClosed)
	if tx.Error != nil {
		return 0, fmt.Errorf("close missing jobs: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}
