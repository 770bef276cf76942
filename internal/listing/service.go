// Package listing 计算某个浏览者可见的开放职位列表：排除已投递与隐藏项、应用偏好开关、打分排序。
package listing

import (
	"context"
	"errors"
	"log"
	"os"
	"slices"

	"jobhill/internal/apperr"
	"jobhill/internal/auth"
	"jobhill/internal/model"
	"jobhill/internal/ranking"
	"jobhill/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Store 列表服务依赖的存储能力。
type Store interface {
	ListOpenJobs(ctx context.Context, q storage.JobQuery) ([]model.JobOffer, error)
	GetPreferences(ctx context.Context, userID string) (model.UserPreferences, error)
	AppliedJobIDs(ctx context.Context, userID string) ([]string, error)
}

// Result 列表结果，匿名浏览时 Preferences 为空。
type Result struct {
	Jobs        []model.ListedJob      `json:"jobs"`
	Total       int                    `json:"total"`
	Preferences *model.UserPreferences `json:"userPreferences,omitempty"`
}

// Service 职位列表服务。
type Service struct {
	store  Store
	logger *log.Logger
}

// Option 配置 Service。
type Option func(*Service)

// WithLogger 自定义日志输出。
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService 创建列表服务。
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: log.New(os.Stdout, "[listing] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListJobsForViewer 返回浏览者的职位列表。匿名用户看到全部开放职位，按发布时间倒序且分数为 0。
func (s *Service) ListJobsForViewer(ctx context.Context, viewer auth.Viewer) (Result, error) {
	if viewer.IsAnonymous() {
		jobs, err := s.store.ListOpenJobs(ctx, storage.JobQuery{})
		if err != nil {
			return Result{}, apperr.Unavailable("list jobs", err)
		}
		listed := make([]model.ListedJob, 0, len(jobs))
		for _, job := range jobs {
			listed = append(listed, model.NewListedJob(job))
		}
		return Result{Jobs: listed, Total: len(listed)}, nil
	}

	prefs, applied, err := s.loadViewerState(ctx, viewer.UserID)
	if err != nil {
		return Result{}, err
	}

	jobs, err := s.store.ListOpenJobs(ctx, storage.JobQuery{
		ExcludeIDs:        mergeIDs(applied, prefs.HiddenJobs),
		ExcludeCompanyIDs: prefs.HiddenCompanies,
	})
	if err != nil {
		return Result{}, apperr.Unavailable("list jobs", err)
	}
	return s.rank(jobs, prefs), nil
}

// ListJobsForCompanySet 在指定公司范围内走同样的过滤打分流程，用于取消隐藏公司后的增量回填。
func (s *Service) ListJobsForCompanySet(ctx context.Context, viewer auth.Viewer, companyIDs []int64) (Result, error) {
	if viewer.IsAnonymous() {
		return Result{}, apperr.AuthRequired()
	}
	if len(companyIDs) == 0 {
		return Result{}, apperr.Validation("companyIds must not be empty")
	}

	prefs, applied, err := s.loadViewerState(ctx, viewer.UserID)
	if err != nil {
		return Result{}, err
	}

	jobs, err := s.store.ListOpenJobs(ctx, storage.JobQuery{
		CompanyIDs: companyIDs,
		ExcludeIDs: mergeIDs(applied, prefs.HiddenJobs),
	})
	if err != nil {
		return Result{}, apperr.Unavailable("list jobs for companies", err)
	}
	return s.rank(jobs, prefs), nil
}

// ListJobsByIDs 取出指定 ID 的开放职位，用于展示用户的隐藏列表。分数与隐藏标记一并计算。
func (s *Service) ListJobsByIDs(ctx context.Context, viewer auth.Viewer, ids []string) (Result, error) {
	if viewer.IsAnonymous() {
		return Result{}, apperr.AuthRequired()
	}
	if len(ids) == 0 {
		return Result{Jobs: []model.ListedJob{}}, nil
	}

	prefs, err := s.loadPreferences(ctx, viewer.UserID)
	if err != nil {
		return Result{}, err
	}
	jobs, err := s.store.ListOpenJobs(ctx, storage.JobQuery{IDs: ids})
	if err != nil {
		return Result{}, apperr.Unavailable("list jobs by ids", err)
	}

	listed := make([]model.ListedJob, 0, len(jobs))
	for _, job := range jobs {
		item := model.NewListedJob(job)
		item.PreferenceScore = ranking.Score(job, prefs)
		item.IsFavorite = prefs.Favors(job.ID)
		item.IsHidden = prefs.HidesJob(job.ID)
		listed = append(listed, item)
	}
	ranking.SortJobs(listed, ranking.OrderNewest)
	return Result{Jobs: listed, Total: len(listed), Preferences: &prefs}, nil
}

// rank 对已排除投递与隐藏项的职位应用偏好开关、打分并排序。
func (s *Service) rank(jobs []model.JobOffer, prefs model.UserPreferences) Result {
	policy := ranking.PolicyFrom(prefs)
	listed := make([]model.ListedJob, 0, len(jobs))
	for _, job := range jobs {
		if !policy.Allows(job) {
			continue
		}
		item := model.NewListedJob(job)
		item.PreferenceScore = ranking.Score(job, prefs)
		item.IsFavorite = prefs.Favors(job.ID)
		listed = append(listed, item)
	}
	ranking.SortJobs(listed, ranking.OrderNewest)
	return Result{Jobs: listed, Total: len(listed), Preferences: &prefs}
}

// loadViewerState 并发读取偏好与已投递职位。
func (s *Service) loadViewerState(ctx context.Context, userID string) (model.UserPreferences, []string, error) {
	var (
		prefs   model.UserPreferences
		applied []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.loadPreferences(gctx, userID)
		prefs = p
		return err
	})
	g.Go(func() error {
		ids, err := s.store.AppliedJobIDs(gctx, userID)
		if err != nil {
			return apperr.Unavailable("load applied jobs", err)
		}
		applied = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Printf("load viewer state user=%s: %v", userID, err)
		return model.UserPreferences{}, nil, err
	}
	return prefs, applied, nil
}

func (s *Service) loadPreferences(ctx context.Context, userID string) (model.UserPreferences, error) {
	prefs, err := s.store.GetPreferences(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.DefaultPreferences(userID), nil
	}
	if err != nil {
		return model.UserPreferences{}, apperr.Unavailable("load preferences", err)
	}
	return prefs, nil
}

func mergeIDs(groups ...[]string) []string {
	var out []string
	for _, group := range groups {
		for _, id := range group {
			if id != "" && !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out
}
