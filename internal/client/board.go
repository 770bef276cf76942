package client

import (
	"context"
	"errors"
	"slices"
	"sync"

	"jobhill/internal/filter"
	"jobhill/internal/listing"
	"jobhill/internal/model"
	"jobhill/internal/ranking"
)

// ErrStale 响应已被更新的请求取代，结果未被采用。
var ErrStale = errors.New("client: stale response discarded")

// Phase 乐观更新的状态。
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseCommitted
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// API 是 Board 用到的服务端接口，*Client 实现了它。
type API interface {
	ListJobs(ctx context.Context) (listing.Result, error)
	HideJob(ctx context.Context, jobID string, hidden bool) (model.UserPreferences, error)
	FavoriteJob(ctx context.Context, jobID string, favorite bool) (model.UserPreferences, error)
	TogglePreferredCategory(ctx context.Context, category string) (model.UserPreferences, error)
	TogglePreferredCompany(ctx context.Context, companyID int64) (model.UserPreferences, error)
}

// Board 保存一个会话的职位与偏好。写操作先在本地生效，失败时恢复快照。
// 同一时刻只有一个乐观写在途。
type Board struct {
	api API
	gen Generation

	writeMu sync.Mutex

	mu    sync.RWMutex
	jobs  []model.ListedJob
	prefs model.UserPreferences
	phase Phase
	// rev 每次 Refresh 落地时递增，prefsRev 仅在刷新带回偏好时递增。
	rev      uint64
	prefsRev uint64
}

func NewBoard(api API) *Board {
	return &Board{api: api, prefs: model.DefaultPreferences("")}
}

// Refresh 重新拉取职位。被更晚的 Refresh 取代时返回 ErrStale 且不修改状态。
func (b *Board) Refresh(ctx context.Context) error {
	token := b.gen.Next()
	res, err := b.api.ListJobs(ctx)
	if !b.gen.IsCurrent(token) {
		return ErrStale
	}
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs = res.Jobs
	if res.Preferences != nil {
		b.prefs = res.Preferences.Clone()
		b.prefsRev++
	}
	b.rev++
	return nil
}

func (b *Board) Jobs() []model.ListedJob {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.jobs)
}

func (b *Board) Preferences() model.UserPreferences {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.prefs.Clone()
}

// Phase 返回最近一次乐观写的状态。
func (b *Board) Phase() Phase {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.phase
}

// Visible 对当前职位套用筛选条件。
func (b *Board) Visible(c filter.JobCriteria) []model.ListedJob {
	return filter.Jobs(b.Jobs(), c)
}

// Companies 对筛选后的职位按公司聚合。
func (b *Board) Companies(c filter.JobCriteria) []filter.CompanyGroup {
	b.mu.RLock()
	preferred := slices.Clone(b.prefs.PreferredCompanies)
	b.mu.RUnlock()
	return filter.Companies(b.Visible(c), preferred)
}

// HideJob 隐藏职位并从列表中移除。
func (b *Board) HideJob(ctx context.Context, jobID string) error {
	return b.optimistic(ctx, func(jobs []model.ListedJob, prefs *model.UserPreferences) []model.ListedJob {
		if !prefs.HidesJob(jobID) {
			prefs.HiddenJobs = append(prefs.HiddenJobs, jobID)
		}
		return slices.DeleteFunc(jobs, func(j model.ListedJob) bool { return j.ID == jobID })
	}, func(ctx context.Context) (model.UserPreferences, error) {
		return b.api.HideJob(ctx, jobID, true)
	})
}

// ToggleFavorite 切换职位的收藏状态。
func (b *Board) ToggleFavorite(ctx context.Context, jobID string) error {
	var want bool
	return b.optimistic(ctx, func(jobs []model.ListedJob, prefs *model.UserPreferences) []model.ListedJob {
		want = !prefs.Favors(jobID)
		if want {
			prefs.FavoriteJobs = append(prefs.FavoriteJobs, jobID)
		} else {
			prefs.FavoriteJobs = slices.DeleteFunc(prefs.FavoriteJobs, func(id string) bool { return id == jobID })
		}
		for i := range jobs {
			if jobs[i].ID == jobID {
				jobs[i].IsFavorite = want
			}
		}
		return jobs
	}, func(ctx context.Context) (model.UserPreferences, error) {
		return b.api.FavoriteJob(ctx, jobID, want)
	})
}

// TogglePreferredCategory 切换偏好类别并重新计算分数，已满 4 个时新增不生效。
func (b *Board) TogglePreferredCategory(ctx context.Context, category string) error {
	return b.optimistic(ctx, func(jobs []model.ListedJob, prefs *model.UserPreferences) []model.ListedJob {
		if i := slices.Index(prefs.PreferredCategories, category); i >= 0 {
			prefs.PreferredCategories = slices.Delete(prefs.PreferredCategories, i, i+1)
		} else if len(prefs.PreferredCategories) < model.MaxPreferredCategories {
			prefs.PreferredCategories = append(prefs.PreferredCategories, category)
		}
		return rescore(jobs, *prefs)
	}, func(ctx context.Context) (model.UserPreferences, error) {
		return b.api.TogglePreferredCategory(ctx, category)
	})
}

// TogglePreferredCompany 切换偏好公司并重新计算分数。
func (b *Board) TogglePreferredCompany(ctx context.Context, companyID int64) error {
	return b.optimistic(ctx, func(jobs []model.ListedJob, prefs *model.UserPreferences) []model.ListedJob {
		if i := slices.Index(prefs.PreferredCompanies, companyID); i >= 0 {
			prefs.PreferredCompanies = slices.Delete(prefs.PreferredCompanies, i, i+1)
		} else {
			prefs.PreferredCompanies = append(prefs.PreferredCompanies, companyID)
		}
		return rescore(jobs, *prefs)
	}, func(ctx context.Context) (model.UserPreferences, error) {
		return b.api.TogglePreferredCompany(ctx, companyID)
	})
}

// optimistic 快照当前状态，本地应用 apply，再提交 write。
// 失败时恢复快照并进入 RolledBack；成功时以服务端返回的偏好为准并进入 Committed。
// 写入在途期间若有 Refresh 落地，失败时保留刷新结果，成功时在刷新结果上套用返回的偏好。
func (b *Board) optimistic(
	ctx context.Context,
	apply func(jobs []model.ListedJob, prefs *model.UserPreferences) []model.ListedJob,
	write func(ctx context.Context) (model.UserPreferences, error),
) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	snapJobs := slices.Clone(b.jobs)
	snapPrefs := b.prefs.Clone()
	next := b.prefs.Clone()
	b.jobs = apply(slices.Clone(b.jobs), &next)
	b.prefs = next
	b.phase = PhasePending
	rev, prefsRev := b.rev, b.prefsRev
	b.mu.Unlock()

	saved, err := write(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	refreshed := b.rev != rev
	if err != nil {
		if !refreshed {
			b.jobs = snapJobs
		}
		if b.prefsRev == prefsRev {
			b.prefs = snapPrefs
		}
		b.phase = PhaseRolledBack
		return err
	}
	saved.Normalize()
	b.prefs = saved
	if refreshed {
		b.jobs = slices.DeleteFunc(b.jobs, func(j model.ListedJob) bool { return saved.HidesJob(j.ID) })
	}
	b.jobs = rescore(b.jobs, saved)
	b.phase = PhaseCommitted
	return nil
}

func rescore(jobs []model.ListedJob, prefs model.UserPreferences) []model.ListedJob {
	for i := range jobs {
		jobs[i].PreferenceScore = ranking.Score(jobs[i].JobOffer, prefs)
		jobs[i].IsFavorite = prefs.Favors(jobs[i].ID)
	}
	return jobs
}
