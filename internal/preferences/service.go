// Package preferences 负责用户偏好的读取与增量修改。
// 同一进程内对同一用户的读改写串行执行，跨进程的并发写以后写为准。
package preferences

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"

	"jobhill/internal/apperr"
	"jobhill/internal/auth"
	"jobhill/internal/keylock"
	"jobhill/internal/model"
	"jobhill/internal/storage"
)

// Store 偏好服务依赖的存储能力。
type Store interface {
	GetPreferences(ctx context.Context, userID string) (model.UserPreferences, error)
	SavePreferences(ctx context.Context, prefs *model.UserPreferences) error
}

// Patch 整字段更新，nil 表示不修改。
type Patch struct {
	HiddenJobs          *[]string `json:"hidden_jobs,omitempty"`
	HiddenCompanies     *[]int64  `json:"hidden_companies,omitempty"`
	PreferredCompanies  *[]int64  `json:"preferred_companies,omitempty"`
	PreferredCategories *[]string `json:"preferred_categories,omitempty"`
	FavoriteJobs        *[]string `json:"favorite_jobs,omitempty"`
	RequiresSponsorship *bool     `json:"requires_sponsorship,omitempty"`
	AmericanCitizen     *bool     `json:"american_citizen,omitempty"`
	HideNG              *bool     `json:"hideNG,omitempty"`
	HideET              *bool     `json:"hideET,omitempty"`
	HideInternships     *bool     `json:"hideInternships,omitempty"`
	DontShowConfHide    *bool     `json:"dont_show_conf_hide,omitempty"`
}

// Onboarding 引导流程提交的内容。
type Onboarding struct {
	RequiresSponsorship bool     `json:"requires_sponsorship"`
	AmericanCitizen     bool     `json:"american_citizen"`
	HideNG              bool     `json:"hideNG"`
	HideET              bool     `json:"hideET"`
	HideInternships     bool     `json:"hideInternships"`
	PreferredCategories []string `json:"preferred_categories"`
	PreferredCompanies  []int64  `json:"preferred_companies"`
}

// Service 偏好服务。
type Service struct {
	store  Store
	locks  *keylock.Locks
	logger *log.Logger
}

// NewService 创建偏好服务，logger 为空时输出到标准输出。
func NewService(store Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stdout, "[preferences] ", log.LstdFlags)
	}
	return &Service{store: store, locks: keylock.New(), logger: logger}
}

// Get 返回用户偏好，尚未保存时返回默认值。
func (s *Service) Get(ctx context.Context, viewer auth.Viewer) (model.UserPreferences, error) {
	if viewer.IsAnonymous() {
		return model.UserPreferences{}, apperr.AuthRequired()
	}
	return s.load(ctx, viewer.UserID)
}

// Patch 按字段覆盖偏好。
func (s *Service) Patch(ctx context.Context, viewer auth.Viewer, p Patch) (model.UserPreferences, error) {
	if p.PreferredCategories != nil {
		cleaned := uniqueStrings(*p.PreferredCategories)
		if len(cleaned) > model.MaxPreferredCategories {
			return model.UserPreferences{}, apperr.Validation(fmt.Sprintf("preferred_categories allows at most %d entries", model.MaxPreferredCategories))
		}
		p.PreferredCategories = &cleaned
	}
	return s.mutate(ctx, viewer, func(prefs *model.UserPreferences) {
		if p.HiddenJobs != nil {
			prefs.HiddenJobs = uniqueStrings(*p.HiddenJobs)
		}
		if p.HiddenCompanies != nil {
			prefs.HiddenCompanies = uniqueInts(*p.HiddenCompanies)
		}
		if p.PreferredCompanies != nil {
			prefs.PreferredCompanies = uniqueInts(*p.PreferredCompanies)
		}
		if p.PreferredCategories != nil {
			prefs.PreferredCategories = *p.PreferredCategories
		}
		if p.FavoriteJobs != nil {
			prefs.FavoriteJobs = uniqueStrings(*p.FavoriteJobs)
		}
		setBool(&prefs.RequiresSponsorship, p.RequiresSponsorship)
		setBool(&prefs.AmericanCitizen, p.AmericanCitizen)
		setBool(&prefs.HideNG, p.HideNG)
		setBool(&prefs.HideET, p.HideET)
		setBool(&prefs.HideInternships, p.HideInternships)
		setBool(&prefs.DontShowConfHide, p.DontShowConfHide)
	})
}

// HideJob 把职位加入或移出隐藏列表。
func (s *Service) HideJob(ctx context.Context, viewer auth.Viewer, jobID string, hidden bool) (model.UserPreferences, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return model.UserPreferences{}, apperr.Validation("jobId is required")
	}
	return s.mutate(ctx, viewer, func(prefs *model.UserPreferences) {
		prefs.HiddenJobs = setMember(prefs.HiddenJobs, jobID, hidden)
	})
}

// FavoriteJob 收藏或取消收藏职位，favorite 为 nil 时切换当前状态。
func (s *Service) FavoriteJob(ctx context.Context, viewer auth.Viewer, jobID string, favorite *bool) (model.UserPreferences, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return model.UserPreferences{}, apperr.Validation("jobId is required")
	}
	return s.mutate(ctx, viewer, func(prefs *model.UserPreferences) {
		want := !prefs.Favors(jobID)
		if favorite != nil {
			want = *favorite
		}
		prefs.FavoriteJobs = setMember(prefs.FavoriteJobs, jobID, want)
	})
}

// HideCompany 把公司加入或移出隐藏列表。
func (s *Service) HideCompany(ctx context.Context, viewer auth.Viewer, companyID int64, hidden bool) (model.UserPreferences, error) {
	if companyID <= 0 {
		return model.UserPreferences{}, apperr.Validation("companyId is required")
	}
	return s.mutate(ctx, viewer, func(prefs *model.UserPreferences) {
		prefs.HiddenCompanies = setMember(prefs.HiddenCompanies, companyID, hidden)
	})
}

// TogglePreferredCategory 切换偏好分类。已满 4 个时再添加不生效。
func (s *Service) TogglePreferredCategory(ctx context.Context, viewer auth.Viewer, category string) (model.UserPreferences, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return model.UserPreferences{}, apperr.Validation("category is required")
	}
	return s.mutate(ctx, viewer, func(prefs *model.UserPreferences) {
		if slices.Contains(prefs.PreferredCategories, category) {
			prefs.PreferredCategories = setMember(prefs.PreferredCategories, category, false)
			return
		}
		if len(prefs.PreferredCategories) >= model.MaxPreferredCategories {
			return
		}
		prefs.PreferredCategories = append(prefs.PreferredCategories, category)
	})
}

// TogglePreferredCompany 切换偏好公司。
func (s *Service) TogglePreferredCompany(ctx context.Context, viewer auth.Viewer, companyID int64) (model.UserPreferences, error) {
	if companyID <= 0 {
		return model.UserPreferences{}, apperr.Validation("companyId is required")
	}
	return s.mutate(ctx, viewer, func(prefs *model.UserPreferences) {
		prefs.PreferredCompanies = setMember(prefs.PreferredCompanies, companyID, !prefs.PrefersCompany(companyID))
	})
}

// CompleteOnboarding 保存引导流程的选择，并标记引导已完成。
func (s *Service) CompleteOnboarding(ctx context.Context, viewer auth.Viewer, o Onboarding) (model.UserPreferences, error) {
	categories := uniqueStrings(o.PreferredCategories)
	if len(categories) > model.MaxPreferredCategories {
		return model.UserPreferences{}, apperr.Validation(fmt.Sprintf("preferred_categories allows at most %d entries", model.MaxPreferredCategories))
	}
	return s.mutate(ctx, viewer, func(prefs *model.UserPreferences) {
		prefs.RequiresSponsorship = o.RequiresSponsorship
		prefs.AmericanCitizen = o.AmericanCitizen
		prefs.HideNG = o.HideNG
		prefs.HideET = o.HideET
		prefs.HideInternships = o.HideInternships
		prefs.PreferredCategories = categories
		if o.PreferredCompanies != nil {
			prefs.PreferredCompanies = uniqueInts(o.PreferredCompanies)
		}
		prefs.DontShowConfHide = true
	})
}

func (s *Service) mutate(ctx context.Context, viewer auth.Viewer, fn func(*model.UserPreferences)) (model.UserPreferences, error) {
	if viewer.IsAnonymous() {
		return model.UserPreferences{}, apperr.AuthRequired()
	}
	unlock := s.locks.Lock(viewer.UserID)
	defer unlock()

	prefs, err := s.load(ctx, viewer.UserID)
	if err != nil {
		return model.UserPreferences{}, err
	}
	fn(&prefs)
	prefs.Normalize()
	if err := s.store.SavePreferences(ctx, &prefs); err != nil {
		s.logger.Printf("save preferences user=%s: %v", viewer.UserID, err)
		return model.UserPreferences{}, apperr.Unavailable("save preferences", err)
	}
	return prefs, nil
}

func (s *Service) load(ctx context.Context, userID string) (model.UserPreferences, error) {
	prefs, err := s.store.GetPreferences(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.DefaultPreferences(userID), nil
	}
	if err != nil {
		return model.UserPreferences{}, apperr.Unavailable("load preferences", err)
	}
	prefs.Normalize()
	return prefs, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// setMember 保证 v 在集合中存在或不存在，返回新切片。
func setMember[S ~[]E, E comparable](set S, v E, present bool) S {
	has := slices.Contains(set, v)
	switch {
	case present && !has:
		return append(slices.Clone(set), v)
	case !present && has:
		return slices.DeleteFunc(slices.Clone(set), func(e E) bool { return e == v })
	default:
		return set
	}
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func uniqueInts(in []int64) []int64 {
	out := make([]int64, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
