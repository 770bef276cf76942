package model

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// MaxPreferredCategories 偏好分类上限。
const MaxPreferredCategories = 4

// UserPreferences 表示一个用户的偏好设置，每个用户一条。
type UserPreferences struct {
	UserID              string                      `gorm:"primaryKey" json:"user_id"`
	HiddenJobs          datatypes.JSONSlice[string] `json:"hidden_jobs"`
	HiddenCompanies     datatypes.JSONSlice[int64]  `json:"hidden_companies"`
	PreferredCompanies  datatypes.JSONSlice[int64]  `json:"preferred_companies"`
	PreferredCategories datatypes.JSONSlice[string] `json:"preferred_categories"`
	FavoriteJobs        datatypes.JSONSlice[string] `json:"favorite_jobs"`
	RequiresSponsorship bool                        `json:"requires_sponsorship"`
	AmericanCitizen     bool                        `json:"american_citizen"`
	HideNG              bool                        `gorm:"column:hide_ng" json:"hideNG"`
	HideET              bool                        `gorm:"column:hide_et" json:"hideET"`
	HideInternships     bool                        `json:"hideInternships"`
	DontShowConfHide    bool                        `json:"dont_show_conf_hide"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}

// DefaultPreferences 返回尚未保存过偏好的用户的默认值：集合为空、开关全部关闭。
func DefaultPreferences(userID string) UserPreferences {
	p := UserPreferences{UserID: userID}
	p.Normalize()
	return p
}

// Normalize 把 nil 集合替换为空集合，保证 JSON 输出为 []。
func (p *UserPreferences) Normalize() {
	if p.HiddenJobs == nil {
		p.HiddenJobs = datatypes.JSONSlice[string]{}
	}
	if p.HiddenCompanies == nil {
		p.HiddenCompanies = datatypes.JSONSlice[int64]{}
	}
	if p.PreferredCompanies == nil {
		p.PreferredCompanies = datatypes.JSONSlice[int64]{}
	}
	if p.PreferredCategories == nil {
		p.PreferredCategories = datatypes.JSONSlice[string]{}
	}
	if p.FavoriteJobs == nil {
		p.FavoriteJobs = datatypes.JSONSlice[string]{}
	}
}

// Clone 深拷贝，集合字段不与原值共享底层数组。
func (p UserPreferences) Clone() UserPreferences {
	out := p
	out.HiddenJobs = slices.Clone(p.HiddenJobs)
	out.HiddenCompanies = slices.Clone(p.HiddenCompanies)
	out.PreferredCompanies = slices.Clone(p.PreferredCompanies)
	out.PreferredCategories = slices.Clone(p.PreferredCategories)
	out.FavoriteJobs = slices.Clone(p.FavoriteJobs)
	out.Normalize()
	return out
}

func (p UserPreferences) HidesJob(id string) bool {
	return slices.Contains(p.HiddenJobs, id)
}

func (p UserPreferences) HidesCompany(id int64) bool {
	return slices.Contains(p.HiddenCompanies, id)
}

func (p UserPreferences) Favors(jobID string) bool {
	return slices.Contains(p.FavoriteJobs, jobID)
}

func (p UserPreferences) PrefersCompany(id int64) bool {
	return slices.Contains(p.PreferredCompanies, id)
}
