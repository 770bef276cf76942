// Package ranking 提供职位偏好打分、策略过滤与排序比较器，服务端列表与客户端筛选共用。
package ranking

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"jobhill/internal/model"
)

const (
	// PreferredCompanyBoost 职位所属公司在偏好公司列表中时的加分。
	PreferredCompanyBoost = 15
	// PreferredCategoryBoost 每个命中偏好分类的加分，可累加。
	PreferredCategoryBoost = 10
)

// Order 日期排序方向，用于同分职位的次序。
type Order string

const (
	OrderNewest Order = "newest"
	OrderOldest Order = "oldest"
)

// ParseOrder 解析排序参数，空串视为 newest。
func ParseOrder(s string) (Order, bool) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderNewest:
		return OrderNewest, true
	case OrderOldest:
		return OrderOldest, true
	default:
		return "", false
	}
}

// Score 计算职位对某个用户的偏好分，基础分为 0。
func Score(job model.JobOffer, prefs model.UserPreferences) int {
	score := 0
	if prefs.PrefersCompany(job.CompanyID) {
		score += PreferredCompanyBoost
	}
	seen := make([]string, 0, len(job.Categories))
	for _, category := range job.Categories {
		if slices.Contains(seen, category) {
			continue
		}
		seen = append(seen, category)
		if slices.Contains(prefs.PreferredCategories, category) {
			score += PreferredCategoryBoost
		}
	}
	return score
}

// Policy 是由偏好中的布尔开关推出的职位可见性规则。
type Policy struct {
	HideNoSponsor   bool
	HideCitizenOnly bool
	HideNewGrad     bool
	HideEmerging    bool
	HideInternships bool
}

// PolicyFrom 根据偏好生成可见性规则。
// requires_sponsorship 为 false 时隐藏不提供担保的职位，american_citizen 为 false 时隐藏仅限公民的职位。
func PolicyFrom(prefs model.UserPreferences) Policy {
	return Policy{
		HideNoSponsor:   !prefs.RequiresSponsorship,
		HideCitizenOnly: !prefs.AmericanCitizen,
		HideNewGrad:     prefs.HideNG,
		HideEmerging:    prefs.HideET,
		HideInternships: prefs.HideInternships,
	}
}

// Allows 判断职位是否通过规则。实习的判定是 newGrad 与 emergingTalent 均未标记。
func (p Policy) Allows(job model.JobOffer) bool {
	switch {
	case p.HideNoSponsor && job.NoSponsor == 1:
		return false
	case p.HideCitizenOnly && job.USACitizen == 1:
		return false
	case p.HideNewGrad && job.NewGrad == 1:
		return false
	case p.HideEmerging && job.EmergingTalent == 1:
		return false
	case p.HideInternships && job.IsInternship():
		return false
	}
	return true
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	model.DateLayout,
}

// ParseDate 解析日期文本，无法解析时返回零值，排序时视为最早。
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// CompareDates 按排序方向比较两个时间，newest 时较晚者在前。
func CompareDates(a, b time.Time, order Order) int {
	if order == OrderOldest {
		return a.Compare(b)
	}
	return b.Compare(a)
}

// Compare 先按分数降序，再按日期方向比较。
func Compare(scoreA int, dateA time.Time, scoreB int, dateB time.Time, order Order) int {
	if c := cmp.Compare(scoreB, scoreA); c != 0 {
		return c
	}
	return CompareDates(dateA, dateB, order)
}

// SortJobs 原地稳定排序，完全相同的职位保持输入顺序。
func SortJobs(jobs []model.ListedJob, order Order) {
	slices.SortStableFunc(jobs, func(a, b model.ListedJob) int {
		return Compare(a.PreferenceScore, a.CreatedAt, b.PreferenceScore, b.CreatedAt, order)
	})
}
