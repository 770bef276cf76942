package filter

import (
	"cmp"
	"slices"
	"strings"

	"jobhill/internal/model"
	"jobhill/internal/ranking"
)

// Jobs 按条件过滤并排序职位，返回新切片。
// 顺序：先限定 SelectedCompany，再看收藏与隐藏开关，最后应用各字段条件。
// 排序按分数降序，同分按 Order 比较发布时间，仍相同则保持输入顺序。
func Jobs(items []model.ListedJob, c JobCriteria) []model.ListedJob {
	out := make([]model.ListedJob, 0, len(items))
	for _, item := range items {
		if c.SelectedCompany != "" && item.CompanyName != c.SelectedCompany {
			continue
		}
		if c.FavoritesOnly && !item.IsFavorite {
			continue
		}
		if item.IsHidden != c.HiddenOnly {
			continue
		}
		if !matchJob(item, c) {
			continue
		}
		out = append(out, item)
	}

	order := c.Order
	if order == "" {
		order = ranking.OrderNewest
	}
	ranking.SortJobs(out, order)
	return out
}

func matchJob(item model.ListedJob, c JobCriteria) bool {
	if len(c.Companies) > 0 && !anyContains(c.Companies, item.CompanyName) {
		return false
	}
	if c.Role != "" && !containsFold(item.JobTitle, c.Role) {
		return false
	}
	if len(c.Categories) > 0 && !anyEqualFold(c.Categories, item.Categories) {
		return false
	}
	if c.Modality != "" && !containsFold(item.Modality, c.Modality) {
		return false
	}
	if c.Location != "" && !slices.ContainsFunc(item.Location, func(loc string) bool { return containsFold(loc, c.Location) }) {
		return false
	}
	if c.Level != "" && !slices.Contains(item.Levels(), c.Level) {
		return false
	}
	return true
}

// Applications 按条件过滤投递记录，只按投递日期排序。
func Applications(items []model.Application, c ApplicationCriteria) []model.Application {
	out := make([]model.Application, 0, len(items))
	for _, item := range items {
		if len(c.Companies) > 0 && !slices.Contains(c.Companies, item.CompanyName) {
			continue
		}
		if len(c.Statuses) > 0 && !slices.Contains(c.Statuses, item.Status) {
			continue
		}
		if len(c.ReferralTypes) > 0 && !slices.Contains(c.ReferralTypes, item.ReferralType) {
			continue
		}
		if len(c.Locations) > 0 && !slices.Contains(c.Locations, item.Location) {
			continue
		}
		out = append(out, item)
	}

	order := c.Order
	if order == "" {
		order = ranking.OrderNewest
	}
	slices.SortStableFunc(out, func(a, b model.Application) int {
		return ranking.CompareDates(ranking.ParseDate(a.AppliedDate), ranking.ParseDate(b.AppliedDate), order)
	})
	return out
}

// CompanyGroup 按公司聚合的职位视图。
type CompanyGroup struct {
	Name      string   `json:"name"`
	CompanyID int64    `json:"company_id"`
	Logo      string   `json:"logo,omitempty"`
	Count     int      `json:"count"`
	JobIDs    []string `json:"job_ids"`
	Preferred bool     `json:"preferred"`
}

// Companies 按公司名聚合职位。偏好公司排在前面，其余按名称字母序。
func Companies(jobs []model.ListedJob, preferred []int64) []CompanyGroup {
	index := make(map[string]int)
	var groups []CompanyGroup
	for _, job := range jobs {
		i, ok := index[job.CompanyName]
		if !ok {
			i = len(groups)
			index[job.CompanyName] = i
			groups = append(groups, CompanyGroup{
				Name:      job.CompanyName,
				CompanyID: job.CompanyID,
				Logo:      job.CompanyLogo,
				JobIDs:    []string{},
			})
		}
		groups[i].Count++
		groups[i].JobIDs = append(groups[i].JobIDs, job.ID)
		if slices.Contains(preferred, job.CompanyID) {
			groups[i].Preferred = true
		}
	}

	slices.SortStableFunc(groups, func(a, b CompanyGroup) int {
		if a.Preferred != b.Preferred {
			if a.Preferred {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if groups == nil {
		groups = []CompanyGroup{}
	}
	return groups
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func anyContains(needles []string, s string) bool {
	for _, n := range needles {
		if containsFold(s, n) {
			return true
		}
	}
	return false
}

func anyEqualFold(wanted, tags []string) bool {
	for _, w := range wanted {
		for _, tag := range tags {
			if strings.EqualFold(w, tag) {
				return true
			}
		}
	}
	return false
}
