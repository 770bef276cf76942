// Package filter 是纯函数的筛选引擎：对内存中的职位或投递列表按条件过滤并排序，不修改输入。
package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"jobhill/internal/model"
	"jobhill/internal/ranking"
)

// JobCriteria 职位筛选条件，零值表示不过滤。
// 多值字段在字段内部按 OR 组合，不同字段之间按 AND 组合。
type JobCriteria struct {
	Companies       []string
	Role            string
	Categories      []string
	Modality        string
	Location        string
	Level           string
	Order           ranking.Order
	FavoritesOnly   bool
	HiddenOnly      bool
	SelectedCompany string
}

// Validate 校验排序方向与级别取值。
func (c JobCriteria) Validate() error {
	if c.Order != "" && c.Order != ranking.OrderNewest && c.Order != ranking.OrderOldest {
		return fmt.Errorf("invalid order %q", c.Order)
	}
	if c.Level != "" && c.Level != model.LevelNewGrad && c.Level != model.LevelEmergingTalent {
		return fmt.Errorf("invalid level %q", c.Level)
	}
	return nil
}

// ParseJobCriteria 从查询参数构建筛选条件，多值参数可重复或以逗号分隔。
func ParseJobCriteria(values url.Values) (JobCriteria, error) {
	order, ok := ranking.ParseOrder(values.Get("order"))
	if !ok {
		return JobCriteria{}, fmt.Errorf("invalid order %q", values.Get("order"))
	}
	favorites, err := parseBool(values, "favorites")
	if err != nil {
		return JobCriteria{}, err
	}
	hidden, err := parseBool(values, "hidden")
	if err != nil {
		return JobCriteria{}, err
	}

	c := JobCriteria{
		Companies:       multi(values, "company"),
		Role:            strings.TrimSpace(values.Get("role")),
		Categories:      multi(values, "category"),
		Modality:        strings.TrimSpace(values.Get("modality")),
		Location:        strings.TrimSpace(values.Get("location")),
		Level:           strings.TrimSpace(values.Get("level")),
		Order:           order,
		FavoritesOnly:   favorites,
		HiddenOnly:      hidden,
		SelectedCompany: strings.TrimSpace(values.Get("selectedCompany")),
	}
	if err := c.Validate(); err != nil {
		return JobCriteria{}, err
	}
	return c, nil
}

// ApplicationCriteria 投递记录筛选条件，全部为精确匹配。
type ApplicationCriteria struct {
	Companies     []string
	Statuses      []model.ApplicationStatus
	ReferralTypes []model.ReferralType
	Locations     []string
	Order         ranking.Order
}

// Validate 校验排序方向与枚举取值。
func (c ApplicationCriteria) Validate() error {
	if c.Order != "" && c.Order != ranking.OrderNewest && c.Order != ranking.OrderOldest {
		return fmt.Errorf("invalid order %q", c.Order)
	}
	for _, s := range c.Statuses {
		if !s.Valid() {
			return fmt.Errorf("invalid status %q", s)
		}
	}
	for _, r := range c.ReferralTypes {
		if !r.Valid() {
			return fmt.Errorf("invalid referral_type %q", r)
		}
	}
	return nil
}

// ParseApplicationCriteria 从查询参数构建投递筛选条件。
func ParseApplicationCriteria(values url.Values) (ApplicationCriteria, error) {
	order, ok := ranking.ParseOrder(values.Get("order"))
	if !ok {
		return ApplicationCriteria{}, fmt.Errorf("invalid order %q", values.Get("order"))
	}
	c := ApplicationCriteria{
		Companies: multi(values, "company"),
		Locations: multi(values, "location"),
		Order:     order,
	}
	for _, s := range multi(values, "status") {
		c.Statuses = append(c.Statuses, model.ApplicationStatus(s))
	}
	for _, r := range multi(values, "referral_type") {
		c.ReferralTypes = append(c.ReferralTypes, model.ReferralType(r))
	}
	if err := c.Validate(); err != nil {
		return ApplicationCriteria{}, err
	}
	return c, nil
}

func multi(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseBool(values url.Values, key string) (bool, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, raw)
	}
	return b, nil
}
