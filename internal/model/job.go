package model

import (
	"time"

	"gorm.io/datatypes"
)

// 职位状态，只有 Open 的职位对外可见。
const (
	StatusOpen   = "Open"
	StatusClosed = "Closed"
)

// 职位级别标签，与前端的 newGrad 单选筛选项一致。
const (
	LevelNewGrad        = "New Grad"
	LevelEmergingTalent = "Emerging Talent"
)

// Company 表示一个公司，职位列表读取时联表带出名称与 logo。
type Company struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex" json:"name"`
	Logo      string    `json:"logo"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobOffer 表示一条职位。
// - Location/Categories: JSON 数组列
// - NoSponsor/USACitizen/EmergingTalent/NewGrad: 0/1 标记位
// - Company: 仅用于 InnerJoins 联表，不参与 JSON 输出
type JobOffer struct {
	ID             string                      `gorm:"primaryKey" json:"id"`
	CompanyID      int64                       `gorm:"index" json:"company_id"`
	Company        *Company                    `gorm:"foreignKey:CompanyID" json:"-"`
	JobTitle       string                      `json:"job_title"`
	Location       datatypes.JSONSlice[string] `json:"location"`
	Modality       string                      `json:"modality"`
	Period         string                      `json:"period"`
	Categories     datatypes.JSONSlice[string] `json:"categories"`
	Status         string                      `gorm:"index" json:"status"`
	URL            string                      `json:"url"`
	NoSponsor      int                         `gorm:"column:no_sponsor" json:"noSponsor"`
	USACitizen     int                         `gorm:"column:usa_citizen" json:"usaCitizen"`
	EmergingTalent int                         `gorm:"column:emerging_talent" json:"emergingTalent"`
	NewGrad        int                         `gorm:"column:new_grad" json:"newGrad"`
	CreatedAt      time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// IsOpen 判断职位是否处于可展示状态。
func (j JobOffer) IsOpen() bool {
	return j.Status == StatusOpen
}

// IsInternship 没有 newGrad/emergingTalent 标记的职位视为实习。
func (j JobOffer) IsInternship() bool {
	return j.NewGrad == 0 && j.EmergingTalent == 0
}

// Levels 返回职位的级别标签。
func (j JobOffer) Levels() []string {
	var levels []string
	if j.NewGrad == 1 {
		levels = append(levels, LevelNewGrad)
	}
	if j.EmergingTalent == 1 {
		levels = append(levels, LevelEmergingTalent)
	}
	return levels
}

// ListedJob 是面向某个浏览者计算后的职位，附带公司信息与派生字段。
type ListedJob struct {
	JobOffer
	CompanyName     string `json:"company"`
	CompanyLogo     string `json:"company_logo"`
	IsApplied       bool   `json:"is_applied"`
	IsFavorite      bool   `json:"is_favorite"`
	IsHidden        bool   `json:"is_hidden"`
	PreferenceScore int    `json:"preference_score"`
}

// NewListedJob 用联表结果构造 ListedJob，派生字段保持零值。
func NewListedJob(job JobOffer) ListedJob {
	listed := ListedJob{JobOffer: job}
	if job.Company != nil {
		listed.CompanyName = job.Company.Name
		listed.CompanyLogo = job.Company.Logo
	}
	listed.Company = nil
	if listed.Location == nil {
		listed.Location = datatypes.JSONSlice[string]{}
	}
	if listed.Categories == nil {
		listed.Categories = datatypes.JSONSlice[string]{}
	}
	return listed
}
