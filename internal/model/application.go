package model

import (
	"slices"
	"time"
)

// ReferralType 投递渠道。
type ReferralType string

const (
	ReferralCold     ReferralType = "Cold Apply"
	ReferralEmployee ReferralType = "Employee Ref"
	ReferralReferred ReferralType = "Referred"
)

// ApplicationStatus 投递进度。
type ApplicationStatus string

const (
	ApplicationApplied      ApplicationStatus = "Applied"
	ApplicationAssessment   ApplicationStatus = "Online Assessment"
	ApplicationPhoneScreen  ApplicationStatus = "Phone Screen"
	ApplicationInterviewing ApplicationStatus = "Interviewing"
	ApplicationOffer        ApplicationStatus = "Offer"
	ApplicationRejected     ApplicationStatus = "Rejected"
	ApplicationGhosted      ApplicationStatus = "Ghosted"
	ApplicationWithdrawn    ApplicationStatus = "Withdrawn"
)

// ApplicationStatuses 固定的状态词表，顺序即看板列顺序。
var ApplicationStatuses = []ApplicationStatus{
	ApplicationApplied,
	ApplicationAssessment,
	ApplicationPhoneScreen,
	ApplicationInterviewing,
	ApplicationOffer,
	ApplicationRejected,
	ApplicationGhosted,
	ApplicationWithdrawn,
}

// ReferralTypes 可选的投递渠道。
var ReferralTypes = []ReferralType{ReferralCold, ReferralEmployee, ReferralReferred}

func (s ApplicationStatus) Valid() bool {
	return slices.Contains(ApplicationStatuses, s)
}

func (r ReferralType) Valid() bool {
	return slices.Contains(ReferralTypes, r)
}

// Application 表示用户的一条投递记录。
// JobOfferID 为空表示用户手动录入、未关联站内职位。
// AppliedDate/LastUpdated 为 YYYY-MM-DD 文本，排序时容忍格式异常。
type Application struct {
	ID              string            `gorm:"primaryKey" json:"id"`
	UserID          string            `gorm:"index" json:"user_id"`
	JobOfferID      string            `gorm:"index" json:"job_offer_id"`
	CompanyID       int64             `json:"company_id"`
	CompanyName     string            `json:"company_name"`
	Role            string            `json:"role"`
	Location        string            `json:"location"`
	AppliedDate     string            `json:"applied_date"`
	LastUpdated     string            `json:"last_updated"`
	ReferralType    ReferralType      `json:"referral_type"`
	Status          ApplicationStatus `json:"status"`
	ApplicationLink string            `json:"application_link,omitempty"`
	CompanyLogo     string            `json:"company_logo,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// DateLayout 投递日期的文本格式。
const DateLayout = "2006-01-02"
