// Package applications 管理用户的投递记录：创建时去重并从站内职位补全信息，更新与删除校验归属。
package applications

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"jobhill/internal/apperr"
	"jobhill/internal/auth"
	"jobhill/internal/filter"
	"jobhill/internal/keylock"
	"jobhill/internal/model"
	"jobhill/internal/storage"

	"github.com/google/uuid"
)

// Store 投递服务依赖的存储能力。
type Store interface {
	ListApplications(ctx context.Context, userID string) ([]model.Application, error)
	FindApplicationByJob(ctx context.Context, userID, jobOfferID string) (*model.Application, error)
	CreateApplication(ctx context.Context, app *model.Application) error
	GetApplication(ctx context.Context, userID, id string) (*model.Application, error)
	UpdateApplication(ctx context.Context, userID, id string, fields map[string]any) error
	DeleteApplication(ctx context.Context, userID, id string) error
	GetJob(ctx context.Context, id string) (*model.JobOffer, error)
}

// CreateInput 新建投递的请求体。关联 job_offer_id 时空字段从职位补全。
type CreateInput struct {
	JobOfferID      string                  `json:"job_offer_id"`
	CompanyID       int64                   `json:"company_id"`
	CompanyName     string                  `json:"company_name"`
	Role            string                  `json:"role"`
	Location        string                  `json:"location"`
	AppliedDate     string                  `json:"applied_date"`
	ReferralType    model.ReferralType      `json:"referral_type"`
	Status          model.ApplicationStatus `json:"status"`
	ApplicationLink string                  `json:"application_link"`
	CompanyLogo     string                  `json:"company_logo"`
}

// UpdateInput 部分更新，nil 表示不修改。
type UpdateInput struct {
	CompanyName     *string                  `json:"company_name"`
	Role            *string                  `json:"role"`
	Location        *string                  `json:"location"`
	AppliedDate     *string                  `json:"applied_date"`
	ReferralType    *model.ReferralType      `json:"referral_type"`
	Status          *model.ApplicationStatus `json:"status"`
	ApplicationLink *string                  `json:"application_link"`
}

// Service 投递服务。
type Service struct {
	store  Store
	locks  *keylock.Locks
	now    func() time.Time
	newID  func() string
	logger *log.Logger
}

// NewService 创建投递服务。
func NewService(store Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stdout, "[applications] ", log.LstdFlags)
	}
	return &Service{
		store:  store,
		locks:  keylock.New(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		logger: logger,
	}
}

// List 返回用户的投递记录并按条件筛选。
func (s *Service) List(ctx context.Context, viewer auth.Viewer, c filter.ApplicationCriteria) ([]model.Application, error) {
	if viewer.IsAnonymous() {
		return nil, apperr.AuthRequired()
	}
	apps, err := s.store.ListApplications(ctx, viewer.UserID)
	if err != nil {
		return nil, apperr.Unavailable("list applications", err)
	}
	return filter.Applications(apps, c), nil
}

// Create 新建投递记录。同一用户对同一职位只能有一条，查重与写入在同一把锁内完成。
func (s *Service) Create(ctx context.Context, viewer auth.Viewer, in CreateInput) (*model.Application, error) {
	if viewer.IsAnonymous() {
		return nil, apperr.AuthRequired()
	}
	in.JobOfferID = strings.TrimSpace(in.JobOfferID)

	if in.JobOfferID != "" {
		unlock := s.locks.Lock(viewer.UserID + "|" + in.JobOfferID)
		defer unlock()
		switch _, err := s.store.FindApplicationByJob(ctx, viewer.UserID, in.JobOfferID); {
		case err == nil:
			return nil, apperr.Conflict("already applied to this job")
		case !errors.Is(err, storage.ErrNotFound):
			return nil, apperr.Unavailable("check existing application", err)
		}
		if err := s.enrich(ctx, &in); err != nil {
			return nil, err
		}
	}

	today := s.now().UTC().Format(model.DateLayout)
	app := &model.Application{
		ID:              s.newID(),
		UserID:          viewer.UserID,
		JobOfferID:      in.JobOfferID,
		CompanyID:       in.CompanyID,
		CompanyName:     strings.TrimSpace(in.CompanyName),
		Role:            strings.TrimSpace(in.Role),
		Location:        strings.TrimSpace(in.Location),
		AppliedDate:     strings.TrimSpace(in.AppliedDate),
		LastUpdated:     today,
		ReferralType:    in.ReferralType,
		Status:          in.Status,
		ApplicationLink: strings.TrimSpace(in.ApplicationLink),
		CompanyLogo:     strings.TrimSpace(in.CompanyLogo),
	}
	if app.AppliedDate == "" {
		app.AppliedDate = today
	}
	if app.ReferralType == "" {
		app.ReferralType = model.ReferralCold
	}
	if app.Status == "" {
		app.Status = model.ApplicationApplied
	}
	if err := validate(app); err != nil {
		return nil, err
	}

	if err := s.store.CreateApplication(ctx, app); err != nil {
		s.logger.Printf("create application user=%s job=%s: %v", viewer.UserID, app.JobOfferID, err)
		return nil, apperr.Unavailable("create application", err)
	}
	return app, nil
}

// Update 部分更新投递记录，记录不存在或不属于该用户时返回 NotFound。
func (s *Service) Update(ctx context.Context, viewer auth.Viewer, id string, in UpdateInput) (*model.Application, error) {
	if viewer.IsAnonymous() {
		return nil, apperr.AuthRequired()
	}
	current, err := s.get(ctx, viewer.UserID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	next := *current
	if in.CompanyName != nil {
		next.CompanyName = strings.TrimSpace(*in.CompanyName)
		fields["company_name"] = next.CompanyName
	}
	if in.Role != nil {
		next.Role = strings.TrimSpace(*in.Role)
		fields["role"] = next.Role
	}
	if in.Location != nil {
		next.Location = strings.TrimSpace(*in.Location)
		fields["location"] = next.Location
	}
	if in.AppliedDate != nil {
		next.AppliedDate = strings.TrimSpace(*in.AppliedDate)
		fields["applied_date"] = next.AppliedDate
	}
	if in.ReferralType != nil {
		next.ReferralType = *in.ReferralType
		fields["referral_type"] = next.ReferralType
	}
	if in.Status != nil {
		next.Status = *in.Status
		fields["status"] = next.Status
	}
	if in.ApplicationLink != nil {
		next.ApplicationLink = strings.TrimSpace(*in.ApplicationLink)
		fields["application_link"] = next.ApplicationLink
	}
	if len(fields) == 0 {
		return nil, apperr.Validation("no fields to update")
	}
	if err := validate(&next); err != nil {
		return nil, err
	}
	next.LastUpdated = s.now().UTC().Format(model.DateLayout)
	fields["last_updated"] = next.LastUpdated

	if err := s.store.UpdateApplication(ctx, viewer.UserID, id, fields); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("application not found")
		}
		return nil, apperr.Unavailable("update application", err)
	}
	return s.get(ctx, viewer.UserID, id)
}

// Delete 删除投递记录。
func (s *Service) Delete(ctx context.Context, viewer auth.Viewer, id string) error {
	if viewer.IsAnonymous() {
		return apperr.AuthRequired()
	}
	if err := s.store.DeleteApplication(ctx, viewer.UserID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("application not found")
		}
		return apperr.Unavailable("delete application", err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, userID, id string) (*model.Application, error) {
	app, err := s.store.GetApplication(ctx, userID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("application not found")
	}
	if err != nil {
		return nil, apperr.Unavailable("get application", err)
	}
	return app, nil
}

// enrich 用关联职位补全未填写的字段。
func (s *Service) enrich(ctx context.Context, in *CreateInput) error {
	job, err := s.store.GetJob(ctx, in.JobOfferID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("job offer not found")
	}
	if err != nil {
		return apperr.Unavailable("load job offer", err)
	}
	if in.CompanyID == 0 {
		in.CompanyID = job.CompanyID
	}
	if job.Company != nil {
		if strings.TrimSpace(in.CompanyName) == "" {
			in.CompanyName = job.Company.Name
		}
		if strings.TrimSpace(in.CompanyLogo) == "" {
			in.CompanyLogo = job.Company.Logo
		}
	}
	if strings.TrimSpace(in.Role) == "" {
		in.Role = job.JobTitle
	}
	if strings.TrimSpace(in.Location) == "" {
		in.Location = strings.Join(job.Location, ", ")
	}
	if strings.TrimSpace(in.ApplicationLink) == "" {
		in.ApplicationLink = job.URL
	}
	return nil
}

func validate(app *model.Application) error {
	switch {
	case app.CompanyName == "":
		return apperr.Validation("company_name is required")
	case app.Role == "":
		return apperr.Validation("role is required")
	case !app.ReferralType.Valid():
		return apperr.Validation("invalid referral_type")
	case !app.Status.Valid():
		return apperr.Validation("invalid status")
	}
	if _, err := time.Parse(model.DateLayout, app.AppliedDate); err != nil {
		return apperr.Validation("applied_date must be YYYY-MM-DD")
	}
	return nil
}
