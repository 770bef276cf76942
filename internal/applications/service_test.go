package applications

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"jobhill/internal/apperr"
	"jobhill/internal/auth"
	"jobhill/internal/filter"
	"jobhill/internal/model"
	"jobhill/internal/storage"

	"gorm.io/datatypes"
)

var (
	alice = auth.Authenticated("alice", "")
	bob   = auth.Authenticated("bob", "")
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	acme, err := store.UpsertCompanyByName(ctx, "Acme", "https://logo.example/acme.png")
	if err != nil {
		t.Fatalf("UpsertCompanyByName error: %v", err)
	}
	if _, err := store.UpsertJobs(ctx, []model.JobOffer{{
		ID:        "job-1",
		CompanyID: acme.ID,
		JobTitle:  "SWE Intern",
		Location:  datatypes.JSONSlice[string]{"NYC", "Remote"},
		Status:    model.StatusOpen,
		URL:       "https://jobs.example/1",
	}}); err != nil {
		t.Fatalf("UpsertJobs error: %v", err)
	}

	svc := NewService(store, log.New(io.Discard, "", 0))
	svc.now = func() time.Time { return time.Date(2024, 9, 15, 10, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestCreateEnrichesFromJobOffer(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	app, err := svc.Create(context.Background(), alice, CreateInput{JobOfferID: "job-1"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if app.CompanyName != "Acme" || app.Role != "SWE Intern" || app.Location != "NYC, Remote" {
		t.Fatalf("expected enrichment from job offer, got %+v", app)
	}
	if app.ApplicationLink != "https://jobs.example/1" || app.CompanyLogo == "" || app.CompanyID == 0 {
		t.Fatalf("expected link, logo and company id, got %+v", app)
	}
	if app.Status != model.ApplicationApplied || app.ReferralType != model.ReferralCold {
		t.Fatalf("expected defaults, got %s / %s", app.Status, app.ReferralType)
	}
	if app.AppliedDate != "2024-09-15" || app.ID == "" {
		t.Fatalf("expected today's date and generated id, got %q %q", app.AppliedDate, app.ID)
	}
}

func TestCreateDuplicateConflicts(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	ctx := context.Background()
	first, err := svc.Create(ctx, alice, CreateInput{JobOfferID: "job-1", Status: model.ApplicationInterviewing})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err = svc.Create(ctx, alice, CreateInput{JobOfferID: "job-1", Status: model.ApplicationOffer})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	stored, err := store.GetApplication(ctx, "alice", first.ID)
	if err != nil {
		t.Fatalf("GetApplication error: %v", err)
	}
	if stored.Status != model.ApplicationInterviewing {
		t.Fatalf("original record was modified: %s", stored.Status)
	}

	if _, err := svc.Create(ctx, bob, CreateInput{JobOfferID: "job-1"}); err != nil {
		t.Fatalf("another user should be able to apply: %v", err)
	}
}

// slowLookupStore 放慢查重，模拟远程数据库往返。
type slowLookupStore struct {
	*storage.Store
}

func (s slowLookupStore) FindApplicationByJob(ctx context.Context, userID, jobOfferID string) (*model.Application, error) {
	time.Sleep(20 * time.Millisecond)
	return s.Store.FindApplicationByJob(ctx, userID, jobOfferID)
}

func TestCreateConcurrentDuplicateConflicts(t *testing.T) {
	t.Parallel()

	base, store := newTestService(t)
	svc := NewService(slowLookupStore{store}, log.New(io.Discard, "", 0))
	svc.now = base.now

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), alice, CreateInput{JobOfferID: "job-1"})
		}(i)
	}
	wg.Wait()

	conflicts := 0
	for _, err := range errs {
		switch {
		case err == nil:
		case apperr.Is(err, apperr.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected Create error: %v", err)
		}
	}
	if conflicts != 1 {
		t.Fatalf("expected exactly one conflict, got %d", conflicts)
	}
	apps, err := store.ListApplications(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListApplications error: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected 1 application for (alice, job-1), got %d", len(apps))
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	cases := []struct {
		name string
		in   CreateInput
		kind apperr.Kind
	}{
		{"missing company", CreateInput{Role: "PM"}, apperr.KindValidation},
		{"missing role", CreateInput{CompanyName: "Initech"}, apperr.KindValidation},
		{"bad referral", CreateInput{CompanyName: "Initech", Role: "PM", ReferralType: "Cousin"}, apperr.KindValidation},
		{"bad status", CreateInput{CompanyName: "Initech", Role: "PM", Status: "Hired"}, apperr.KindValidation},
		{"bad date", CreateInput{CompanyName: "Initech", Role: "PM", AppliedDate: "15/09/2024"}, apperr.KindValidation},
		{"unknown job", CreateInput{JobOfferID: "nope"}, apperr.KindNotFound},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, alice, tc.in); !apperr.Is(err, tc.kind) {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.kind, err)
		}
	}
	if _, err := svc.Create(ctx, auth.Anonymous(), CreateInput{CompanyName: "Initech", Role: "PM"}); !apperr.Is(err, apperr.KindAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}

	manual, err := svc.Create(ctx, alice, CreateInput{CompanyName: "Initech", Role: "PM Intern", ReferralType: model.ReferralReferred})
	if err != nil {
		t.Fatalf("manual Create error: %v", err)
	}
	if manual.JobOfferID != "" {
		t.Fatalf("manual entries carry no job offer id")
	}
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	app, err := svc.Create(ctx, alice, CreateInput{CompanyName: "Initech", Role: "PM Intern", AppliedDate: "2024-09-01"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	status := model.ApplicationPhoneScreen
	if _, err := svc.Update(ctx, bob, app.ID, UpdateInput{Status: &status}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for non-owner, got %v", err)
	}
	updated, err := svc.Update(ctx, alice, app.ID, UpdateInput{Status: &status})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Status != model.ApplicationPhoneScreen || updated.LastUpdated != "2024-09-15" {
		t.Fatalf("unexpected updated record %+v", updated)
	}

	bad := model.ApplicationStatus("Hired")
	if _, err := svc.Update(ctx, alice, app.ID, UpdateInput{Status: &bad}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Update(ctx, alice, app.ID, UpdateInput{}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty patch, got %v", err)
	}

	if err := svc.Delete(ctx, bob, app.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for non-owner delete, got %v", err)
	}
	if err := svc.Delete(ctx, alice, app.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := svc.Delete(ctx, alice, app.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, in := range []CreateInput{
		{CompanyName: "Initech", Role: "PM", AppliedDate: "2024-08-01"},
		{CompanyName: "Globex", Role: "SWE", AppliedDate: "2024-08-05", Status: model.ApplicationRejected},
		{CompanyName: "Initech", Role: "Data", AppliedDate: "2024-08-03"},
	} {
		if _, err := svc.Create(ctx, alice, in); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	apps, err := svc.List(ctx, alice, filter.ApplicationCriteria{Companies: []string{"Initech"}})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(apps) != 2 || apps[0].Role != "Data" || apps[1].Role != "PM" {
		t.Fatalf("unexpected filtered list %+v", apps)
	}

	others, err := svc.List(ctx, bob, filter.ApplicationCriteria{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(others) != 0 {
		t.Fatalf("expected no applications for bob, got %d", len(others))
	}
}
