package storage

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jobhill/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedCompany(t *testing.T, store *Store, name string) model.Company {
	t.Helper()
	company, err := store.UpsertCompanyByName(context.Background(), name, "https://logo.example/"+name+".png")
	if err != nil {
		t.Fatalf("UpsertCompanyByName error: %v", err)
	}
	return company
}

func TestStoreUpsertAndListOpenJobs(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	acme := seedCompany(t, store, "Acme")
	globex := seedCompany(t, store, "Globex")

	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	jobs := []model.JobOffer{
		{ID: "1", CompanyID: acme.ID, JobTitle: "Backend Intern", Status: model.StatusOpen, CreatedAt: first,
			Location: datatypes.JSONSlice[string]{"NYC"}, Categories: datatypes.JSONSlice[string]{"SWE"}},
		{ID: "2", CompanyID: globex.ID, JobTitle: "Data Intern", Status: model.StatusOpen, CreatedAt: first.Add(2 * time.Hour)},
		{ID: "3", CompanyID: acme.ID, JobTitle: "Closed Intern", Status: model.StatusClosed, CreatedAt: first.Add(4 * time.Hour)},
	}

	res, err := store.UpsertJobs(ctx, jobs)
	if err != nil {
		t.Fatalf("UpsertJobs error: %v", err)
	}
	if res.Created != 3 || len(res.NewJobs) != 3 {
		t.Fatalf("expected 3 created jobs, got %d/%d", res.Created, len(res.NewJobs))
	}

	// Re-upsert with an updated title: rows update in place and are not counted as new.
	jobs[1].JobTitle = "Senior Data Intern"
	res, err = store.UpsertJobs(ctx, jobs)
	if err != nil {
		t.Fatalf("UpsertJobs second run error: %v", err)
	}
	if res.Created != 0 {
		t.Fatalf("expected 0 newly created jobs on second upsert, got %d", res.Created)
	}

	got, err := store.ListOpenJobs(ctx, JobQuery{})
	if err != nil {
		t.Fatalf("ListOpenJobs error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 open jobs, got %d", len(got))
	}
	if got[0].ID != "2" {
		t.Fatalf("expected newest job '2' first, got %s", got[0].ID)
	}
	if got[0].JobTitle != "Senior Data Intern" {
		t.Fatalf("expected updated title to persist, got %s", got[0].JobTitle)
	}
	if got[0].Company == nil || got[0].Company.Name != "Globex" {
		t.Fatalf("expected company to be joined, got %+v", got[0].Company)
	}
	if len(got[1].Location) != 1 || got[1].Location[0] != "NYC" {
		t.Fatalf("expected location to round-trip, got %v", got[1].Location)
	}
}

func TestListOpenJobsQuery(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	acme := seedCompany(t, store, "Acme")
	globex := seedCompany(t, store, "Globex")
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.UpsertJobs(ctx, []model.JobOffer{
		{ID: "a1", CompanyID: acme.ID, Status: model.StatusOpen, CreatedAt: base},
		{ID: "a2", CompanyID: acme.ID, Status: model.StatusOpen, CreatedAt: base.Add(time.Hour)},
		{ID: "g1", CompanyID: globex.ID, Status: model.StatusOpen, CreatedAt: base.Add(2 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("UpsertJobs error: %v", err)
	}

	cases := []struct {
		name string
		q    JobQuery
		want []string
	}{
		{"empty lists are no-ops", JobQuery{IDs: []string{}, ExcludeIDs: []string{}, ExcludeCompanyIDs: []int64{}}, []string{"g1", "a2", "a1"}},
		{"by ids", JobQuery{IDs: []string{"a1", "g1"}}, []string{"g1", "a1"}},
		{"by company", JobQuery{CompanyIDs: []int64{acme.ID}}, []string{"a2", "a1"}},
		{"exclude ids", JobQuery{ExcludeIDs: []string{"a2"}}, []string{"g1", "a1"}},
		{"exclude company", JobQuery{ExcludeCompanyIDs: []int64{acme.ID}}, []string{"g1"}},
	}
	for _, tc := range cases {
		got, err := store.ListOpenJobs(ctx, tc.q)
		if err != nil {
			t.Fatalf("%s: ListOpenJobs error: %v", tc.name, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s: expected %v, got %d jobs", tc.name, tc.want, len(got))
		}
		for i, id := range tc.want {
			if got[i].ID != id {
				t.Fatalf("%s: position %d expected %s, got %s", tc.name, i, id, got[i].ID)
			}
		}
	}
}

func TestListOpenJobsSkipsMissingCompany(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	acme := seedCompany(t, store, "Acme")
	gone := seedCompany(t, store, "Gone Inc")

	_, err := store.UpsertJobs(ctx, []model.JobOffer{
		{ID: "keep", CompanyID: acme.ID, Status: model.StatusOpen},
		{ID: "orphan", CompanyID: gone.ID, Status: model.StatusOpen},
	})
	if err != nil {
		t.Fatalf("UpsertJobs error: %v", err)
	}
	if err := store.DeleteCompany(ctx, gone.ID); err != nil {
		t.Fatalf("DeleteCompany error: %v", err)
	}

	got, err := store.ListOpenJobs(ctx, JobQuery{})
	if err != nil {
		t.Fatalf("ListOpenJobs error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "keep" {
		t.Fatalf("expected only job with a resolvable company, got %+v", got)
	}
}

func TestGetJobByID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	acme := seedCompany(t, store, "Acme")

	if _, err := store.UpsertJobs(ctx, []model.JobOffer{{ID: "abc", CompanyID: acme.ID, JobTitle: "Data Intern", Status: model.StatusOpen}}); err != nil {
		t.Fatalf("UpsertJobs error: %v", err)
	}

	fetched, err := store.GetJob(ctx, "abc")
	if err != nil {
		t.Fatalf("GetJob error: %v", err)
	}
	if fetched.JobTitle != "Data Intern" {
		t.Fatalf("expected title Data Intern, got %s", fetched.JobTitle)
	}
	if fetched.Company == nil || fetched.Company.Name != "Acme" {
		t.Fatalf("expected company join on GetJob")
	}

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCloseMissingJobs(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	acme := seedCompany(t, store, "Acme")
	if _, err := store.UpsertJobs(ctx, []model.JobOffer{
		{ID: "still-listed", CompanyID: acme.ID, Status: model.StatusOpen},
		{ID: "delisted", CompanyID: acme.ID, Status: model.StatusOpen},
	}); err != nil {
		t.Fatalf("UpsertJobs error: %v", err)
	}

	closed, err := store.CloseMissingJobs(ctx, []string{"still-listed"})
	if err != nil {
		t.Fatalf("CloseMissingJobs error: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 closed job, got %d", closed)
	}
	job, err := store.GetJob(ctx, "delisted")
	if err != nil {
		t.Fatalf("GetJob error: %v", err)
	}
	if job.Status != model.StatusClosed {
		t.Fatalf("expected delisted job to be closed, got %s", job.Status)
	}
}

func TestUpsertCompanyByName(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.UpsertCompanyByName(ctx, "Acme", "")
	if err != nil {
		t.Fatalf("UpsertCompanyByName error: %v", err)
	}
	second, err := store.UpsertCompanyByName(ctx, " Acme ", "https://logo.example/acme.png")
	if err != nil {
		t.Fatalf("UpsertCompanyByName error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same company id, got %d and %d", first.ID, second.ID)
	}
	got, err := store.GetCompany(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetCompany error: %v", err)
	}
	if got.Logo != "https://logo.example/acme.png" {
		t.Fatalf("expected logo to be updated, got %q", got.Logo)
	}
}

func TestGormLoggerIgnoresRecordNotFound(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := newGormLogger(&buf)
	ctx := context.Background()
	sql := func() (string, int64) { return `SELECT * FROM "user_preferences" WHERE user_id = "u1"`, 0 }

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), sql, nil)
	if buf.Len() != 0 {
		t.Fatalf("expected missing rows and fast queries to stay quiet, got %q", buf.String())
	}

	l.Trace(ctx, time.Now(), sql, errors.New("database is locked"))
	if !strings.Contains(buf.String(), "database is locked") {
		t.Fatalf("expected real errors to be logged, got %q", buf.String())
	}
}
