package preferences

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"jobhill/internal/apperr"
	"jobhill/internal/auth"
	"jobhill/internal/model"
	"jobhill/internal/storage"
)

type memoryStore struct {
	mu      sync.Mutex
	rows    map[string]model.UserPreferences
	saveErr error
	saves   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[string]model.UserPreferences)}
}

func (m *memoryStore) GetPreferences(_ context.Context, userID string) (model.UserPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID]
	if !ok {
		return model.UserPreferences{}, storage.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *memoryStore) SavePreferences(_ context.Context, prefs *model.UserPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.rows[prefs.UserID] = prefs.Clone()
	return nil
}

var alice = auth.Authenticated("alice", "alice@example.com")

func newTestService(store Store) *Service {
	return NewService(store, log.New(io.Discard, "", 0))
}

func TestGetDefaultsAndAuth(t *testing.T) {
	t.Parallel()

	svc := newTestService(newMemoryStore())
	prefs, err := svc.Get(context.Background(), alice)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if prefs.UserID != "alice" || prefs.HiddenJobs == nil || prefs.DontShowConfHide {
		t.Fatalf("unexpected defaults %+v", prefs)
	}

	if _, err := svc.Get(context.Background(), auth.Anonymous()); !apperr.Is(err, apperr.KindAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
	if _, err := svc.HideJob(context.Background(), auth.Anonymous(), "j1", true); !apperr.Is(err, apperr.KindAuthRequired) {
		t.Fatalf("expected auth required on mutation, got %v", err)
	}
}

func TestHideAndFavoriteJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore()
	svc := newTestService(store)

	if _, err := svc.HideJob(ctx, alice, "j1", true); err != nil {
		t.Fatalf("HideJob error: %v", err)
	}
	prefs, err := svc.HideJob(ctx, alice, "j1", true)
	if err != nil {
		t.Fatalf("HideJob repeat error: %v", err)
	}
	if len(prefs.HiddenJobs) != 1 {
		t.Fatalf("expected hide to be idempotent, got %v", prefs.HiddenJobs)
	}
	prefs, _ = svc.HideJob(ctx, alice, "j1", false)
	if len(prefs.HiddenJobs) != 0 {
		t.Fatalf("expected unhide to remove, got %v", prefs.HiddenJobs)
	}

	prefs, _ = svc.FavoriteJob(ctx, alice, "j2", nil)
	if !prefs.Favors("j2") {
		t.Fatalf("expected toggle to favorite")
	}
	prefs, _ = svc.FavoriteJob(ctx, alice, "j2", nil)
	if prefs.Favors("j2") {
		t.Fatalf("expected second toggle to unfavorite")
	}
	yes := true
	prefs, _ = svc.FavoriteJob(ctx, alice, "j2", &yes)
	prefs, _ = svc.FavoriteJob(ctx, alice, "j2", &yes)
	if len(prefs.FavoriteJobs) != 1 {
		t.Fatalf("expected explicit favorite to be idempotent, got %v", prefs.FavoriteJobs)
	}

	if _, err := svc.HideJob(ctx, alice, " ", true); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty job id, got %v", err)
	}
}

func TestPreferredCategoryCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(newMemoryStore())
	for _, c := range []string{"SWE", "Data", "PM", "Quant"} {
		if _, err := svc.TogglePreferredCategory(ctx, alice, c); err != nil {
			t.Fatalf("toggle %s: %v", c, err)
		}
	}
	prefs, err := svc.TogglePreferredCategory(ctx, alice, "Hardware")
	if err != nil {
		t.Fatalf("toggle fifth: %v", err)
	}
	if len(prefs.PreferredCategories) != 4 || prefs.PreferredCategories[3] != "Quant" {
		t.Fatalf("expected fifth add to be a no-op, got %v", prefs.PreferredCategories)
	}

	prefs, _ = svc.TogglePreferredCategory(ctx, alice, "Data")
	if len(prefs.PreferredCategories) != 3 {
		t.Fatalf("expected removal, got %v", prefs.PreferredCategories)
	}

	five := []string{"a", "b", "c", "d", "e"}
	if _, err := svc.Patch(ctx, alice, Patch{PreferredCategories: &five}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for 5 categories, got %v", err)
	}
}

func TestPreferredCategoryConcurrentToggles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore()
	svc := newTestService(store)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = svc.TogglePreferredCategory(ctx, alice, fmt.Sprintf("cat-%d", i%7))
		}(i)
	}
	wg.Wait()

	prefs, err := svc.Get(ctx, alice)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(prefs.PreferredCategories) > model.MaxPreferredCategories {
		t.Fatalf("category cap violated: %v", prefs.PreferredCategories)
	}
	if store.saves != 40 {
		t.Fatalf("expected every toggle to be persisted, got %d", store.saves)
	}
}

func TestPatchAndOnboarding(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(newMemoryStore())

	yes := true
	companies := []int64{3, 3, 7}
	prefs, err := svc.Patch(ctx, alice, Patch{HideNG: &yes, PreferredCompanies: &companies})
	if err != nil {
		t.Fatalf("Patch error: %v", err)
	}
	if !prefs.HideNG || len(prefs.PreferredCompanies) != 2 {
		t.Fatalf("unexpected patched preferences %+v", prefs)
	}

	prefs, err = svc.CompleteOnboarding(ctx, alice, Onboarding{
		RequiresSponsorship: true,
		HideInternships:     true,
		PreferredCategories: []string{"SWE", "SWE", "Data"},
	})
	if err != nil {
		t.Fatalf("CompleteOnboarding error: %v", err)
	}
	if !prefs.DontShowConfHide || !prefs.RequiresSponsorship || !prefs.HideInternships || prefs.HideNG {
		t.Fatalf("unexpected onboarding result %+v", prefs)
	}
	if len(prefs.PreferredCategories) != 2 {
		t.Fatalf("expected deduplicated categories, got %v", prefs.PreferredCategories)
	}
	if len(prefs.PreferredCompanies) != 2 {
		t.Fatalf("expected preferred companies untouched, got %v", prefs.PreferredCompanies)
	}
}

func TestHideCompanyAndPreferredCompany(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(newMemoryStore())

	prefs, err := svc.HideCompany(ctx, alice, 9, true)
	if err != nil {
		t.Fatalf("HideCompany error: %v", err)
	}
	if !prefs.HidesCompany(9) {
		t.Fatalf("expected company 9 hidden")
	}
	prefs, _ = svc.TogglePreferredCompany(ctx, alice, 9)
	if !prefs.PrefersCompany(9) {
		t.Fatalf("expected company 9 preferred")
	}
	prefs, _ = svc.TogglePreferredCompany(ctx, alice, 9)
	if prefs.PrefersCompany(9) {
		t.Fatalf("expected company 9 no longer preferred")
	}
	if _, err := svc.HideCompany(ctx, alice, 0, true); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.saveErr = errors.New("db down")
	svc := newTestService(store)

	if _, err := svc.HideJob(context.Background(), alice, "j1", true); !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
