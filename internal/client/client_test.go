package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"jobhill/internal/applications"
	"jobhill/internal/apperr"
	"jobhill/internal/listing"
	"jobhill/internal/model"
)

func TestClientListJobsSendsToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(listing.Result{
			Jobs:  []model.ListedJob{{JobOffer: model.JobOffer{ID: "j1"}, CompanyName: "Acme"}},
			Total: 1,
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithToken("tok"), WithHTTPClient(srv.Client()))
	res, err := c.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if res.Total != 1 || res.Jobs[0].CompanyName != "Acme" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClientPostsJSONBody(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected json content type")
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)
		_ = json.NewEncoder(w).Encode(model.DefaultPreferences("u1"))
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	prefs, err := c.FavoriteJob(context.Background(), "j9", true)
	if err != nil {
		t.Fatalf("FavoriteJob: %v", err)
	}
	if prefs.UserID != "u1" {
		t.Fatalf("unexpected prefs: %+v", prefs)
	}
	if got["jobId"] != "j9" || got["favorite"] != true {
		t.Fatalf("unexpected body: %v", got)
	}
}

func TestClientDecodesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"conflict","message":"already applied","request_id":"r1"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	_, err := c.CreateApplication(context.Background(), applications.CreateInput{JobOfferID: "j1"})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.RequestID != "r1" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict kind, got %q", apperr.KindOf(err))
	}
}

func TestClientPlainTextError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	_, err := c.Preferences(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Code != string(apperr.KindInternal) || apiErr.Message != "upstream down" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestClientDeleteNoContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/applications/app-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()))
	if err := c.DeleteApplication(context.Background(), "app-1"); err != nil {
		t.Fatalf("DeleteApplication: %v", err)
	}
}

func TestGeneration(t *testing.T) {
	t.Parallel()

	var g Generation
	first := g.Next()
	if !g.IsCurrent(first) {
		t.Fatalf("fresh token should be current")
	}
	second := g.Next()
	if g.IsCurrent(first) || !g.IsCurrent(second) {
		t.Fatalf("only the newest token should be current")
	}
}
