package notifier

import (
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"jobhill/internal/model"
)

func TestLogNotifierWritesJobs(t *testing.T) {
	var buf strings.Builder
	logger := log.New(&buf, "", 0)
	n := NewLogNotifier(logger)

	jobs := []model.ListedJob{{
		JobOffer:    model.JobOffer{JobTitle: "Test Role", URL: "https://example.com/1", Status: model.StatusOpen},
		CompanyName: "Acme",
	}}

	if err := n.Notify(context.Background(), jobs); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	logged := buf.String()
	if !strings.Contains(logged, "Test Role") || !strings.Contains(logged, "Acme") || !strings.Contains(logged, "https://example.com/1") {
		t.Fatalf("log output missing job info: %s", logged)
	}
}

func TestLogNotifierSkipsEmptyJobs(t *testing.T) {
	var buf strings.Builder
	logger := log.New(&buf, "", 0)
	n := NewLogNotifier(logger)

	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if buf.Len() != 0 {
		t.Fatalf("expected no log output, got %q", buf.String())
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(context.Context, []model.ListedJob) error {
	c.calls++
	return c.err
}

func TestMultiCallsAll(t *testing.T) {
	failing := &countingNotifier{err: errors.New("down")}
	ok := &countingNotifier{}

	err := Multi{failing, ok}.Notify(context.Background(), []model.ListedJob{{}})
	if err == nil {
		t.Fatalf("expected first error to be returned")
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Fatalf("expected every notifier to be called, got %d/%d", failing.calls, ok.calls)
	}
}
