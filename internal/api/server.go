package api

import (
	"context"
	"log"
	"net/http"
	"os"
	"slices"
	"time"

	"jobhill/internal/applications"
	"jobhill/internal/apperr"
	"jobhill/internal/auth"
	"jobhill/internal/deferred"
	"jobhill/internal/filter"
	"jobhill/internal/listing"
	"jobhill/internal/model"
	"jobhill/internal/preferences"
)

// Listing 抽象职位列表查询。
type Listing interface {
	ListJobsForViewer(ctx context.Context, viewer auth.Viewer) (listing.Result, error)
	ListJobsForCompanySet(ctx context.Context, viewer auth.Viewer, companyIDs []int64) (listing.Result, error)
	ListJobsByIDs(ctx context.Context, viewer auth.Viewer, ids []string) (listing.Result, error)
}

// Preferences 抽象用户偏好的读写。
type Preferences interface {
	Get(ctx context.Context, viewer auth.Viewer) (model.UserPreferences, error)
	Patch(ctx context.Context, viewer auth.Viewer, p preferences.Patch) (model.UserPreferences, error)
	HideJob(ctx context.Context, viewer auth.Viewer, jobID string, hidden bool) (model.UserPreferences, error)
	FavoriteJob(ctx context.Context, viewer auth.Viewer, jobID string, favorite *bool) (model.UserPreferences, error)
	HideCompany(ctx context.Context, viewer auth.Viewer, companyID int64, hidden bool) (model.UserPreferences, error)
	TogglePreferredCategory(ctx context.Context, viewer auth.Viewer, category string) (model.UserPreferences, error)
	TogglePreferredCompany(ctx context.Context, viewer auth.Viewer, companyID int64) (model.UserPreferences, error)
	CompleteOnboarding(ctx context.Context, viewer auth.Viewer, o preferences.Onboarding) (model.UserPreferences, error)
}

// Applications 抽象投递记录的增删改查。
type Applications interface {
	List(ctx context.Context, viewer auth.Viewer, c filter.ApplicationCriteria) ([]model.Application, error)
	Create(ctx context.Context, viewer auth.Viewer, in applications.CreateInput) (*model.Application, error)
	Update(ctx context.Context, viewer auth.Viewer, id string, in applications.UpdateInput) (*model.Application, error)
	Delete(ctx context.Context, viewer auth.Viewer, id string) error
}

// Scheduler 抽象手动触发抓取。
type Scheduler interface {
	RunOnce(ctx context.Context) (int, error)
}

// Deferred 抽象可撤销的延迟提交。
type Deferred interface {
	Schedule(key string, delay time.Duration, commit deferred.CommitFunc, cancel func()) error
	Cancel(key string) bool
}

// Deps 汇总 handler 依赖，Deferred/Limiter/Verifier 可为空。
// RefreshAdmins 非空时只有其中的用户可以触发手动抓取。
type Deps struct {
	Listing          Listing
	Preferences      Preferences
	Applications     Applications
	Scheduler        Scheduler
	Deferred         Deferred
	Verifier         TokenVerifier
	Limiter          *UserLimiter
	HideCompanyDelay time.Duration
	RefreshAdmins    []string
	Logger           *log.Logger
}

type handler struct {
	Deps
	logger *log.Logger
}

// NewHandler 构造 HTTP 多路复用器并套上公共中间件。
func NewHandler(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[api] ", log.LstdFlags)
	}
	h := &handler{Deps: deps, logger: logger}
	lim := deps.Limiter

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/jobs", lim.wrap(h.jobs))
	mux.HandleFunc("/api/refresh", lim.wrap(h.refresh))
	mux.HandleFunc("/api/applications", lim.wrap(h.applications))
	mux.HandleFunc("/api/applications/", lim.wrap(h.application))
	mux.HandleFunc("/api/user-preferences", lim.wrap(h.preferences))
	mux.HandleFunc("/api/user-preferences/hide-job", lim.wrap(post(h.hideJob)))
	mux.HandleFunc("/api/user-preferences/favorite-job", lim.wrap(post(h.favoriteJob)))
	mux.HandleFunc("/api/user-preferences/hide-company", lim.wrap(post(h.hideCompany)))
	mux.HandleFunc("/api/user-preferences/hide-company/undo", lim.wrap(post(h.undoHideCompany)))
	mux.HandleFunc("/api/user-preferences/preferred-category", lim.wrap(post(h.preferredCategory)))
	mux.HandleFunc("/api/user-preferences/preferred-company", lim.wrap(post(h.preferredCompany)))
	mux.HandleFunc("/api/user-preferences/onboarding", lim.wrap(post(h.onboarding)))

	return Chain(mux,
		RequestID,
		AccessLog(logger),
		Recover(logger),
		ResolveViewer(deps.Verifier, logger),
	)
}

func post(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r)
			return
		}
		next(w, r)
	}
}

func viewerOf(r *http.Request) auth.Viewer {
	return auth.ViewerFrom(r.Context())
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	viewer := viewerOf(r)
	if viewer.IsAnonymous() {
		h.writeError(w, r, apperr.AuthRequired())
		return
	}
	if len(h.RefreshAdmins) > 0 && !slices.Contains(h.RefreshAdmins, viewer.UserID) {
		h.writeError(w, r, apperr.Forbidden("refresh is restricted to admins"))
		return
	}
	if h.Scheduler == nil {
		h.writeError(w, r, apperr.Unavailable("scheduler not configured", nil))
		return
	}
	created, err := h.Scheduler.RunOnce(r.Context())
	if err != nil {
		h.writeError(w, r, apperr.Unavailable("refresh failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}
