package api

import (
	"context"
	"fmt"
	"net/http"

	"jobhill/internal/apperr"
	"jobhill/internal/auth"
	"jobhill/internal/preferences"
)

type hideJobRequest struct {
	JobID  string `json:"jobId"`
	Hidden *bool  `json:"hidden"`
}

type favoriteJobRequest struct {
	JobID    string `json:"jobId"`
	Favorite *bool  `json:"favorite"`
}

type companyRequest struct {
	CompanyID int64 `json:"companyId"`
	Hidden    *bool `json:"hidden"`
}

type categoryRequest struct {
	Category string `json:"category"`
}

// pendingResponse 表示已排队、尚可撤销的隐藏公司操作。
type pendingResponse struct {
	Status    string `json:"status"`
	CompanyID int64  `json:"companyId"`
	DelayMS   int64  `json:"delayMs,omitempty"`
}

func (h *handler) preferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		prefs, err := h.Preferences.Get(r.Context(), viewerOf(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	case http.MethodPost, http.MethodPatch:
		var p preferences.Patch
		if err := decodeJSON(w, r, &p); err != nil {
			h.writeError(w, r, err)
			return
		}
		prefs, err := h.Preferences.Patch(r.Context(), viewerOf(r), p)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	default:
		methodNotAllowed(w, r)
	}
}

func (h *handler) hideJob(w http.ResponseWriter, r *http.Request) {
	var req hideJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	hidden := req.Hidden == nil || *req.Hidden
	prefs, err := h.Preferences.HideJob(r.Context(), viewerOf(r), req.JobID, hidden)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *handler) favoriteJob(w http.ResponseWriter, r *http.Request) {
	var req favoriteJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	prefs, err := h.Preferences.FavoriteJob(r.Context(), viewerOf(r), req.JobID, req.Favorite)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// hideCompany 隐藏公司时先排队，延迟到期才落库；取消隐藏立即生效并撤销排队中的隐藏。
func (h *handler) hideCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	viewer := viewerOf(r)
	if viewer.IsAnonymous() {
		h.writeError(w, r, apperr.AuthRequired())
		return
	}
	if req.CompanyID <= 0 {
		h.writeError(w, r, apperr.Validation("companyId is required"))
		return
	}

	hidden := req.Hidden == nil || *req.Hidden
	if !hidden || h.Deferred == nil || h.HideCompanyDelay <= 0 {
		if !hidden && h.Deferred != nil && h.Deferred.Cancel(hideCompanyKey(viewer, req.CompanyID)) {
			writeJSON(w, http.StatusOK, pendingResponse{Status: "cancelled", CompanyID: req.CompanyID})
			return
		}
		prefs, err := h.Preferences.HideCompany(r.Context(), viewer, req.CompanyID, hidden)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
		return
	}

	companyID := req.CompanyID
	commit := func(ctx context.Context) error {
		_, err := h.Preferences.HideCompany(ctx, viewer, companyID, true)
		return err
	}
	err := h.Deferred.Schedule(hideCompanyKey(viewer, companyID), h.HideCompanyDelay, commit, func() {
		h.logger.Printf("level=info msg=\"hide company undone\" user=%s company_id=%d", viewer.UserID, companyID)
	})
	if err != nil {
		h.writeError(w, r, apperr.Unavailable("hide company is unavailable", err))
		return
	}
	writeJSON(w, http.StatusAccepted, pendingResponse{
		Status:    "pending",
		CompanyID: companyID,
		DelayMS:   h.HideCompanyDelay.Milliseconds(),
	})
}

func (h *handler) undoHideCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	viewer := viewerOf(r)
	if viewer.IsAnonymous() {
		h.writeError(w, r, apperr.AuthRequired())
		return
	}
	if h.Deferred == nil || !h.Deferred.Cancel(hideCompanyKey(viewer, req.CompanyID)) {
		h.writeError(w, r, apperr.NotFound("no pending hide for this company"))
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{Status: "cancelled", CompanyID: req.CompanyID})
}

func (h *handler) preferredCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	prefs, err := h.Preferences.TogglePreferredCategory(r.Context(), viewerOf(r), req.Category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *handler) preferredCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	prefs, err := h.Preferences.TogglePreferredCompany(r.Context(), viewerOf(r), req.CompanyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *handler) onboarding(w http.ResponseWriter, r *http.Request) {
	var o preferences.Onboarding
	if err := decodeJSON(w, r, &o); err != nil {
		h.writeError(w, r, err)
		return
	}
	prefs, err := h.Preferences.CompleteOnboarding(r.Context(), viewerOf(r), o)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func hideCompanyKey(v auth.Viewer, companyID int64) string {
	return fmt.Sprintf("hide-company:%s:%d", v.UserID, companyID)
}
