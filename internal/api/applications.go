package api

import (
	"net/http"
	"strings"

	"jobhill/internal/applications"
	"jobhill/internal/apperr"
	"jobhill/internal/filter"
)

func (h *handler) applications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		criteria, err := filter.ParseApplicationCriteria(r.URL.Query())
		if err != nil {
			h.writeError(w, r, apperr.New(apperr.KindValidation, err.Error(), err))
			return
		}
		apps, err := h.Applications.List(r.Context(), viewerOf(r), criteria)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"applications": apps, "total": len(apps)})
	case http.MethodPost:
		var in applications.CreateInput
		if err := decodeJSON(w, r, &in); err != nil {
			h.writeError(w, r, err)
			return
		}
		app, err := h.Applications.Create(r.Context(), viewerOf(r), in)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, app)
	default:
		methodNotAllowed(w, r)
	}
}

// application 处理 /api/applications/{id} 的更新与删除。
func (h *handler) application(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/applications/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeErrorCode(w, r, http.StatusNotFound, string(apperr.KindNotFound), "not found")
		return
	}

	switch r.Method {
	case http.MethodPatch, http.MethodPut:
		var in applications.UpdateInput
		if err := decodeJSON(w, r, &in); err != nil {
			h.writeError(w, r, err)
			return
		}
		app, err := h.Applications.Update(r.Context(), viewerOf(r), id, in)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	case http.MethodDelete:
		if err := h.Applications.Delete(r.Context(), viewerOf(r), id); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r)
	}
}
