package api

import (
	"net/http"

	"jobhill/internal/apperr"
	"jobhill/internal/filter"
	"jobhill/internal/listing"
)

// jobsRequest 是 POST /api/jobs 的请求体，二选一。
type jobsRequest struct {
	CompanyIDs   []int64  `json:"companyIds"`
	HiddenJobIDs []string `json:"hiddenJobIds"`
}

func (h *handler) jobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listJobs(w, r)
	case http.MethodPost:
		h.queryJobs(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

// listJobs 返回浏览者的职位列表，带查询参数时在服务端套用筛选。
func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	criteria, err := filter.ParseJobCriteria(r.URL.Query())
	if err != nil {
		h.writeError(w, r, apperr.New(apperr.KindValidation, err.Error(), err))
		return
	}
	res, err := h.Listing.ListJobsForViewer(r.Context(), viewerOf(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(r.URL.Query()) > 0 {
		res = applyCriteria(res, criteria)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) queryJobs(w http.ResponseWriter, r *http.Request) {
	var req jobsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var (
		res listing.Result
		err error
	)
	switch {
	case req.CompanyIDs != nil:
		res, err = h.Listing.ListJobsForCompanySet(r.Context(), viewerOf(r), req.CompanyIDs)
	case req.HiddenJobIDs != nil:
		res, err = h.Listing.ListJobsByIDs(r.Context(), viewerOf(r), req.HiddenJobIDs)
	default:
		err = apperr.Validation("companyIds or hiddenJobIds is required")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func applyCriteria(res listing.Result, c filter.JobCriteria) listing.Result {
	res.Jobs = filter.Jobs(res.Jobs, c)
	res.Total = len(res.Jobs)
	return res
}
