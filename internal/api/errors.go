package api

import (
	"encoding/json"
	"net/http"

	"jobhill/internal/apperr"
)

// APIError 统一错误响应体。
type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	writeJSON(w, status, e)
}

// writeError 按错误类别映射状态码，未分类错误记录日志后返回 500。
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("level=error msg=\"request failed\" request_id=%s method=%s path=%s err=%v", RequestIDFrom(r.Context()), r.Method, r.URL.Path, err)
	}
	writeErrorCode(w, r, status, string(apperr.KindOf(err)), apperr.MessageOf(err))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeErrorCode(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid payload")
	}
	return nil
}
