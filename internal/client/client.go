// Package client 是 jobhill HTTP API 的 Go SDK，以及基于它的会话看板。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobhill/internal/applications"
	"jobhill/internal/apperr"
	"jobhill/internal/listing"
	"jobhill/internal/model"
	"jobhill/internal/preferences"
)

// Error 是服务端返回的错误响应。Unwrap 得到对应类别的 apperr.Error。
type Error struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *Error) Error() string {
	return fmt.Sprintf("jobhill: %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return apperr.New(apperr.Kind(e.Code), e.Message, nil)
}

// Client 调用 jobhill API。
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option 配置 Client。
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken 设置 Bearer 访问令牌。
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PendingHide 是隐藏公司请求排队后的响应。
type PendingHide struct {
	Status    string `json:"status"`
	CompanyID int64  `json:"companyId"`
	DelayMS   int64  `json:"delayMs"`
}

func (c *Client) ListJobs(ctx context.Context) (listing.Result, error) {
	var res listing.Result
	err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &res)
	return res, err
}

// JobsForCompanies 返回指定公司集合下的职位。
func (c *Client) JobsForCompanies(ctx context.Context, companyIDs []int64) (listing.Result, error) {
	if companyIDs == nil {
		companyIDs = []int64{}
	}
	var res listing.Result
	err := c.do(ctx, http.MethodPost, "/api/jobs", map[string]any{"companyIds": companyIDs}, &res)
	return res, err
}

// HiddenJobs 按 id 取回已隐藏的职位。
func (c *Client) HiddenJobs(ctx context.Context, ids []string) (listing.Result, error) {
	if ids == nil {
		ids = []string{}
	}
	var res listing.Result
	err := c.do(ctx, http.MethodPost, "/api/jobs", map[string]any{"hiddenJobIds": ids}, &res)
	return res, err
}

func (c *Client) Preferences(ctx context.Context) (model.UserPreferences, error) {
	var prefs model.UserPreferences
	err := c.do(ctx, http.MethodGet, "/api/user-preferences", nil, &prefs)
	return prefs, err
}

func (c *Client) UpdatePreferences(ctx context.Context, p preferences.Patch) (model.UserPreferences, error) {
	var prefs model.UserPreferences
	err := c.do(ctx, http.MethodPost, "/api/user-preferences", p, &prefs)
	return prefs, err
}

func (c *Client) HideJob(ctx context.Context, jobID string, hidden bool) (model.UserPreferences, error) {
	var prefs model.UserPreferences
	err := c.do(ctx, http.MethodPost, "/api/user-preferences/hide-job", map[string]any{"jobId": jobID, "hidden": hidden}, &prefs)
	return prefs, err
}

func (c *Client) FavoriteJob(ctx context.Context, jobID string, favorite bool) (model.UserPreferences, error) {
	var prefs model.UserPreferences
	err := c.do(ctx, http.MethodPost, "/api/user-preferences/favorite-job", map[string]any{"jobId": jobID, "favorite": favorite}, &prefs)
	return prefs, err
}

// HideCompany 请求隐藏公司，服务端在撤销窗口结束后才落库。
func (c *Client) HideCompany(ctx context.Context, companyID int64) (PendingHide, error) {
	var res PendingHide
	err := c.do(ctx, http.MethodPost, "/api/user-preferences/hide-company", map[string]any{"companyId": companyID}, &res)
	return res, err
}

// UndoHideCompany 撤销尚未落库的隐藏。
func (c *Client) UndoHideCompany(ctx context.Context, companyID int64) error {
	return c.do(ctx, http.MethodPost, "/api/user-preferences/hide-company/undo", map[string]any{"companyId": companyID}, nil)
}

func (c *Client) TogglePreferredCategory(ctx context.Context, category string) (model.UserPreferences, error) {
	var prefs model.UserPreferences
	err := c.do(ctx, http.MethodPost, "/api/user-preferences/preferred-category", map[string]any{"category": category}, &prefs)
	return prefs, err
}

func (c *Client) TogglePreferredCompany(ctx context.Context, companyID int64) (model.UserPreferences, error) {
	var prefs model.UserPreferences
	err := c.do(ctx, http.MethodPost, "/api/user-preferences/preferred-company", map[string]any{"companyId": companyID}, &prefs)
	return prefs, err
}

func (c *Client) CompleteOnboarding(ctx context.Context, o preferences.Onboarding) (model.UserPreferences, error) {
	var prefs model.UserPreferences
	err := c.do(ctx, http.MethodPost, "/api/user-preferences/onboarding", o, &prefs)
	return prefs, err
}

// Applications 列出投递记录，query 透传筛选参数。
func (c *Client) Applications(ctx context.Context, query url.Values) ([]model.Application, error) {
	path := "/api/applications"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var res struct {
		Applications []model.Application `json:"applications"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &res)
	return res.Applications, err
}

func (c *Client) CreateApplication(ctx context.Context, in applications.CreateInput) (*model.Application, error) {
	var app model.Application
	if err := c.do(ctx, http.MethodPost, "/api/applications", in, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (c *Client) UpdateApplication(ctx context.Context, id string, in applications.UpdateInput) (*model.Application, error) {
	var app model.Application
	if err := c.do(ctx, http.MethodPatch, "/api/applications/"+url.PathEscape(id), in, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (c *Client) DeleteApplication(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/applications/"+url.PathEscape(id), nil, nil)
}

// Refresh 触发一次服务端抓取，返回新增职位数。
func (c *Client) Refresh(ctx context.Context) (int, error) {
	var res struct {
		Created int `json:"created"`
	}
	err := c.do(ctx, http.MethodPost, "/api/refresh", nil, &res)
	return res.Created, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	e := &Error{Status: resp.StatusCode}
	if json.Unmarshal(data, &body) == nil && body.Error.Code != "" {
		e.Code = body.Error.Code
		e.Message = body.Error.Message
		e.RequestID = body.Error.RequestID
		return e
	}
	e.Code = string(apperr.KindInternal)
	e.Message = strings.TrimSpace(string(data))
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
