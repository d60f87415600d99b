package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/lgates/internal/model"
	"github.com/alfredjeanlab/lgates/internal/workflow"
)

// UserIDHeader names the caller when the server runs without JWT auth.
const UserIDHeader = "X-User-ID"

// HTTPClient implements GatesClient using the lgates HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	user       string
	token      string
	httpClient *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *HTTPClient) { c.token = token }
}

// WithUser sends user in the X-User-ID header on every request. Servers
// with JWT auth enabled ignore it.
func WithUser(user string) Option {
	return func(c *HTTPClient) { c.user = user }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func initiativePath(id string) string {
	return "/api/initiatives/" + url.PathEscape(id)
}

func formPath(id string, gate model.Gate) string {
	return initiativePath(id) + "/forms/" + url.PathEscape(string(gate))
}

// --- Initiatives ---

func (c *HTTPClient) CreateInitiative(ctx context.Context, req *CreateInitiativeRequest) (*model.Initiative, error) {
	var in model.Initiative
	if err := c.doJSON(ctx, http.MethodPost, "/api/initiatives", req, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (c *HTTPClient) GetInitiative(ctx context.Context, id string) (*model.Initiative, error) {
	var in model.Initiative
	if err := c.doJSON(ctx, http.MethodGet, initiativePath(id), nil, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (c *HTTPClient) ListInitiatives(ctx context.Context, req *ListInitiativesRequest) (*ListInitiativesResponse, error) {
	q := url.Values{}
	if req != nil {
		if req.ValueStream != "" {
			q.Set("valueStream", req.ValueStream)
		}
		if req.Search != "" {
			q.Set("search", req.Search)
		}
		if req.Limit > 0 {
			q.Set("limit", strconv.Itoa(req.Limit))
		}
		if req.Offset > 0 {
			q.Set("offset", strconv.Itoa(req.Offset))
		}
	}

	path := "/api/initiatives"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListInitiativesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) DeleteInitiative(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, initiativePath(id), nil, nil)
}

func (c *HTTPClient) GetEvents(ctx context.Context, initiativeID string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, initiativePath(initiativeID)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Gate forms ---

func (c *HTTPClient) ListForms(ctx context.Context, initiativeID string) ([]workflow.View, error) {
	var resp struct {
		Forms []workflow.View `json:"forms"`
	}
	if err := c.doJSON(ctx, http.MethodGet, initiativePath(initiativeID)+"/forms", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Forms, nil
}

func (c *HTTPClient) GetForm(ctx context.Context, initiativeID string, gate model.Gate) (*workflow.View, error) {
	var v workflow.View
	if err := c.doJSON(ctx, http.MethodGet, formPath(initiativeID, gate), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) SaveForm(ctx context.Context, initiativeID string, gate model.Gate, req *SaveFormRequest) (*workflow.View, error) {
	var v workflow.View
	if err := c.doJSON(ctx, http.MethodPut, formPath(initiativeID, gate), req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) Approve(ctx context.Context, initiativeID string, gate model.Gate, req *ReviewRequest) (*workflow.View, error) {
	return c.review(ctx, initiativeID, gate, "approve", req)
}

func (c *HTTPClient) Reject(ctx context.Context, initiativeID string, gate model.Gate, req *ReviewRequest) (*workflow.View, error) {
	return c.review(ctx, initiativeID, gate, "reject", req)
}

func (c *HTTPClient) RequestChange(ctx context.Context, initiativeID string, gate model.Gate, req *ReviewRequest) (*workflow.View, error) {
	return c.review(ctx, initiativeID, gate, "request-change", req)
}

func (c *HTTPClient) review(ctx context.Context, initiativeID string, gate model.Gate, verb string, req *ReviewRequest) (*workflow.View, error) {
	if req == nil {
		req = &ReviewRequest{}
	}
	var v workflow.View
	if err := c.doJSON(ctx, http.MethodPut, formPath(initiativeID, gate)+"/"+verb, req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) GetRequirements(ctx context.Context, gate model.Gate) (*model.GateRequirements, error) {
	var reqs model.GateRequirements
	if err := c.doJSON(ctx, http.MethodGet, "/api/gates/"+url.PathEscape(string(gate))+"/requirements", nil, &reqs); err != nil {
		return nil, err
	}
	return &reqs, nil
}

// --- Status ---

func (c *HTTPClient) GetStatus(ctx context.Context, initiativeID string) (*model.InitiativeStatus, error) {
	var st model.InitiativeStatus
	if err := c.doJSON(ctx, http.MethodGet, initiativePath(initiativeID)+"/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) SetStatus(ctx context.Context, initiativeID string, patch model.StatusPatch) (*model.InitiativeStatus, error) {
	var st model.InitiativeStatus
	if err := c.doJSON(ctx, http.MethodPut, initiativePath(initiativeID)+"/status", patch, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// --- Roles ---

func (c *HTTPClient) MyRole(ctx context.Context) (*model.UserRole, error) {
	var ur model.UserRole
	if err := c.doJSON(ctx, http.MethodGet, "/api/user/role", nil, &ur); err != nil {
		return nil, err
	}
	return &ur, nil
}

func (c *HTTPClient) SetUserRole(ctx context.Context, userID string, req *SetRoleRequest) (*model.UserRole, error) {
	var ur model.UserRole
	if err := c.doJSON(ctx, http.MethodPut, "/api/user/"+url.PathEscape(userID)+"/role", req, &ur); err != nil {
		return nil, err
	}
	return &ur, nil
}

func (c *HTTPClient) ListUsers(ctx context.Context) ([]*model.UserRole, error) {
	var resp struct {
		Users []*model.UserRole `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// --- Config ---

func (c *HTTPClient) SetConfig(ctx context.Context, key string, value json.RawMessage) (*model.Config, error) {
	body := map[string]json.RawMessage{"value": value}
	var cfg model.Config
	if err := c.doJSON(ctx, http.MethodPut, "/api/configs/"+key, body, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) GetConfig(ctx context.Context, key string) (*model.Config, error) {
	var cfg model.Config
	if err := c.doJSON(ctx, http.MethodGet, "/api/configs/"+key, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error) {
	path := "/api/configs"
	if namespace != "" {
		path += "?namespace=" + url.QueryEscape(namespace)
	}
	var resp struct {
		Configs []*model.Config `json:"configs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Configs, nil
}

func (c *HTTPClient) DeleteConfig(ctx context.Context, key string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/configs/"+key, nil, nil)
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.user != "" {
		req.Header.Set(UserIDHeader, c.user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
