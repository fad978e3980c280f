// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"testing"

	"github.com/bissquit/newsroom/internal/pkg/httputil"
)

// Default administrator created by the integration suite.
const (
	AdminEmail    = "admin@newsroom.test"
	AdminPassword = "admin-secret"
)

// Client is an HTTP client for testing API endpoints. Authentication is
// carried in the cookie jar; the CSRF token is echoed on state-changing requests.
type Client struct {
	BaseURL     string
	CSRFToken   string
	HTTPClient  *http.Client
	Validator   *OpenAPIValidator
	ValidateAPI bool
	t           *testing.T
}

// NewClient creates a new test client without validation.
func NewClient(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Jar: jar},
	}
}

// NewClientWithValidator creates a new test client with a pre-loaded OpenAPI validator.
// Use this in TestMain where *testing.T is not available during initialization.
func NewClientWithValidator(baseURL string, validator *OpenAPIValidator) *Client {
	c := NewClient(baseURL)
	c.Validator = validator
	c.ValidateAPI = true
	return c
}

// SetT sets the testing.T for validation error reporting.
func (c *Client) SetT(t *testing.T) {
	c.t = t
}

// WithoutValidation returns a copy of the client with validation disabled.
// Use this for negative tests where you expect invalid responses.
func (c *Client) WithoutValidation() *Client {
	clone := *c
	clone.ValidateAPI = false
	return &clone
}

// Register creates a reader account. The response sets auth cookies, so the
// client is logged in as the new reader afterwards.
func (c *Client) Register(t *testing.T, email, username, password string) string {
	t.Helper()
	c.t = t

	resp, err := c.POST("/api/v1/auth/register", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	})
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status=%d body=%s", resp.StatusCode, ReadBody(t, resp))
	}
	c.captureCSRF(resp)

	var result struct {
		Data struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	DecodeJSON(t, resp, &result)
	return result.Data.User.ID
}

// RegisterReader creates a reader with random credentials and returns its ID.
func (c *Client) RegisterReader(t *testing.T) string {
	t.Helper()
	return c.Register(t, RandomEmail(), RandomUsername(), "reader-secret")
}

// LoginAs authenticates a reader using email/password.
func (c *Client) LoginAs(t *testing.T, email, password string) {
	t.Helper()
	c.login(t, "/api/v1/auth/login", email, password)
}

// LoginAsAdmin logs in as the default administrator.
func (c *Client) LoginAsAdmin(t *testing.T) {
	t.Helper()
	c.login(t, "/api/v1/admin/auth/login", AdminEmail, AdminPassword)
}

func (c *Client) login(t *testing.T, path, email, password string) {
	t.Helper()
	c.t = t

	resp, err := c.POST(path, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("login failed: status=%d body=%s", resp.StatusCode, body)
	}
	c.captureCSRF(resp)
}

func (c *Client) captureCSRF(resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == httputil.CSRFTokenCookie {
			c.CSRFToken = cookie.Value
			return
		}
	}
}

// Logout drops every cookie and the CSRF token.
func (c *Client) Logout() {
	c.CSRFToken = ""
	jar, _ := cookiejar.New(nil)
	c.HTTPClient.Jar = jar
}

// GET performs a GET request.
func (c *Client) GET(path string) (*http.Response, error) {
	return c.do(http.MethodGet, path, nil)
}

// POST performs a POST request with JSON body.
func (c *Client) POST(path string, body any) (*http.Response, error) {
	return c.do(http.MethodPost, path, body)
}

// PUT performs a PUT request with JSON body.
func (c *Client) PUT(path string, body any) (*http.Response, error) {
	return c.do(http.MethodPut, path, body)
}

// DELETE performs a DELETE request.
func (c *Client) DELETE(path string) (*http.Response, error) {
	return c.do(http.MethodDelete, path, nil)
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.CSRFToken != "" && isStateChanging(method) {
		req.Header.Set(httputil.CSRFTokenHeader, c.CSRFToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	if c.ValidateAPI && c.Validator != nil && c.t != nil {
		validationReq, _ := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(bodyBytes))
		validationReq.Header = req.Header
		c.Validator.ValidateResponse(c.t, validationReq, resp)
	}

	return resp, nil
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// DecodeJSON decodes response body into v.
func DecodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// DecodeData decodes the {"data": ...} envelope into v.
func DecodeData(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	DecodeJSON(t, resp, &envelope)
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

// ReadBody reads and returns response body as string.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}
