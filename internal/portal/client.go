// Package portal talks to the hiring portal's REST API. The caller's bearer
// token is forwarded on every request.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SAP-F-2025/assessment-session-service/internal/models"
)

var (
	ErrNotFound     = errors.New("portal resource not found")
	ErrUnauthorized = errors.New("portal rejected credentials")
)

// APIError is a non-2xx answer from the portal
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("portal returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match ErrNotFound and ErrUnauthorized.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}

// Client is the set of portal calls the session service depends on
type Client interface {
	GetAssessment(ctx context.Context, token, jobID, assessmentID string) (*models.Assessment, error)
	GetCurrentUser(ctx context.Context, token string) (*models.User, error)
	SubmitApplication(ctx context.Context, token string, req *models.SubmitApplicationRequest) (*models.SubmitApplicationResponse, error)
	GetMyApplication(ctx context.Context, token, applicationID string) (*models.Application, error)
	GetJobApplication(ctx context.Context, token, jobID, assessmentID, applicationID string) (*models.Application, error)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *HTTPClient) GetAssessment(ctx context.Context, token, jobID, assessmentID string) (*models.Assessment, error) {
	var assessment models.Assessment
	path := fmt.Sprintf("/assessments/jobs/%s/%s", url.PathEscape(jobID), url.PathEscape(assessmentID))
	if err := c.do(ctx, http.MethodGet, path, token, nil, &assessment); err != nil {
		return nil, fmt.Errorf("failed to get assessment %s: %w", assessmentID, err)
	}
	return &assessment, nil
}

func (c *HTTPClient) GetCurrentUser(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/users/me", token, nil, &user); err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return &user, nil
}

func (c *HTTPClient) SubmitApplication(ctx context.Context, token string, req *models.SubmitApplicationRequest) (*models.SubmitApplicationResponse, error) {
	var resp models.SubmitApplicationResponse
	path := fmt.Sprintf("/applications/jobs/%s/assessments/%s", url.PathEscape(req.JobID), url.PathEscape(req.AssessmentID))
	if err := c.do(ctx, http.MethodPost, path, token, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to submit application: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("failed to submit application: portal returned no application id")
	}
	return &resp, nil
}

func (c *HTTPClient) GetMyApplication(ctx context.Context, token, applicationID string) (*models.Application, error) {
	var application models.Application
	path := "/applications/my-applications/" + url.PathEscape(applicationID)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &application); err != nil {
		return nil, fmt.Errorf("failed to get application %s: %w", applicationID, err)
	}
	return &application, nil
}

func (c *HTTPClient) GetJobApplication(ctx context.Context, token, jobID, assessmentID, applicationID string) (*models.Application, error) {
	var application models.Application
	path := fmt.Sprintf("/applications/jobs/%s/assessment_id/%s/applications/%s",
		url.PathEscape(jobID), url.PathEscape(assessmentID), url.PathEscape(applicationID))
	if err := c.do(ctx, http.MethodGet, path, token, nil, &application); err != nil {
		return nil, fmt.Errorf("failed to get application %s: %w", applicationID, err)
	}
	return &application, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Portal request",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"detail": ...} or {"message": ...} from an error body.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		var detail string
		if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
			return detail
		}
		if len(payload.Detail) > 0 && detail == "" {
			return string(payload.Detail)
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 256 {
		return text
	}
	return fallback
}
