package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/SAP-F-2025/assessment-session-service/internal/cache"
	"github.com/SAP-F-2025/assessment-session-service/internal/models"
	"github.com/SAP-F-2025/assessment-session-service/internal/repositories"
	"github.com/stretchr/testify/mock"
)

// MockPortalClient is a mock implementation of portal.Client
type MockPortalClient struct {
	mock.Mock
}

func (m *MockPortalClient) GetAssessment(ctx context.Context, token, jobID, assessmentID string) (*models.Assessment, error) {
	args := m.Called(ctx, token, jobID, assessmentID)
	if a, ok := args.Get(0).(*models.Assessment); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPortalClient) GetCurrentUser(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	if u, ok := args.Get(0).(*models.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPortalClient) SubmitApplication(ctx context.Context, token string, req *models.SubmitApplicationRequest) (*models.SubmitApplicationResponse, error) {
	args := m.Called(ctx, token, req)
	if r, ok := args.Get(0).(*models.SubmitApplicationResponse); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPortalClient) GetMyApplication(ctx context.Context, token, applicationID string) (*models.Application, error) {
	args := m.Called(ctx, token, applicationID)
	if a, ok := args.Get(0).(*models.Application); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPortalClient) GetJobApplication(ctx context.Context, token, jobID, assessmentID, applicationID string) (*models.Application, error) {
	args := m.Called(ctx, token, jobID, assessmentID, applicationID)
	if a, ok := args.Get(0).(*models.Application); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, record *models.SessionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSessionRepository) Update(ctx context.Context, record *models.SessionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*models.SessionRecord, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*models.SessionRecord); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionRepository) GetLatest(ctx context.Context, userID, jobID, assessmentID string) (*models.SessionRecord, error) {
	args := m.Called(ctx, userID, jobID, assessmentID)
	if r, ok := args.Get(0).(*models.SessionRecord); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionRepository) ListByUser(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.SessionRecord, int64, error) {
	args := m.Called(ctx, userID, filters)
	return args.Get(0).([]*models.SessionRecord), args.Get(1).(int64), args.Error(2)
}

func (m *MockSessionRepository) MarkAbandoned(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// memoryCache is a CacheService backed by a map, storing JSON like redis does
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	c.sets++
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	data, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// DeletePattern supports the trailing-wildcard patterns the services use
func (c *memoryCache) DeletePattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
