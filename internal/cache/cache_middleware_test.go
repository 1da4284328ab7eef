package cache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) Set(ctx context.Context, key string, data []byte, tags []string, duration time.Duration) error {
	args := m.Called(ctx, key, data, tags, duration)
	return args.Error(0)
}

func (m *MockCacheService) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCacheService) Invalidate(ctx context.Context, tags ...string) error {
	args := m.Called(ctx, tags)
	return args.Error(0)
}

func TestCacheMiddleware_Miss(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockService := new(MockCacheService)

	r := gin.New()
	r.Use(CacheMiddleware(mockService, time.Minute, nil, nil))
	r.GET("/posts", func(c *gin.Context) {
		c.String(http.StatusOK, "[]")
	})

	mockService.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	mockService.On("Set", mock.Anything, mock.Anything, []byte("[]"), []string{}, time.Minute).Return(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	mockService.AssertExpectations(t)
}

func TestCacheMiddleware_Hit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockService := new(MockCacheService)

	r := gin.New()
	r.Use(CacheMiddleware(mockService, time.Minute, nil, nil))
	r.GET("/posts", func(c *gin.Context) {
		c.String(http.StatusOK, "should not run")
	})

	mockService.On("Get", mock.Anything, mock.Anything).Return([]byte(`[{"id":"1"}]`), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `[{"id":"1"}]`, w.Body.String())
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	mockService.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCacheMiddleware_Tags(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockService := new(MockCacheService)

	r := gin.New()
	r.Use(CacheMiddleware(mockService, time.Minute, StaticTags(PostsTag), nil))
	r.GET("/posts", func(c *gin.Context) {
		c.String(http.StatusOK, "tagged")
	})

	mockService.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	mockService.On("Set", mock.Anything, mock.Anything, []byte("tagged"), []string{PostsTag}, time.Minute).Return(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestCacheMiddleware_SkipsErrorsAndOtherMethods(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockService := new(MockCacheService)

	r := gin.New()
	r.Use(CacheMiddleware(mockService, time.Minute, nil, nil))
	r.GET("/broken", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})
	r.POST("/posts", func(c *gin.Context) {
		c.String(http.StatusCreated, "created")
	})

	mockService.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("unreachable"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/broken", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/posts", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache"))

	mockService.AssertNumberOfCalls(t, "Get", 1)
	mockService.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCacheMiddleware_SkipsStoreAfterConcurrentInvalidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockService := new(MockCacheService)
	versioned := NewVersionedCache(mockService)

	mockService.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	mockService.On("Invalidate", mock.Anything, []string{PostsTag}).Return(nil)

	r := gin.New()
	r.Use(CacheMiddleware(versioned, time.Minute, StaticTags(PostsTag), nil))
	r.GET("/posts", func(c *gin.Context) {
		// A write lands between reading the store and caching the response.
		_ = versioned.Invalidate(c.Request.Context(), PostsTag)
		c.String(http.StatusOK, `[{"id":"old"}]`)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(1), versioned.Version())
	mockService.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCacheMiddleware_VersionedStoresWhenUnchanged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockService := new(MockCacheService)
	versioned := NewVersionedCache(mockService)

	mockService.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	mockService.On("Set", mock.Anything, mock.Anything, []byte("[]"), []string{PostsTag}, time.Minute).Return(nil)

	r := gin.New()
	r.Use(CacheMiddleware(versioned, time.Minute, StaticTags(PostsTag), nil))
	r.GET("/posts", func(c *gin.Context) {
		c.String(http.StatusOK, "[]")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}
