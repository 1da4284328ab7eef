package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_New(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := New()

	assert.NotNil(t, server)
	assert.NotNil(t, server.Engine())
	assert.Equal(t, RuntimeHTTP, server.runtime)
}

func TestServer_SetBasePath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := New()
	server.SetBasePath("/api/v1")

	server.Group("").GET("/test", func(c *Context) (string, error) {
		return "test", nil
	})

	w := httptest.NewRecorder()
	server.Engine().ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_CustomCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := New()

	server.CustomCORS([]string{"http://localhost:3000"}, []string{"GET", "POST"}, []string{"Content-Type"}, 24*time.Hour)
	server.Engine().GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	server.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET,POST", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

func TestServer_DefaultCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := New().DefaultCORS()
	server.Engine().GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://example.com")
	server.Engine().ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Start(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := New()

	err := server.Start(-1)
	assert.Error(t, err)
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := New()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx, 0)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_LambdaHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := New()
	server.Group("/posts").GET("", func() (string, error) {
		return "from lambda", nil
	})

	resp, err := server.LambdaHandler()(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/posts",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "from lambda", resp.Body)
}
