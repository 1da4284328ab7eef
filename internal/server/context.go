package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestIDKey is where the request id middleware stores the id.
const RequestIDKey = "request_id"

type Context struct {
	*gin.Context
	status int
}

func NewContext(c *gin.Context) *Context {
	return &Context{
		Context: c,
		status:  http.StatusOK,
	}
}

// SetStatus overrides the status written for a successful handler response.
func (c *Context) SetStatus(code int) {
	c.status = code
}

func (c *Context) Created() {
	c.SetStatus(http.StatusCreated)
}

func (c *Context) RequestID() string {
	return c.GetString(RequestIDKey)
}

func (c *Context) respond(resp interface{}) {
	if s, ok := resp.(string); ok {
		c.String(c.status, s)
		return
	}
	c.JSON(c.status, resp)
}

// SendError writes err and logs server-side failures with the request id.
func (c *Context) SendError(err error) {
	var apiErr ApiError
	if !errors.As(err, &apiErr) || apiErr.StatusCode() >= http.StatusInternalServerError {
		fields := []zap.Field{zap.String("request_id", c.RequestID()), zap.Error(err)}
		if c.Request != nil {
			fields = append(fields, zap.String("path", c.Request.URL.Path))
		}
		zap.L().Warn("Request failed", fields...)
	}
	SendError(c.Context, err)
}
