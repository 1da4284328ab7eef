package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ApiError is the error shape clients see. Message is a format string until New is called.
type ApiError struct {
	Status    int      `json:"-"`
	ErrorCode string   `json:"error_code"`
	Message   string   `json:"error"`
	Fields    []string `json:"fields,omitempty"`
}

var (
	ErrBadRequest = ApiError{Status: http.StatusBadRequest, ErrorCode: "BAD_REQUEST", Message: "%s"}
	ErrNotFound   = ApiError{Status: http.StatusNotFound, ErrorCode: "NOT_FOUND", Message: "%s"}
	ErrMethod     = ApiError{Status: http.StatusMethodNotAllowed, ErrorCode: "METHOD_NOT_SUPPORTED", Message: "%s"}
	ErrInternal   = ApiError{Status: http.StatusInternalServerError, ErrorCode: "INTERNAL_SERVER_ERROR", Message: "%s"}
)

func (e ApiError) New(messages ...string) ApiError {
	args := make([]any, len(messages))
	for i, msg := range messages {
		args[i] = msg
	}

	return ApiError{
		Status:    e.Status,
		ErrorCode: e.ErrorCode,
		Message:   fmt.Sprintf(e.Message, args...),
		Fields:    e.Fields,
	}
}

func (e ApiError) WithFields(fields ...string) ApiError {
	e.Fields = fields
	return e
}

func (e ApiError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

func (e ApiError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

func SendError(c *gin.Context, err error) {
	var apiErr ApiError
	if errors.As(err, &apiErr) {
		c.AbortWithStatusJSON(apiErr.StatusCode(), apiErr)
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrInternal.New("An unknown error occurred"))
}
