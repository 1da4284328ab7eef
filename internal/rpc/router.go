// Package rpc exposes named procedures over HTTP. A query is read-only and may be
// called with GET ?input=<json> or POST; a mutation is POST only. Responses use
// the envelopes {"result":{"data":...}} and {"error":{"code","message","data"}}.
package rpc

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/klass-lk/postboard/internal/server"
)

type Kind string

const (
	KindQuery    Kind = "query"
	KindMutation Kind = "mutation"
)

type procedure struct {
	kind Kind
	call func(ctx context.Context, raw []byte) (interface{}, error)
}

type Router struct {
	procedures map[string]procedure
}

func NewRouter() *Router {
	return &Router{procedures: map[string]procedure{}}
}

func Query[In, Out any](r *Router, name string, fn func(ctx context.Context, in In) (Out, error)) {
	r.add(name, KindQuery, bind(fn))
}

func Mutation[In, Out any](r *Router, name string, fn func(ctx context.Context, in In) (Out, error)) {
	r.add(name, KindMutation, bind(fn))
}

func (r *Router) add(name string, kind Kind, call func(ctx context.Context, raw []byte) (interface{}, error)) {
	if _, exists := r.procedures[name]; exists {
		panic("rpc: procedure " + name + " registered twice")
	}
	r.procedures[name] = procedure{kind: kind, call: call}
}

func bind[In, Out any](fn func(ctx context.Context, in In) (Out, error)) func(ctx context.Context, raw []byte) (interface{}, error) {
	return func(ctx context.Context, raw []byte) (interface{}, error) {
		in, err := decodeInput[In](raw)
		if err != nil {
			return nil, err
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Procedures lists the registered names and their kinds.
func (r *Router) Procedures() map[string]Kind {
	out := make(map[string]Kind, len(r.procedures))
	for name, p := range r.procedures {
		out[name] = p.kind
	}
	return out
}

func (r *Router) Register(group *server.ControllerGroup) {
	group.GET("/:procedure", r.handle)
	group.POST("/:procedure", r.handle)
}

func (r *Router) handle(c *gin.Context) {
	name := c.Param("procedure")
	proc, ok := r.procedures[name]
	if !ok {
		writeError(c, name, server.ErrNotFound.New("No procedure found on path \""+name+"\""))
		return
	}

	var raw []byte
	switch {
	case c.Request.Method == http.MethodPost:
		body, err := c.GetRawData()
		if err != nil {
			writeError(c, name, server.ErrBadRequest.New("Could not read request body"))
			return
		}
		raw = body
	case proc.kind == KindQuery:
		raw = []byte(c.Query("input"))
	default:
		writeError(c, name, server.ErrMethod.New("Unsupported GET-request to mutation procedure at path \""+name+"\""))
		return
	}

	data, err := proc.call(c.Request.Context(), raw)
	if err != nil {
		writeError(c, name, toApiError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": gin.H{"data": data}})
}

func toApiError(err error) server.ApiError {
	var apiErr server.ApiError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var input *inputError
	if errors.As(err, &input) {
		return server.ErrBadRequest.New(input.Error())
	}
	return server.FromError(err, "Internal server error")
}

func writeError(c *gin.Context, path string, apiErr server.ApiError) {
	status := apiErr.StatusCode()
	data := gin.H{"httpStatus": status, "path": path}
	if len(apiErr.Fields) > 0 {
		data["fields"] = apiErr.Fields
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"code":    apiErr.ErrorCode,
			"message": apiErr.Message,
			"data":    data,
		},
	})
}

type inputError struct {
	err error
}

func (e *inputError) Error() string {
	return "Invalid input: " + e.err.Error()
}

func (e *inputError) Unwrap() error {
	return e.err
}

func decodeInput[In any](raw []byte) (In, error) {
	var in In
	if len(raw) == 0 || string(raw) == "null" {
		return in, nil
	}
	if err := binding.JSON.BindBody(raw, &in); err != nil {
		return in, &inputError{err: err}
	}
	return in, nil
}
