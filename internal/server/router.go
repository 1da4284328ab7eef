package server

import (
	"fmt"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

type Controller interface {
	Register(group *ControllerGroup)
}

type ControllerGroup struct {
	group  *gin.RouterGroup
	server *Server
}

func (s *Server) Group(path string, middleware ...gin.HandlerFunc) *ControllerGroup {
	return &ControllerGroup{
		group:  s.engine.Group(s.basePath+path, middleware...),
		server: s,
	}
}

// RootGroup is like Group but ignores the base path.
func (s *Server) RootGroup(path string, middleware ...gin.HandlerFunc) *ControllerGroup {
	return &ControllerGroup{
		group:  s.engine.Group(path, middleware...),
		server: s,
	}
}

func (s *Server) RegisterController(path string, controller Controller, middleware ...gin.HandlerFunc) {
	controller.Register(s.Group(path, middleware...))
}

func (g *ControllerGroup) Group(path string, middleware ...gin.HandlerFunc) *ControllerGroup {
	return &ControllerGroup{
		group:  g.group.Group(path, middleware...),
		server: g.server,
	}
}

func (g *ControllerGroup) Use(middleware ...gin.HandlerFunc) {
	g.group.Use(middleware...)
}

func (g *ControllerGroup) GET(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodGet, path, handler, middleware)
}

func (g *ControllerGroup) POST(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodPost, path, handler, middleware)
}

func (g *ControllerGroup) PUT(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodPut, path, handler, middleware)
}

func (g *ControllerGroup) DELETE(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodDelete, path, handler, middleware)
}

func (g *ControllerGroup) PATCH(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodPatch, path, handler, middleware)
}

func (g *ControllerGroup) HEAD(path string, handler interface{}, middleware ...gin.HandlerFunc) {
	g.handle(http.MethodHead, path, handler, middleware)
}

func (g *ControllerGroup) handle(method, path string, handler interface{}, middleware []gin.HandlerFunc) {
	handlers := append(append([]gin.HandlerFunc{}, middleware...), wrapHandler(handler))
	g.group.Handle(method, path, handlers...)
}

var (
	contextType = reflect.TypeOf(&Context{})
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// wrapHandler adapts any of the supported handler shapes to a gin.HandlerFunc:
//
//	func(*gin.Context)
//	func([*Context][, Req]) [(Resp, error) | error]
//
// Req is bound from the URI, the query string and the body. A string Resp is
// written as text, anything else as JSON.
func wrapHandler(handler interface{}) gin.HandlerFunc {
	switch h := handler.(type) {
	case gin.HandlerFunc:
		return h
	case func(*gin.Context):
		return h
	}

	v := reflect.ValueOf(handler)
	t := v.Type()
	if t.Kind() != reflect.Func {
		panic(fmt.Sprintf("handler must be a function, got %s", t))
	}
	if t.NumOut() > 2 || (t.NumOut() > 0 && !t.Out(t.NumOut()-1).Implements(errorType)) {
		panic(fmt.Sprintf("handler %s must return ([Resp,] error) or nothing", t))
	}

	return func(c *gin.Context) {
		ctx := NewContext(c)

		args := make([]reflect.Value, 0, t.NumIn())
		for i := 0; i < t.NumIn(); i++ {
			in := t.In(i)
			if in == contextType {
				args = append(args, reflect.ValueOf(ctx))
				continue
			}
			req, err := bindRequest(c, in)
			if err != nil {
				ctx.SendError(ErrBadRequest.New("Invalid request: " + err.Error()))
				return
			}
			args = append(args, req)
		}

		out := v.Call(args)
		if len(out) == 0 {
			return
		}
		if errVal := out[len(out)-1]; !errVal.IsNil() {
			ctx.SendError(errVal.Interface().(error))
			return
		}
		if len(out) == 2 {
			ctx.respond(out[0].Interface())
		}
	}
}

func bindRequest(c *gin.Context, in reflect.Type) (reflect.Value, error) {
	isPtr := in.Kind() == reflect.Ptr
	elem := in
	if isPtr {
		elem = in.Elem()
	}
	ptr := reflect.New(elem)

	// Path parameters are bound last so the query string or body cannot override them.
	if elem.Kind() == reflect.Struct {
		if c.Request.ContentLength != 0 || c.Request.Method == http.MethodGet {
			if err := c.ShouldBind(ptr.Interface()); err != nil {
				return reflect.Value{}, err
			}
		}
		if len(c.Params) > 0 {
			if err := c.ShouldBindUri(ptr.Interface()); err != nil {
				return reflect.Value{}, err
			}
		}
	}

	if isPtr {
		return ptr, nil
	}
	return ptr.Elem(), nil
}
