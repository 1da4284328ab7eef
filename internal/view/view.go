// Package view serves the single-page client.
package view

import (
	_ "embed"
	"net/http"

	"github.com/klass-lk/postboard/internal/server"
)

//go:embed index.html
var indexHTML []byte

type Controller struct{}

func NewController() *Controller {
	return &Controller{}
}

func (c *Controller) Register(group *server.ControllerGroup) {
	group.GET("/", c.Index)
}

func (c *Controller) Index(ctx *server.Context) {
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}
