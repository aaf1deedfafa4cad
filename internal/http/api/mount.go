package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/http/middleware"
)

// Module attaches a feature's endpoints to a Controller.
type Module interface {
	Mount(c *Controller)
}

// ModuleFunc lets you define a Module with a simple function.
type ModuleFunc func(c *Controller)

func (f ModuleFunc) Mount(c *Controller) { f(c) }

// GroupConfig describes one mounted route group. Every group is
// authenticated: SecretKey signs the admin JWTs.
type GroupConfig struct {
	Prefix     string
	SecretKey  string
	Middleware []gin.HandlerFunc // run before auth
}

// MountGroup mounts modules under cfg.Prefix behind the JWT middleware.
func MountGroup(parent *gin.RouterGroup, cfg GroupConfig, modules ...Module) (*gin.RouterGroup, error) {
	if cfg.SecretKey == "" {
		return nil, errors.Newf("mount %q: secret key is empty", cfg.Prefix)
	}

	grp := parent
	if cfg.Prefix != "" {
		grp = parent.Group(cfg.Prefix)
	}
	for _, mw := range cfg.Middleware {
		grp.Use(mw)
	}
	grp.Use(middleware.JWTMiddleware(cfg.SecretKey))

	controller := &Controller{Group: grp}
	for _, m := range modules {
		m.Mount(controller)
	}
	return grp, nil
}
