package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

type Error struct {
	Code    int
	Message string
	Hint    string
}

type HandlerFuncWithAuth func(ctx *gin.Context, user *model.User) (any, *Error)
type HandlerFunc func(ctx *gin.Context) (any, *Error)

// BadRequest is returned for malformed input rejected before the service runs.
func BadRequest(msg string) *Error {
	return &Error{Code: http.StatusBadRequest, Message: msg}
}

// FromError maps the error classes to HTTP status codes. Unclassified
// errors are logged and hidden behind a generic 500.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	e := &Error{Message: err.Error(), Hint: errors.FlattenHints(err)}
	switch {
	case errors.Is(err, errors.ErrValidation):
		e.Code = http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		e.Code = http.StatusNotFound
	case errors.Is(err, errors.ErrConflict):
		e.Code = http.StatusConflict
	case errors.Is(err, errors.ErrTransient):
		log.Warn().Err(err).Msg("request failed on a transient error")
		e.Code = http.StatusServiceUnavailable
		e.Message = "temporarily unavailable, retry later"
		e.Hint = ""
	default:
		log.Error().Err(err).Msg("request failed")
		e.Code = http.StatusInternalServerError
		e.Message = "internal error"
		e.Hint = ""
	}
	return e
}

func (e *Error) body() gin.H {
	body := gin.H{"error": e.Message}
	if e.Hint != "" {
		body["hint"] = e.Hint
	}
	return body
}

func ResolveEndpointWithAuth(h HandlerFuncWithAuth) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.GetCurrentUser(ctx)
		if !ok {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		result, apiErr := h(ctx, user)
		if apiErr != nil {
			ctx.JSON(apiErr.Code, apiErr.body())
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		if apiErr != nil {
			ctx.JSON(apiErr.Code, apiErr.body())
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}

// Controller is the route group a Module mounts its endpoints on. Every
// route goes through ResolveEndpointWithAuth.
type Controller struct {
	Group *gin.RouterGroup
}

func (c *Controller) GET(path string, h HandlerFuncWithAuth) {
	c.Group.GET(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) POST(path string, h HandlerFuncWithAuth) {
	c.Group.POST(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) PATCH(path string, h HandlerFuncWithAuth) {
	c.Group.PATCH(path, ResolveEndpointWithAuth(h))
}

func (c *Controller) DELETE(path string, h HandlerFuncWithAuth) {
	c.Group.DELETE(path, ResolveEndpointWithAuth(h))
}
