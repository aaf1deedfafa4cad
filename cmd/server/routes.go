package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/premiere/internal/http/api"
	adminapi "github.com/Nixie-Tech-LLC/premiere/internal/http/api/admin/control/endpoints"
	"github.com/Nixie-Tech-LLC/premiere/internal/scheduling"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, secret string, svc *scheduling.Service, sweeper adminapi.Sweeper, health func() error) error {
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PATCH",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	r.GET("/healthz", api.ResolveEndpoint(func(ctx *gin.Context) (any, *api.Error) {
		if err := health(); err != nil {
			return nil, api.FromError(err)
		}
		return gin.H{"status": "ok"}, nil
	}))

	_, err := api.MountGroup(&r.RouterGroup, api.GroupConfig{
		Prefix:    "/api/admin",
		SecretKey: secret,
	},
		adminapi.ScheduleModule(svc),
		adminapi.TemplateModule(svc),
		adminapi.SweepModule(sweeper),
	)
	return err
}
