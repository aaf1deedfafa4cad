package endpoints

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/executor"
	"github.com/Nixie-Tech-LLC/premiere/internal/http/api"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

// Sweeper runs one batch pass over due schedules.
type Sweeper interface {
	Sweep(ctx context.Context) (executor.Summary, error)
}

// SweepModule exposes a manual trigger for the batch executor.
func SweepModule(sweeper Sweeper) api.Module {
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/sweeps", func(ctx *gin.Context, user *model.User) (any, *api.Error) {
			log.Info().Int64("user_id", user.ID).Msg("manual sweep requested")
			sum, err := sweeper.Sweep(ctx.Request.Context())
			if err != nil {
				return nil, api.FromError(err)
			}
			return sum, nil
		})
	})
}
