package endpoints

import (
	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/premiere/internal/http/api"
	"github.com/Nixie-Tech-LLC/premiere/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
	"github.com/Nixie-Tech-LLC/premiere/internal/scheduling"
)

type TemplateController struct {
	svc *scheduling.Service
}

func TemplateModule(svc *scheduling.Service) api.Module {
	ctl := &TemplateController{svc: svc}
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/schedule-templates", ctl.listTemplates)
		c.POST("/schedule-templates", ctl.createTemplate)
		c.GET("/schedule-templates/:id", ctl.getTemplate)
		c.DELETE("/schedule-templates/:id", ctl.deleteTemplate)
		c.POST("/schedule-templates/:id/apply", ctl.applyTemplate)
	})
}

func (t *TemplateController) listTemplates(ctx *gin.Context, user *model.User) (any, *api.Error) {
	list, err := t.svc.ListTemplates(ctx.Request.Context())
	if err != nil {
		return nil, api.FromError(err)
	}
	out := make([]packets.TemplateResponse, 0, len(list))
	for _, tpl := range list {
		out = append(out, packets.NewTemplateResponse(tpl))
	}
	return out, nil
}

func (t *TemplateController) createTemplate(ctx *gin.Context, user *model.User) (any, *api.Error) {
	var request packets.CreateTemplateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	params := scheduling.TemplateParams{
		Name:                request.Name,
		Description:         request.Description,
		PublishStrategy:     model.PublishStrategy(request.PublishStrategy),
		Priority:            request.Priority,
		Recurrence:          model.Recurrence(request.Recurrence),
		NotifySubscribers:   request.NotifySubscribers,
		NotifyBeforeMinutes: request.NotifyBeforeMinutes,
	}
	for _, ct := range request.ContentTypes {
		params.ContentTypes = append(params.ContentTypes, model.ContentType(ct))
	}
	if request.RecurrenceConfig != nil {
		params.RecurrenceConfig = *request.RecurrenceConfig
	}

	tpl, err := t.svc.CreateTemplate(ctx.Request.Context(), params, &user.ID)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.NewTemplateResponse(*tpl), nil
}

func (t *TemplateController) getTemplate(ctx *gin.Context, user *model.User) (any, *api.Error) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	tpl, err := t.svc.GetTemplate(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.NewTemplateResponse(*tpl), nil
}

func (t *TemplateController) deleteTemplate(ctx *gin.Context, user *model.User) (any, *api.Error) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	if err := t.svc.DeleteTemplate(ctx.Request.Context(), id); err != nil {
		return nil, api.FromError(err)
	}
	return gin.H{"deleted": id}, nil
}

func (t *TemplateController) applyTemplate(ctx *gin.Context, user *model.User) (any, *api.Error) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.ApplyTemplateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	sc, err := t.svc.ApplyTemplate(ctx.Request.Context(), id, scheduling.ApplyParams{
		ContentType:   model.ContentType(request.ContentType),
		ContentID:     request.ContentID,
		ScheduledTime: request.ScheduledTime,
		Title:         request.Title,
		Description:   request.Description,
		Force:         request.Force,
	}, &user.ID)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.NewScheduleResponse(*sc), nil
}
