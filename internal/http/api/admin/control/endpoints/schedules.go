package endpoints

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/premiere/internal/http/api"
	"github.com/Nixie-Tech-LLC/premiere/internal/http/api/admin/control/packets"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
	"github.com/Nixie-Tech-LLC/premiere/internal/scheduling"
)

type ScheduleController struct {
	svc *scheduling.Service
}

func NewScheduleController(svc *scheduling.Service) *ScheduleController {
	return &ScheduleController{svc: svc}
}

func ScheduleModule(svc *scheduling.Service) api.Module {
	ctl := NewScheduleController(svc)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/schedules", ctl.listSchedules)
		c.POST("/schedules", ctl.createSchedule)

		// static segments before :id
		c.GET("/schedules/due", ctl.dueSchedules)
		c.GET("/schedules/statistics", ctl.statistics)

		c.GET("/schedules/:id", ctl.getSchedule)
		c.PATCH("/schedules/:id", ctl.updateSchedule)
		c.POST("/schedules/:id/cancel", ctl.cancelSchedule)
		c.POST("/schedules/:id/execute", ctl.executeSchedule)
	})
}

func parseID(ctx *gin.Context, name string) (int64, *api.Error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, api.BadRequest("invalid " + name)
	}
	return id, nil
}

func (s *ScheduleController) listSchedules(ctx *gin.Context, user *model.User) (any, *api.Error) {
	var query packets.ListSchedulesQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	var filter model.ScheduleFilter
	if query.Status != "" {
		for _, raw := range strings.Split(query.Status, ",") {
			st, err := model.ParseStatus(raw)
			if err != nil {
				return nil, api.FromError(err)
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	if query.ContentType != "" {
		ct, err := model.ParseContentType(query.ContentType)
		if err != nil {
			return nil, api.FromError(err)
		}
		filter.ContentType = ct
	}
	filter.ContentID = query.ContentID

	list, total, err := s.svc.ListSchedules(ctx.Request.Context(), filter, query.Skip, query.Limit)
	if err != nil {
		return nil, api.FromError(err)
	}

	limit := query.Limit
	switch {
	case limit <= 0:
		limit = scheduling.DefaultListLimit
	case limit > scheduling.MaxListLimit:
		limit = scheduling.MaxListLimit
	}
	response := packets.ListSchedulesResponse{
		Items: packets.NewScheduleResponses(list),
		Total: total,
		Skip:  query.Skip,
		Limit: limit,
	}
	return response, nil
}

func (s *ScheduleController) createSchedule(ctx *gin.Context, user *model.User) (any, *api.Error) {
	var request packets.CreateScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	params := scheduling.CreateParams{
		ContentType:         model.ContentType(request.ContentType),
		ContentID:           request.ContentID,
		ScheduledTime:       request.ScheduledTime,
		Priority:            request.Priority,
		PublishStrategy:     model.PublishStrategy(request.PublishStrategy),
		Recurrence:          model.Recurrence(request.Recurrence),
		NotifySubscribers:   request.NotifySubscribers,
		NotifyBeforeMinutes: request.NotifyBeforeMinutes,
		Title:               request.Title,
		Description:         request.Description,
		Force:               request.Force,
	}
	if request.RecurrenceConfig != nil {
		params.RecurrenceConfig = *request.RecurrenceConfig
	}

	sc, err := s.svc.CreateSchedule(ctx.Request.Context(), params, &user.ID)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.NewScheduleResponse(*sc), nil
}

func (s *ScheduleController) getSchedule(ctx *gin.Context, user *model.User) (any, *api.Error) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	sc, err := s.svc.GetSchedule(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.NewScheduleResponse(*sc), nil
}

func (s *ScheduleController) updateSchedule(ctx *gin.Context, user *model.User) (any, *api.Error) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	var request packets.UpdateScheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err.Error())
	}

	update := model.ScheduleUpdate{
		ScheduledTime:       request.ScheduledTime,
		Priority:            request.Priority,
		RecurrenceConfig:    request.RecurrenceConfig,
		NotifySubscribers:   request.NotifySubscribers,
		NotifyBeforeMinutes: request.NotifyBeforeMinutes,
		Title:               request.Title,
		Description:         request.Description,
	}
	if request.PublishStrategy != nil {
		strategy := model.PublishStrategy(*request.PublishStrategy)
		update.PublishStrategy = &strategy
	}
	if request.Recurrence != nil {
		rec := model.Recurrence(*request.Recurrence)
		update.Recurrence = &rec
	}
	if update.Empty() {
		return nil, api.BadRequest("nothing to update")
	}

	sc, err := s.svc.UpdateSchedule(ctx.Request.Context(), id, scheduling.UpdateParams{ScheduleUpdate: update, Force: request.Force})
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.NewScheduleResponse(*sc), nil
}

func (s *ScheduleController) cancelSchedule(ctx *gin.Context, user *model.User) (any, *api.Error) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	sc, err := s.svc.CancelSchedule(ctx.Request.Context(), id)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.NewScheduleResponse(*sc), nil
}

// executeSchedule force-runs one schedule now. A schedule that already left
// PENDING answers 409; a failed publish answers 200 with success=false.
func (s *ScheduleController) executeSchedule(ctx *gin.Context, user *model.User) (any, *api.Error) {
	id, apiErr := parseID(ctx, "id")
	if apiErr != nil {
		return nil, apiErr
	}
	res, err := s.svc.ExecuteSchedule(ctx.Request.Context(), id, &user.ID, true)
	if err != nil {
		return nil, api.FromError(err)
	}
	if res.Outcome == scheduling.OutcomeAlreadyProcessed {
		return nil, &api.Error{Code: http.StatusConflict, Message: "schedule already processed"}
	}
	return res, nil
}

func (s *ScheduleController) dueSchedules(ctx *gin.Context, user *model.User) (any, *api.Error) {
	var query packets.DueSchedulesQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		return nil, api.BadRequest(err.Error())
	}
	limit := query.Limit
	if limit <= 0 || limit > scheduling.MaxListLimit {
		limit = scheduling.MaxListLimit
	}
	list, err := s.svc.GetDueSchedules(ctx.Request.Context(), limit)
	if err != nil {
		return nil, api.FromError(err)
	}
	return packets.NewScheduleResponses(list), nil
}

func (s *ScheduleController) statistics(ctx *gin.Context, user *model.User) (any, *api.Error) {
	st, err := s.svc.GetStatistics(ctx.Request.Context())
	if err != nil {
		return nil, api.FromError(err)
	}
	return st, nil
}
