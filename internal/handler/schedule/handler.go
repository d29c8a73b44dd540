package schedule

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medtime/medtime-api/internal/model"
	scheduleService "github.com/medtime/medtime-api/internal/service/schedule"
	"github.com/medtime/medtime-api/pkg/errors"
	"github.com/medtime/medtime-api/pkg/httputil"
)

type Handler struct {
	service *scheduleService.Service
}

func NewHandler(service *scheduleService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetSchedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid schedule ID", err))
		return
	}

	entry, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, entry)
}

func (h *Handler) ListSchedules(c *gin.Context) {
	medicationID, err := uuid.Parse(c.Query("medication_id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid medication ID", err))
		return
	}
	filters := &model.ScheduleFilters{MedicationID: medicationID}
	if err := c.ShouldBindQuery(&filters.Pagination); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid pagination", err))
		return
	}
	if raw := c.Query("status"); raw != "" {
		filters.Status = model.ScheduleStatus(raw)
	}
	if raw := c.Query("due_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid due_before timestamp", err))
			return
		}
		filters.DueBefore = t
	}
	if raw := c.Query("due_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid due_after timestamp", err))
			return
		}
		filters.DueAfter = t
	}

	entries, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, entries)
}

// GetOpenEntry returns the single open scheduled entry for a medication.
func (h *Handler) GetOpenEntry(c *gin.Context) {
	medicationID, err := uuid.Parse(c.Param("medicationId"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid medication ID", err))
		return
	}

	entry, err := h.service.OpenEntry(c.Request.Context(), medicationID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, entry)
}

func (h *Handler) MarkMissed(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid schedule ID", err))
		return
	}

	missed, err := h.service.MarkMissed(c.Request.Context(), id, time.Now())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	entry, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"missed": missed, "schedule": entry})
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	schedules := r.Group("/schedules")
	{
		schedules.GET("", h.ListSchedules)
		schedules.GET("/:id", h.GetSchedule)
		schedules.POST("/:id/miss", h.MarkMissed)
		schedules.GET("/open/:medicationId", h.GetOpenEntry)
	}
}
