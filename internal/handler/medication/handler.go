package medication

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medtime/medtime-api/internal/model"
	medicationService "github.com/medtime/medtime-api/internal/service/medication"
	"github.com/medtime/medtime-api/pkg/errors"
	"github.com/medtime/medtime-api/pkg/httputil"
)

type Handler struct {
	service *medicationService.Service
}

func NewHandler(service *medicationService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateMedication(c *gin.Context) {
	var req model.CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	med, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, med)
}

func (h *Handler) GetMedication(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid medication ID", err))
		return
	}

	med, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, med)
}

func (h *Handler) GetMedicationState(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid medication ID", err))
		return
	}

	state, err := h.service.GetState(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, state)
}

func (h *Handler) ListMedications(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid user ID", err))
		return
	}

	meds, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, meds)
}

// TakeDose receives the dose-taken signal from the API consumer. The taken
// time defaults to now.
func (h *Handler) TakeDose(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid medication ID", err))
		return
	}

	var req model.TakeDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		httputil.RespondWithError(c, errors.BadRequest(err.Error(), err))
		return
	}

	takenAt := time.Now()
	if req.TakenAt != nil {
		takenAt = *req.TakenAt
	}

	entry, err := h.service.TakeDose(c.Request.Context(), id, takenAt)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, entry)
}

func (h *Handler) StopMedication(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid medication ID", err))
		return
	}

	if err := h.service.Stop(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"id": id, "status": model.MedicationStatusStopped})
}

func (h *Handler) DeleteMedication(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid medication ID", err))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"id": id, "status": model.MedicationStatusDeleted})
}

func (h *Handler) ListMissedDoses(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid medication ID", err))
		return
	}

	records, err := h.service.ListMissedDoses(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, records)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	medications := r.Group("/medications")
	{
		medications.POST("", h.CreateMedication)
		medications.GET("", h.ListMedications)
		medications.GET("/:id", h.GetMedication)
		medications.GET("/:id/state", h.GetMedicationState)
		medications.GET("/:id/missed-doses", h.ListMissedDoses)
		medications.POST("/:id/doses", h.TakeDose)
		medications.POST("/:id/stop", h.StopMedication)
		medications.DELETE("/:id", h.DeleteMedication)
	}
}
