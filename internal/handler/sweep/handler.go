package sweep

import (
	"github.com/gin-gonic/gin"

	"github.com/medtime/medtime-api/pkg/errors"
	"github.com/medtime/medtime-api/pkg/httputil"
	"github.com/medtime/medtime-api/pkg/worker"
)

type Handler struct {
	runner *worker.SweepRunner
}

func NewHandler(runner *worker.SweepRunner) *Handler {
	return &Handler{runner: runner}
}

// RunSweep triggers an immediate reconciliation sweep and reports its result.
func (h *Handler) RunSweep(c *gin.Context) {
	result, err := h.runner.TriggerNow(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, errors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/sweep/run", h.RunSweep)
}
