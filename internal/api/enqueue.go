package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/guest-provisioner/internal/db"
	"github.com/yourorg/guest-provisioner/internal/types"
)

// EnqueueHandler feeds the run journal polled by the standalone runner.
// Deployments without Temporal use this path instead of the workflow routes.
type EnqueueHandler struct {
	runs     db.RunRepository
	defaults types.RunParams
}

func NewEnqueueHandler(runs db.RunRepository, defaults types.RunParams) *EnqueueHandler {
	return &EnqueueHandler{runs: runs, defaults: defaults}
}

func (h *EnqueueHandler) EnqueueRun(c *gin.Context) {
	var req StartRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := req.apply(h.defaults)
	if err := params.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := checkIntakeResources(c.Request.Context(), params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.runs.Enqueue(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": run.ID, "status": run.Status})
}
