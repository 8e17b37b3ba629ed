package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yourorg/guest-provisioner/internal/models"
	"github.com/yourorg/guest-provisioner/internal/types"
)

type WorkflowHandler struct {
	db             *gorm.DB
	temporalClient client.Client
	taskQueue      string
	defaults       types.RunParams
}

func NewWorkflowHandler(db *gorm.DB, temporalClient client.Client, taskQueue string, defaults types.RunParams) *WorkflowHandler {
	return &WorkflowHandler{
		db:             db,
		temporalClient: temporalClient,
		taskQueue:      taskQueue,
		defaults:       defaults,
	}
}

type StartRunRequest struct {
	RequestedBy        string `json:"requested_by" binding:"required"`
	CutSize            int    `json:"cut_size" binding:"required"`
	BatchSize          int    `json:"batch_size"`
	WorkersPerOperator int    `json:"workers_per_operator"`
	TimeoutSeconds     int    `json:"timeout_seconds"`
	DedupePool         bool   `json:"dedupe_pool"`
	KeepScratch        bool   `json:"keep_scratch"`
}

type StartRunResponse struct {
	ID         uint   `json:"id"`
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// apply merges the request's knobs over the server-side defaults.
func (r StartRunRequest) apply(defaults types.RunParams) types.RunParams {
	p := defaults
	p.CutSize = r.CutSize
	if r.BatchSize > 0 {
		p.BatchSize = r.BatchSize
	}
	if r.WorkersPerOperator > 0 {
		p.WorkersPerOperator = r.WorkersPerOperator
	}
	if r.TimeoutSeconds > 0 {
		p.TimeoutSeconds = r.TimeoutSeconds
	}
	p.DedupePool = r.DedupePool
	p.KeepScratch = r.KeepScratch
	return p
}

// StartProvisionWorkflow starts a new Temporal workflow for one provisioning run.
// File URIs and ledger paths come from server configuration; the request only
// carries the knobs a caller is allowed to turn.
func (h *WorkflowHandler) StartProvisionWorkflow(c *gin.Context) {
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

	options := client.StartWorkflowOptions{
		TaskQueue: h.taskQueue,
	}

	workflowRun, err := h.temporalClient.ExecuteWorkflow(
		c.Request.Context(),
		options,
		"ProvisionWorkflow", // Must match the registered workflow name
		params,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start workflow: " + err.Error()})
		return
	}

	run := models.ProvisionRun{
		WorkflowID:         workflowRun.GetID(),
		RunID:              workflowRun.GetRunID(),
		RequestedBy:        req.RequestedBy,
		Status:             "RUNNING",
		CutSize:            params.CutSize,
		BatchSize:          params.BatchSize,
		WorkersPerOperator: params.WorkersPerOperator,
	}
	if err := h.db.Create(&run).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, StartRunResponse{
		ID:         run.ID,
		WorkflowID: run.WorkflowID,
		RunID:      run.RunID,
	})
}

// GetWorkflowStatus gets the status of a workflow execution
func (h *WorkflowHandler) GetWorkflowStatus(c *gin.Context) {
	workflowID := c.Param("id")
	if workflowID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Workflow ID is required"})
		return
	}

	workflowRun := h.temporalClient.GetWorkflow(c.Request.Context(), workflowID, "")

	// The result is only available once the workflow completes.
	var result types.RunSummary
	err := workflowRun.Get(c.Request.Context(), &result)

	if err != nil {
		// Workflow is still running or failed
		describe, descErr := h.temporalClient.DescribeWorkflowExecution(
			c.Request.Context(),
			workflowID,
			"",
		)
		if descErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to describe workflow: " + descErr.Error()})
			return
		}

		status := describe.WorkflowExecutionInfo.Status.String()
		c.JSON(http.StatusOK, gin.H{
			"workflow_id": workflowID,
			"status":      status,
			"start_time":  describe.WorkflowExecutionInfo.StartTime,
		})
		return
	}

	// Record the outcome on the bookkeeping row while we have it.
	h.db.Model(&models.ProvisionRun{}).
		Where("workflow_id = ?", workflowID).
		Updates(map[string]interface{}{
			"status":        "COMPLETED",
			"operators":     len(result.Operators),
			"total_created": result.TotalCreated,
		})

	c.JSON(http.StatusOK, gin.H{
		"workflow_id": workflowID,
		"status":      "COMPLETED",
		"result":      result,
	})
}
