package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yourorg/guest-provisioner/internal/ledger"
	"github.com/yourorg/guest-provisioner/internal/models"
)

type Handler struct {
	db          *gorm.DB
	successPath string
	failurePath string
}

func NewHandler(db *gorm.DB, successPath, failurePath string) *Handler {
	return &Handler{db: db, successPath: successPath, failurePath: failurePath}
}

func (h *Handler) GetRuns(c *gin.Context) {
	query := h.db.Model(&models.ProvisionRun{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if requestedBy := c.Query("requested_by"); requestedBy != "" {
		query = query.Where("requested_by ILIKE ?", "%"+requestedBy+"%")
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := (page - 1) * limit

	var total int64
	query.Count(&total)

	var runs []models.ProvisionRun
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&runs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs": runs,
		"pagination": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

func (h *Handler) GetRun(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return
	}

	var run models.ProvisionRun
	if err := h.db.First(&run, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *Handler) GetIntakes(c *gin.Context) {
	query := h.db.Model(&models.IntakeFile{})
	if kind := c.Query("kind"); kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var intakes []models.IntakeFile
	if err := query.Order("created_at desc").Find(&intakes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, intakes)
}

// GetLedgers returns the current content of the success and failure ledgers.
func (h *Handler) GetLedgers(c *gin.Context) {
	successes, failures, err := ledger.Read(h.successPath, h.failurePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"successes":     successes,
		"failures":      failures,
		"success_count": len(successes),
		"failure_count": len(failures),
	})
}
