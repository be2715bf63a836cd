package handler

import (
	"errors"
	"net/http"

	"github.com/artemk/menulive/internal/repository"
	"github.com/artemk/menulive/internal/service"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TranslateHandler handles bulk translation trigger and status endpoints.
type TranslateHandler struct {
	menuRepo *repository.MenuRepository
	bulk     *service.BulkTranslateService
}

// NewTranslateHandler creates a new translation handler.
// Parameters:
//   - menuRepo: menu repository instance.
//   - bulk: bulk translation engine.
// Returns:
//   - *TranslateHandler: initialized handler.
func NewTranslateHandler(menuRepo *repository.MenuRepository, bulk *service.BulkTranslateService) *TranslateHandler {
	return &TranslateHandler{menuRepo: menuRepo, bulk: bulk}
}

type startTranslationRequest struct {
	TargetLangs []string `json:"target_langs" binding:"required,min=1"`
}

// StartTranslation handles POST /api/v1/admin/restaurants/:slug/translate.
// Returns 202 with the job ID immediately; the job runs detached.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TranslateHandler) StartTranslation(c *gin.Context) {
	slug := c.Param("slug")

	var req startTranslationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	restaurant, err := h.menuRepo.GetRestaurantBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load restaurant: " + err.Error()})
		return
	}

	jobID, err := h.bulk.StartJob(c.Request.Context(), restaurant.ID, req.TargetLangs)
	if err != nil {
		if errors.Is(err, service.ErrJobAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start translation job: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// GetJobStatus handles GET /api/v1/translate/jobs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TranslateHandler) GetJobStatus(c *gin.Context) {
	job := h.bulk.GetProgress(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}
