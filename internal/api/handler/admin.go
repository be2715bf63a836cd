package handler

import (
	"errors"
	"net/http"

	"github.com/artemk/menulive/internal/cache"
	"github.com/artemk/menulive/internal/domain"
	"github.com/artemk/menulive/internal/repository"
	"github.com/artemk/menulive/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminHandler handles owner-facing mutation endpoints. Every successful
// write follows the same contract: persist, invalidate the tenant's cached
// reads, then broadcast the change to live viewers. Invalidation strictly
// precedes the broadcast so a viewer reacting to the push re-fetches fresh
// data.
type AdminHandler struct {
	menuRepo    *repository.MenuRepository
	invalidator *cache.Invalidator
	hub         *ws.Hub
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - menuRepo: menu repository instance.
//   - invalidator: response-cache invalidator.
//   - hub: notification fan-out hub.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(menuRepo *repository.MenuRepository, invalidator *cache.Invalidator, hub *ws.Hub) *AdminHandler {
	return &AdminHandler{
		menuRepo:    menuRepo,
		invalidator: invalidator,
		hub:         hub,
	}
}

type dishRequest struct {
	CategoryID  string   `json:"category_id" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Price       int64    `json:"price"`
	Position    int      `json:"position"`
	Available   *bool    `json:"available"`
}

// CreateDish handles POST /api/v1/admin/restaurants/:slug/dishes.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) CreateDish(c *gin.Context) {
	slug := c.Param("slug")

	var req dishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if _, err := h.menuRepo.GetRestaurantBySlug(c.Request.Context(), slug); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load restaurant: " + err.Error()})
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}
	dish := &domain.Dish{
		ID:          uuid.New().String(),
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Ingredients: req.Ingredients,
		Price:       req.Price,
		Position:    req.Position,
		Available:   available,
	}
	if err := h.menuRepo.CreateDish(c.Request.Context(), dish); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create dish: " + err.Error()})
		return
	}

	h.notifyChange(c, slug, domain.EventDishCreated, dish.ID, nil)

	c.JSON(http.StatusCreated, dish)
}

// UpdateDish handles PUT /api/v1/admin/restaurants/:slug/dishes/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) UpdateDish(c *gin.Context) {
	slug := c.Param("slug")
	id := c.Param("id")

	var req dishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	dish, err := h.menuRepo.GetDishByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dish not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dish: " + err.Error()})
		return
	}

	changed := changedFields(dish, &req)
	dish.CategoryID = req.CategoryID
	dish.Name = req.Name
	dish.Description = req.Description
	dish.Ingredients = req.Ingredients
	dish.Price = req.Price
	dish.Position = req.Position
	if req.Available != nil {
		dish.Available = *req.Available
	}

	if err := h.menuRepo.UpdateDish(c.Request.Context(), dish); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update dish: " + err.Error()})
		return
	}

	h.notifyChange(c, slug, domain.EventDishUpdated, dish.ID, changed)

	c.JSON(http.StatusOK, dish)
}

// DeleteDish handles DELETE /api/v1/admin/restaurants/:slug/dishes/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) DeleteDish(c *gin.Context) {
	slug := c.Param("slug")
	id := c.Param("id")

	if err := h.menuRepo.DeleteDish(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete dish: " + err.Error()})
		return
	}

	h.notifyChange(c, slug, domain.EventDishDeleted, id, nil)

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// notifyChange runs the post-write contract: invalidate first, broadcast
// second. The ordering is a hard requirement, not advisory.
func (h *AdminHandler) notifyChange(c *gin.Context, slug string, eventType domain.EventType, entityID string, changed []string) {
	h.invalidator.InvalidateTenant(c.Request.Context(), slug)
	h.hub.Broadcast(slug, domain.NewChangeEvent(eventType, slug, entityID, changed))
}

// changedFields names the mutated fields for the event payload.
func changedFields(dish *domain.Dish, req *dishRequest) []string {
	var changed []string
	if dish.Name != req.Name {
		changed = append(changed, "name")
	}
	if dish.Description != req.Description {
		changed = append(changed, "description")
	}
	if dish.Price != req.Price {
		changed = append(changed, "price")
	}
	if req.Available != nil && dish.Available != *req.Available {
		changed = append(changed, "available")
	}
	if dish.CategoryID != req.CategoryID {
		changed = append(changed, "category_id")
	}
	return changed
}
