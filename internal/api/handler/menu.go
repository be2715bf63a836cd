package handler

import (
	"errors"
	"net/http"

	"github.com/artemk/menulive/internal/domain"
	"github.com/artemk/menulive/internal/repository"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MenuHandler handles the public menu read endpoint.
type MenuHandler struct {
	menuRepo *repository.MenuRepository
}

// NewMenuHandler creates a new menu handler.
// Parameters:
//   - menuRepo: menu repository instance.
// Returns:
//   - *MenuHandler: initialized handler.
func NewMenuHandler(menuRepo *repository.MenuRepository) *MenuHandler {
	return &MenuHandler{menuRepo: menuRepo}
}

// menuSection is one category with its dishes in the public menu payload.
type menuSection struct {
	domain.Category
	Dishes []domain.Dish `json:"dishes"`
}

// GetMenu handles GET /api/v1/menus/:slug. This is the read the response
// cache sits in front of; viewers re-fetch it after a change push.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *MenuHandler) GetMenu(c *gin.Context) {
	slug := c.Param("slug")

	restaurant, err := h.menuRepo.GetRestaurantBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load restaurant: " + err.Error()})
		return
	}

	categories, err := h.menuRepo.GetCategoriesByRestaurant(c.Request.Context(), restaurant.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load categories: " + err.Error()})
		return
	}

	sections := make([]menuSection, 0, len(categories))
	for _, category := range categories {
		dishes, err := h.menuRepo.GetDishesByCategory(c.Request.Context(), category.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dishes: " + err.Error()})
			return
		}
		sections = append(sections, menuSection{Category: category, Dishes: dishes})
	}

	c.JSON(http.StatusOK, gin.H{
		"restaurant": restaurant,
		"categories": sections,
	})
}
