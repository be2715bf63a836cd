package repository

import (
	"context"

	"github.com/artemk/menulive/internal/domain"
	"gorm.io/gorm"
)

// MenuRepository handles restaurant, category, and dish data operations.
type MenuRepository struct {
	db *gorm.DB
}

// NewMenuRepository creates a new MenuRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *MenuRepository: repository instance bound to db.
func NewMenuRepository(db *gorm.DB) *MenuRepository {
	return &MenuRepository{db: db}
}

// GetRestaurantBySlug retrieves a restaurant by its public slug.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - slug: restaurant slug.
// Returns:
//   - *domain.Restaurant: restaurant record if found.
//   - error: non-nil if lookup fails.
func (r *MenuRepository) GetRestaurantBySlug(ctx context.Context, slug string) (*domain.Restaurant, error) {
	var restaurant domain.Restaurant
	if err := r.db.WithContext(ctx).First(&restaurant, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &restaurant, nil
}

// GetRestaurantByID retrieves a restaurant by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: restaurant ID.
// Returns:
//   - *domain.Restaurant: restaurant record if found.
//   - error: non-nil if lookup fails.
func (r *MenuRepository) GetRestaurantByID(ctx context.Context, id string) (*domain.Restaurant, error) {
	var restaurant domain.Restaurant
	if err := r.db.WithContext(ctx).First(&restaurant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &restaurant, nil
}

// GetCategoriesByRestaurant retrieves all categories of a restaurant ordered by position.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - restaurantID: owning restaurant ID.
// Returns:
//   - []domain.Category: matching category records.
//   - error: non-nil if the query fails.
func (r *MenuRepository) GetCategoriesByRestaurant(ctx context.Context, restaurantID string) ([]domain.Category, error) {
	var categories []domain.Category
	if err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("position ASC").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// GetDishesByCategory retrieves all dishes of a category ordered by position.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - categoryID: owning category ID.
// Returns:
//   - []domain.Dish: matching dish records.
//   - error: non-nil if the query fails.
func (r *MenuRepository) GetDishesByCategory(ctx context.Context, categoryID string) ([]domain.Dish, error) {
	var dishes []domain.Dish
	if err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("position ASC").
		Find(&dishes).Error; err != nil {
		return nil, err
	}
	return dishes, nil
}

// GetDishByID retrieves a dish by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: dish ID.
// Returns:
//   - *domain.Dish: dish record if found.
//   - error: non-nil if lookup fails.
func (r *MenuRepository) GetDishByID(ctx context.Context, id string) (*domain.Dish, error) {
	var dish domain.Dish
	if err := r.db.WithContext(ctx).First(&dish, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &dish, nil
}

// GetCategoryByID retrieves a category by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: category ID.
// Returns:
//   - *domain.Category: category record if found.
//   - error: non-nil if lookup fails.
func (r *MenuRepository) GetCategoryByID(ctx context.Context, id string) (*domain.Category, error) {
	var category domain.Category
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateDish inserts a new dish record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - dish: dish record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *MenuRepository) CreateDish(ctx context.Context, dish *domain.Dish) error {
	return r.db.WithContext(ctx).Create(dish).Error
}

// UpdateDish updates an existing dish record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - dish: dish record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *MenuRepository) UpdateDish(ctx context.Context, dish *domain.Dish) error {
	return r.db.WithContext(ctx).Save(dish).Error
}

// DeleteDish removes a dish by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: dish ID to delete.
// Returns:
//   - error: non-nil if the delete fails.
func (r *MenuRepository) DeleteDish(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.Dish{}, "id = ?", id).Error
}

// UpdateCategoryTranslations atomically replaces the translation map of a category.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: category ID.
//   - translations: full translation map to store.
// Returns:
//   - error: non-nil if the update fails.
func (r *MenuRepository) UpdateCategoryTranslations(ctx context.Context, id string, translations domain.TranslationMap) error {
	return r.db.WithContext(ctx).
		Model(&domain.Category{}).
		Where("id = ?", id).
		Update("translations", translations).Error
}

// UpdateDishTranslations atomically replaces the translation map of a dish.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: dish ID.
//   - translations: full translation map to store.
// Returns:
//   - error: non-nil if the update fails.
func (r *MenuRepository) UpdateDishTranslations(ctx context.Context, id string, translations domain.TranslationMap) error {
	return r.db.WithContext(ctx).
		Model(&domain.Dish{}).
		Where("id = ?", id).
		Update("translations", translations).Error
}
