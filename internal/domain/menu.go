package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string representation of the slice.
//   - error: non-nil if marshaling fails.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Restaurant represents one tenant: a single owner's menu dataset.
// The slug doubles as the notification channel name for live viewers.
type Restaurant struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	Slug        string    `gorm:"type:text;not null;uniqueIndex:idx_restaurants_slug" json:"slug"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	DefaultLang string    `gorm:"type:text;default:ru" json:"default_lang"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Restaurant.
func (Restaurant) TableName() string {
	return "restaurants"
}

// Category represents a menu section belonging to one restaurant.
type Category struct {
	ID           string         `gorm:"type:text;primaryKey" json:"id"`
	RestaurantID string         `gorm:"type:text;not null;index:idx_categories_restaurant" json:"restaurant_id"`
	Name         string         `gorm:"type:text;not null" json:"name"`
	Position     int            `gorm:"default:0" json:"position"`
	Translations TranslationMap `gorm:"type:text" json:"translations"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string {
	return "categories"
}

// Dish represents a single menu item within a category.
// Price is stored in minor currency units.
type Dish struct {
	ID           string         `gorm:"type:text;primaryKey" json:"id"`
	CategoryID   string         `gorm:"type:text;not null;index:idx_dishes_category" json:"category_id"`
	Name         string         `gorm:"type:text;not null" json:"name"`
	Description  string         `gorm:"type:text" json:"description,omitempty"`
	Ingredients  StringArray    `gorm:"type:text" json:"ingredients"`
	Price        int64          `gorm:"default:0" json:"price"`
	Position     int            `gorm:"default:0" json:"position"`
	Available    bool           `gorm:"default:true" json:"available"`
	Translations TranslationMap `gorm:"type:text" json:"translations"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Dish.
func (Dish) TableName() string {
	return "dishes"
}
