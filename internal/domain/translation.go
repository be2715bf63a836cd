package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// FieldRole tags otherwise-identical source text when computing cache keys,
// so "Борщ" as a dish name and "борщ" as an ingredient are cached separately.
type FieldRole string

const (
	RoleDishName        FieldRole = "dish_name"
	RoleDishDescription FieldRole = "dish_description"
	RoleIngredient      FieldRole = "ingredient"
	RoleCategoryName    FieldRole = "category_name"
)

// FieldTranslations holds the translated fields of one entity for one language.
type FieldTranslations struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
}

// TranslationMap maps a target language code to the translated fields of an
// entity. Stored as a JSON text column.
type TranslationMap map[string]FieldTranslations

// Value implements the driver.Valuer interface for database serialization.
func (m TranslationMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (m *TranslationMap) Scan(value interface{}) error {
	if value == nil {
		*m = TranslationMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan TranslationMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// Has reports whether lang already carries at minimum a translated name.
// Parameters:
//   - lang: target language code.
// Returns:
//   - bool: true if a usable translation exists for lang.
func (m TranslationMap) Has(lang string) bool {
	t, ok := m[lang]
	return ok && t.Name != ""
}

// Merge copies translations from other into m without dropping languages
// already present. Existing languages win; a partial update never erases a
// previously translated language.
// Parameters:
//   - other: translations to merge in.
// Returns:
//   - TranslationMap: merged map (m if non-nil, otherwise a new map).
func (m TranslationMap) Merge(other TranslationMap) TranslationMap {
	if m == nil {
		m = TranslationMap{}
	}
	for lang, t := range other {
		if !m.Has(lang) {
			m[lang] = t
		}
	}
	return m
}

// TranslationCacheEntry is one row of the shared, content-addressed
// translation cache. (content_hash, target_lang, field_role) is the lookup
// key; rows are written once and never overwritten, so identical source text
// is translated at most once across all tenants.
type TranslationCacheEntry struct {
	ID             string    `gorm:"type:text;primaryKey" json:"id"`
	ContentHash    string    `gorm:"type:text;not null;uniqueIndex:idx_translation_cache_key" json:"content_hash"`
	TargetLang     string    `gorm:"type:text;not null;uniqueIndex:idx_translation_cache_key" json:"target_lang"`
	FieldRole      FieldRole `gorm:"type:text;not null;uniqueIndex:idx_translation_cache_key" json:"field_role"`
	SourceLang     string    `gorm:"type:text;not null" json:"source_lang"`
	SourceText     string    `gorm:"type:text;not null" json:"source_text"`
	TranslatedText string    `gorm:"type:text;not null" json:"translated_text"`
	UsageCount     int64     `gorm:"default:0" json:"usage_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for TranslationCacheEntry.
func (TranslationCacheEntry) TableName() string {
	return "translation_cache"
}
