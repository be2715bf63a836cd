package repository

import (
	"context"
	"errors"
	"time"

	"github.com/artemk/menulive/internal/domain"
	"github.com/artemk/menulive/internal/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TranslationCacheRepository handles the shared content-addressed translation
// cache. The cache is an optimization, never a correctness dependency: callers
// treat lookup errors as misses and store errors as no-ops.
type TranslationCacheRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewTranslationCacheRepository creates a new TranslationCacheRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//   - log: logger for absorbed cache failures.
// Returns:
//   - *TranslationCacheRepository: repository instance bound to db.
func NewTranslationCacheRepository(db *gorm.DB, log *logger.Logger) *TranslationCacheRepository {
	if log == nil {
		log = logger.GetDefault()
	}
	return &TranslationCacheRepository{db: db, log: log}
}

// Lookup retrieves a cached translation by content hash and target language.
// On a hit the usage counter is incremented in a detached goroutine; a lost
// increment under race or failure is acceptable, the counter is a popularity
// hint, not a correctness value.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - contentHash: hash of (field role + normalized source text).
//   - targetLang: target language code.
//   - role: field role of the source text.
// Returns:
//   - string: translated text on a hit.
//   - bool: true on a hit, false on a miss (including lookup errors).
func (r *TranslationCacheRepository) Lookup(ctx context.Context, contentHash, targetLang string, role domain.FieldRole) (string, bool) {
	var entry domain.TranslationCacheEntry
	err := r.db.WithContext(ctx).
		First(&entry, "content_hash = ? AND target_lang = ? AND field_role = ?", contentHash, targetLang, role).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.WithError(err).Warn("Translation cache lookup failed, treating as miss")
		}
		return "", false
	}

	go r.bumpUsage(entry.ID)

	return entry.TranslatedText, true
}

// Store inserts a translation cache entry, silently skipping when an entry
// with the same (content_hash, target_lang, field_role) key already exists.
// Never overwrites: a stale but valid translation is preferred over
// re-spending a translation call, and concurrent writers racing on the same
// key produce only a benign duplicate-skip.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entry: cache entry to insert; ID is assigned if empty.
// Returns:
//   - error: non-nil if the insert fails for a reason other than a key conflict.
func (r *TranslationCacheRepository) Store(ctx context.Context, entry *domain.TranslationCacheEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "content_hash"},
			{Name: "target_lang"},
			{Name: "field_role"},
		},
		DoNothing: true,
	}).Create(entry).Error
}

// BatchLookup retrieves cached translations for many content hashes in a
// single round trip. Absent hashes are simply omitted from the result; usage
// counters for all hits are bumped in one detached update.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - contentHashes: hashes to look up.
//   - targetLang: target language code.
// Returns:
//   - map[string]string: content hash to translated text for the subset found.
func (r *TranslationCacheRepository) BatchLookup(ctx context.Context, contentHashes []string, targetLang string) map[string]string {
	found := make(map[string]string)
	if len(contentHashes) == 0 {
		return found
	}

	var entries []domain.TranslationCacheEntry
	err := r.db.WithContext(ctx).
		Where("content_hash IN ? AND target_lang = ?", contentHashes, targetLang).
		Find(&entries).Error
	if err != nil {
		r.log.WithError(err).Warn("Translation cache batch lookup failed, treating as miss")
		return found
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		found[entry.ContentHash] = entry.TranslatedText
		ids = append(ids, entry.ID)
	}

	if len(ids) > 0 {
		go r.bumpUsageMany(ids)
	}

	return found
}

// bumpUsage increments the usage counter of one entry outside the request path.
func (r *TranslationCacheRepository) bumpUsage(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.db.WithContext(ctx).
		Model(&domain.TranslationCacheEntry{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
		r.log.WithError(err).Debug("Failed to increment translation cache usage counter")
	}
}

// bumpUsageMany increments the usage counters of many entries in one statement.
func (r *TranslationCacheRepository) bumpUsageMany(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.db.WithContext(ctx).
		Model(&domain.TranslationCacheEntry{}).
		Where("id IN ?", ids).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
		r.log.WithError(err).Debug("Failed to increment translation cache usage counters")
	}
}
