package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artemk/menulive/internal/domain"
	"github.com/artemk/menulive/internal/logger"
	"github.com/google/uuid"
)

// ErrJobAlreadyRunning indicates the restaurant already has a live bulk
// translation job; overlapping jobs for one tenant are rejected, not queued.
var ErrJobAlreadyRunning = errors.New("a translation job is already running for this restaurant")

// MenuStore is the persistence boundary the engine reads entities from and
// writes translations back to. Satisfied by repository.MenuRepository.
type MenuStore interface {
	GetRestaurantByID(ctx context.Context, id string) (*domain.Restaurant, error)
	GetCategoriesByRestaurant(ctx context.Context, restaurantID string) ([]domain.Category, error)
	GetDishesByCategory(ctx context.Context, categoryID string) ([]domain.Dish, error)
	GetCategoryByID(ctx context.Context, id string) (*domain.Category, error)
	GetDishByID(ctx context.Context, id string) (*domain.Dish, error)
	UpdateCategoryTranslations(ctx context.Context, id string, translations domain.TranslationMap) error
	UpdateDishTranslations(ctx context.Context, id string, translations domain.TranslationMap) error
}

// TranslationCache is the content-addressed cache consulted before any
// provider call. Satisfied by repository.TranslationCacheRepository.
// Failures degrade to misses/no-ops inside the implementation.
type TranslationCache interface {
	Lookup(ctx context.Context, contentHash, targetLang string, role domain.FieldRole) (string, bool)
	BatchLookup(ctx context.Context, contentHashes []string, targetLang string) map[string]string
	Store(ctx context.Context, entry *domain.TranslationCacheEntry) error
}

// TranslationProvider is the external translation dependency.
// Satisfied by TranslatorService.
type TranslationProvider interface {
	Translate(ctx context.Context, req *TranslateRequest) (map[string]domain.FieldTranslations, error)
	Configured() bool
}

// BulkTranslateService orchestrates translating every category and dish of
// one restaurant into a set of target languages. Each accepted job runs as a
// detached background goroutine that outlives the request which started it;
// callers poll progress through the JobStore. There is no cancellation API:
// once started a job runs to completion or terminal error.
type BulkTranslateService struct {
	menus     MenuStore
	cache     TranslationCache
	provider  TranslationProvider
	jobs      JobStore
	logger    *logger.Logger
	dishDelay time.Duration
	maxErrors int
}

// BulkTranslateConfig holds configuration for the bulk translation engine.
type BulkTranslateConfig struct {
	DishDelay time.Duration
	MaxErrors int
}

// NewBulkTranslateService creates a new bulk translation engine.
// Parameters:
//   - menus: persistence boundary for menu entities.
//   - cache: shared translation cache.
//   - provider: external translation provider.
//   - jobs: job record store.
//   - log: base logger.
//   - cfg: engine configuration.
// Returns:
//   - *BulkTranslateService: initialized engine.
func NewBulkTranslateService(
	menus MenuStore,
	cache TranslationCache,
	provider TranslationProvider,
	jobs JobStore,
	log *logger.Logger,
	cfg *BulkTranslateConfig,
) *BulkTranslateService {
	if log == nil {
		log = logger.GetDefault()
	}
	maxErrors := cfg.MaxErrors
	if maxErrors <= 0 {
		maxErrors = 50
	}
	return &BulkTranslateService{
		menus:     menus,
		cache:     cache,
		provider:  provider,
		jobs:      jobs,
		logger:    log,
		dishDelay: cfg.DishDelay,
		maxErrors: maxErrors,
	}
}

// StartJob accepts a bulk translation request and returns the job ID
// immediately; the translation itself runs detached. A missing provider key
// short-circuits the job to a terminal error without touching any entity.
// Parameters:
//   - ctx: request context, used only for the initial entity count.
//   - restaurantID: tenant whose menu is translated.
//   - targetLangs: target language codes.
// Returns:
//   - string: job ID for progress polling.
//   - error: ErrJobAlreadyRunning, or a failure counting entities.
func (s *BulkTranslateService) StartJob(ctx context.Context, restaurantID string, targetLangs []string) (string, error) {
	if len(targetLangs) == 0 {
		return "", fmt.Errorf("no target languages given")
	}

	// Reserve the tenant before touching the database. The check and the
	// record creation happen under the store's lock, so concurrent starts
	// cannot slip past each other while entities are being counted.
	job := &domain.TranslationJob{
		ID:           uuid.New().String(),
		RestaurantID: restaurantID,
		Status:       domain.JobStatusPending,
		StartedAt:    time.Now(),
	}
	if err := s.jobs.CreateIfIdle(job); err != nil {
		return "", err
	}

	restaurant, err := s.menus.GetRestaurantByID(ctx, restaurantID)
	if err != nil {
		err = fmt.Errorf("failed to load restaurant: %w", err)
		s.finishJob(job, err)
		return "", err
	}

	categories, err := s.menus.GetCategoriesByRestaurant(ctx, restaurantID)
	if err != nil {
		err = fmt.Errorf("failed to load categories: %w", err)
		s.finishJob(job, err)
		return "", err
	}
	var dishes []domain.Dish
	for _, category := range categories {
		ds, err := s.menus.GetDishesByCategory(ctx, category.ID)
		if err != nil {
			err = fmt.Errorf("failed to load dishes: %w", err)
			s.finishJob(job, err)
			return "", err
		}
		dishes = append(dishes, ds...)
	}

	job.Total = len(categories) + len(dishes)

	if !s.provider.Configured() {
		s.finishJob(job, ErrNoCredentials)
		return job.ID, nil
	}

	job.Status = domain.JobStatusInProgress
	s.jobs.Update(job)

	// Detach from the request: the job outlives the HTTP call that started it.
	jobCtx := logger.WithFields(context.Background(), logger.Fields{
		logger.FieldJobID:  job.ID,
		logger.FieldTenant: restaurant.Slug,
	})
	go s.run(jobCtx, job, restaurant, categories, dishes, targetLangs)

	return job.ID, nil
}

// GetProgress returns the most recent snapshot of a job, or nil when unknown.
func (s *BulkTranslateService) GetProgress(jobID string) *domain.TranslationJob {
	return s.jobs.Get(jobID)
}

// run executes one job. Categories are fully processed before any dish, so a
// dish that references a category's translated name has a consistent source.
func (s *BulkTranslateService) run(ctx context.Context, job *domain.TranslationJob, restaurant *domain.Restaurant, categories []domain.Category, dishes []domain.Dish, targetLangs []string) {
	start := time.Now()
	logger.CtxInfo(ctx, "Bulk translation started: total=%d, langs=%v", job.Total, targetLangs)

	for i := range categories {
		if err := s.translateCategory(ctx, &categories[i], restaurant.DefaultLang, targetLangs); err != nil {
			s.recordError(job, fmt.Sprintf("category %s (%s): %v", categories[i].Name, categories[i].ID, err))
		}
		job.Completed++
		s.jobs.Update(job)
	}

	for i := range dishes {
		if err := s.translateDish(ctx, &dishes[i], restaurant.DefaultLang, targetLangs); err != nil {
			s.recordError(job, fmt.Sprintf("dish %s (%s): %v", dishes[i].Name, dishes[i].ID, err))
		}
		job.Completed++
		s.jobs.Update(job)

		// Rate-limiting courtesy to the external provider
		if s.dishDelay > 0 && i < len(dishes)-1 {
			time.Sleep(s.dishDelay)
		}
	}

	s.finishJob(job, nil)

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldStatus:     string(job.Status),
		logger.FieldCount:      job.Completed,
	}).Info(ctx, "Bulk translation finished: errors=%d", len(job.Errors))
}

// translateCategory fills the missing target languages of one category name.
func (s *BulkTranslateService) translateCategory(ctx context.Context, category *domain.Category, sourceLang string, targetLangs []string) error {
	missing := missingLangs(category.Translations, targetLangs)
	if len(missing) == 0 {
		return nil
	}

	nameHash := HashContent(category.Name, domain.RoleCategoryName)
	fresh := domain.TranslationMap{}
	var needProvider []string

	for _, lang := range missing {
		if translated, ok := s.cache.Lookup(ctx, nameHash, lang, domain.RoleCategoryName); ok {
			fresh[lang] = domain.FieldTranslations{Name: translated}
		} else {
			needProvider = append(needProvider, lang)
		}
	}

	if len(needProvider) > 0 {
		results, err := s.provider.Translate(ctx, &TranslateRequest{
			Name:        category.Name,
			SourceLang:  sourceLang,
			TargetLangs: needProvider,
		})
		if err != nil {
			return err
		}
		for lang, ft := range results {
			if ft.Name == "" {
				continue
			}
			fresh[lang] = domain.FieldTranslations{Name: ft.Name}
			s.storeEntry(ctx, nameHash, category.Name, ft.Name, sourceLang, lang, domain.RoleCategoryName)
		}
	}

	if len(fresh) == 0 {
		return fmt.Errorf("provider returned no usable translations")
	}
	shortfall := missingFrom(fresh, needProvider)

	// Re-check the live entity before merging: if the source text changed
	// while we were translating, drop this snapshot's result.
	live, err := s.menus.GetCategoryByID(ctx, category.ID)
	if err != nil {
		return fmt.Errorf("failed to re-read category before write-back: %w", err)
	}
	if HashContent(live.Name, domain.RoleCategoryName) != nameHash {
		return fmt.Errorf("source text changed during translation, result discarded")
	}

	merged := live.Translations.Merge(fresh)
	if err := s.menus.UpdateCategoryTranslations(ctx, category.ID, merged); err != nil {
		return fmt.Errorf("failed to persist translations: %w", err)
	}
	category.Translations = merged

	// The languages that did land are persisted; the shortfall is still an
	// error so job status reports the partial coverage.
	if len(shortfall) > 0 {
		return fmt.Errorf("provider returned no translation for languages %v", shortfall)
	}
	return nil
}

// translateDish fills the missing target languages of one dish, consulting
// the cache per field role and calling the provider only for languages with
// at least one uncached field.
func (s *BulkTranslateService) translateDish(ctx context.Context, dish *domain.Dish, sourceLang string, targetLangs []string) error {
	missing := missingLangs(dish.Translations, targetLangs)
	if len(missing) == 0 {
		return nil
	}

	nameHash := HashContent(dish.Name, domain.RoleDishName)
	descHash := ""
	if dish.Description != "" {
		descHash = HashContent(dish.Description, domain.RoleDishDescription)
	}
	ingredientHashes := make([]string, len(dish.Ingredients))
	for i, ing := range dish.Ingredients {
		ingredientHashes[i] = HashContent(ing, domain.RoleIngredient)
	}

	fresh := domain.TranslationMap{}
	var needProvider []string

	for _, lang := range missing {
		hashes := append([]string{nameHash}, ingredientHashes...)
		if descHash != "" {
			hashes = append(hashes, descHash)
		}
		cached := s.cache.BatchLookup(ctx, hashes, lang)

		ft, complete := assembleFromCache(dish, cached, nameHash, descHash, ingredientHashes)
		if complete {
			fresh[lang] = ft
		} else {
			needProvider = append(needProvider, lang)
		}
	}

	if len(needProvider) > 0 {
		results, err := s.provider.Translate(ctx, &TranslateRequest{
			Name:        dish.Name,
			Description: dish.Description,
			Ingredients: dish.Ingredients,
			SourceLang:  sourceLang,
			TargetLangs: needProvider,
		})
		if err != nil {
			return err
		}
		for lang, ft := range results {
			if ft.Name == "" {
				continue
			}
			fresh[lang] = ft
			s.storeEntry(ctx, nameHash, dish.Name, ft.Name, sourceLang, lang, domain.RoleDishName)
			if descHash != "" && ft.Description != "" {
				s.storeEntry(ctx, descHash, dish.Description, ft.Description, sourceLang, lang, domain.RoleDishDescription)
			}
			if len(ft.Ingredients) == len(dish.Ingredients) {
				for i, translated := range ft.Ingredients {
					s.storeEntry(ctx, ingredientHashes[i], dish.Ingredients[i], translated, sourceLang, lang, domain.RoleIngredient)
				}
			}
		}
	}

	if len(fresh) == 0 {
		return fmt.Errorf("provider returned no usable translations")
	}
	shortfall := missingFrom(fresh, needProvider)

	live, err := s.menus.GetDishByID(ctx, dish.ID)
	if err != nil {
		return fmt.Errorf("failed to re-read dish before write-back: %w", err)
	}
	if HashContent(live.Name, domain.RoleDishName) != nameHash {
		return fmt.Errorf("source text changed during translation, result discarded")
	}

	merged := live.Translations.Merge(fresh)
	if err := s.menus.UpdateDishTranslations(ctx, dish.ID, merged); err != nil {
		return fmt.Errorf("failed to persist translations: %w", err)
	}
	dish.Translations = merged

	if len(shortfall) > 0 {
		return fmt.Errorf("provider returned no translation for languages %v", shortfall)
	}
	return nil
}

// storeEntry writes one cache row; a failed store is logged and absorbed,
// the cache never gates correctness.
func (s *BulkTranslateService) storeEntry(ctx context.Context, hash, sourceText, translatedText, sourceLang, targetLang string, role domain.FieldRole) {
	if translatedText == "" {
		return
	}
	err := s.cache.Store(ctx, &domain.TranslationCacheEntry{
		ContentHash:    hash,
		SourceLang:     sourceLang,
		TargetLang:     targetLang,
		SourceText:     sourceText,
		TranslatedText: translatedText,
		FieldRole:      role,
	})
	if err != nil {
		logger.CtxWarn(ctx, "Failed to store translation cache entry: %v", err)
	}
}

// recordError appends a per-entity failure to the job, capped; overflow is
// folded into a summary entry.
func (s *BulkTranslateService) recordError(job *domain.TranslationJob, msg string) {
	if len(job.Errors) < s.maxErrors {
		job.Errors = append(job.Errors, msg)
		return
	}
	summary := fmt.Sprintf("and further errors suppressed (cap %d reached)", s.maxErrors)
	if job.Errors[len(job.Errors)-1] != summary {
		job.Errors = append(job.Errors, summary)
	}
}

// finishJob moves the job to its terminal state and records completion time.
func (s *BulkTranslateService) finishJob(job *domain.TranslationJob, fatal error) {
	now := time.Now()
	job.CompletedAt = &now
	if fatal != nil {
		job.Status = domain.JobStatusError
		job.Errors = append(job.Errors, fatal.Error())
	} else {
		job.Status = domain.JobStatusCompleted
	}
	s.jobs.Update(job)
}

// missingLangs returns the target languages the entity's translation map does
// not yet cover. Already-translated languages are skipped entirely so
// idempotent re-runs do no redundant work.
func missingLangs(translations domain.TranslationMap, targetLangs []string) []string {
	var missing []string
	for _, lang := range targetLangs {
		if !translations.Has(lang) {
			missing = append(missing, lang)
		}
	}
	return missing
}

// missingFrom returns the requested languages the provider's answer did not
// cover with a usable translation.
func missingFrom(fresh domain.TranslationMap, requested []string) []string {
	var missing []string
	for _, lang := range requested {
		if _, ok := fresh[lang]; !ok {
			missing = append(missing, lang)
		}
	}
	return missing
}

// assembleFromCache builds one language's translations purely from cache
// hits. Returns false when any required field is uncached.
func assembleFromCache(dish *domain.Dish, cached map[string]string, nameHash, descHash string, ingredientHashes []string) (domain.FieldTranslations, bool) {
	ft := domain.FieldTranslations{}

	name, ok := cached[nameHash]
	if !ok {
		return ft, false
	}
	ft.Name = name

	if descHash != "" {
		desc, ok := cached[descHash]
		if !ok {
			return ft, false
		}
		ft.Description = desc
	}

	if len(ingredientHashes) > 0 {
		ingredients := make([]string, len(ingredientHashes))
		for i, hash := range ingredientHashes {
			ing, ok := cached[hash]
			if !ok {
				return ft, false
			}
			ingredients[i] = ing
		}
		ft.Ingredients = ingredients
	}

	return ft, true
}
