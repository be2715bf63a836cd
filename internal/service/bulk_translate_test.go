package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artemk/menulive/internal/domain"
)

// fakeMenuStore is an in-memory MenuStore for engine tests. loadDelay
// simulates slow entity loading.
type fakeMenuStore struct {
	mu         sync.Mutex
	restaurant domain.Restaurant
	categories []domain.Category
	dishes     map[string][]*domain.Dish // by category ID
	loadDelay  time.Duration
}

func newFakeMenuStore(defaultLang string) *fakeMenuStore {
	return &fakeMenuStore{
		restaurant: domain.Restaurant{ID: "r1", Slug: "testaurant", Name: "Testaurant", DefaultLang: defaultLang},
		dishes:     make(map[string][]*domain.Dish),
	}
}

func (s *fakeMenuStore) addCategory(c domain.Category) {
	s.categories = append(s.categories, c)
}

func (s *fakeMenuStore) addDish(d *domain.Dish) {
	s.dishes[d.CategoryID] = append(s.dishes[d.CategoryID], d)
}

func (s *fakeMenuStore) GetRestaurantByID(_ context.Context, id string) (*domain.Restaurant, error) {
	if id != s.restaurant.ID {
		return nil, fmt.Errorf("restaurant %s not found", id)
	}
	r := s.restaurant
	return &r, nil
}

func (s *fakeMenuStore) GetCategoriesByRestaurant(_ context.Context, _ string) ([]domain.Category, error) {
	if s.loadDelay > 0 {
		time.Sleep(s.loadDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Category, len(s.categories))
	copy(out, s.categories)
	return out, nil
}

func (s *fakeMenuStore) GetDishesByCategory(_ context.Context, categoryID string) ([]domain.Dish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Dish
	for _, d := range s.dishes[categoryID] {
		out = append(out, *d)
	}
	return out, nil
}

func (s *fakeMenuStore) GetCategoryByID(_ context.Context, id string) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			c := s.categories[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("category %s not found", id)
}

func (s *fakeMenuStore) GetDishByID(_ context.Context, id string) (*domain.Dish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ds := range s.dishes {
		for _, d := range ds {
			if d.ID == id {
				c := *d
				return &c, nil
			}
		}
	}
	return nil, fmt.Errorf("dish %s not found", id)
}

func (s *fakeMenuStore) UpdateCategoryTranslations(_ context.Context, id string, translations domain.TranslationMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			s.categories[i].Translations = translations
			return nil
		}
	}
	return fmt.Errorf("category %s not found", id)
}

func (s *fakeMenuStore) UpdateDishTranslations(_ context.Context, id string, translations domain.TranslationMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ds := range s.dishes {
		for _, d := range ds {
			if d.ID == id {
				d.Translations = translations
				return nil
			}
		}
	}
	return fmt.Errorf("dish %s not found", id)
}

// fakeTranslationCache is an in-memory TranslationCache recording stores.
type fakeTranslationCache struct {
	mu      sync.Mutex
	entries map[string]*domain.TranslationCacheEntry // by hash|lang
}

func newFakeTranslationCache() *fakeTranslationCache {
	return &fakeTranslationCache{entries: make(map[string]*domain.TranslationCacheEntry)}
}

func cacheKey(hash, lang string) string { return hash + "|" + lang }

func (c *fakeTranslationCache) preload(hash, lang, translated string, role domain.FieldRole) {
	c.entries[cacheKey(hash, lang)] = &domain.TranslationCacheEntry{
		ContentHash:    hash,
		TargetLang:     lang,
		FieldRole:      role,
		TranslatedText: translated,
	}
}

func (c *fakeTranslationCache) Lookup(_ context.Context, contentHash, targetLang string, _ domain.FieldRole) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[cacheKey(contentHash, targetLang)]
	if !ok {
		return "", false
	}
	return entry.TranslatedText, true
}

func (c *fakeTranslationCache) BatchLookup(_ context.Context, contentHashes []string, targetLang string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	found := make(map[string]string)
	for _, hash := range contentHashes {
		if entry, ok := c.entries[cacheKey(hash, targetLang)]; ok {
			found[hash] = entry.TranslatedText
		}
	}
	return found
}

func (c *fakeTranslationCache) Store(_ context.Context, entry *domain.TranslationCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(entry.ContentHash, entry.TargetLang)
	if _, exists := c.entries[key]; exists {
		return nil
	}
	c.entries[key] = entry
	return nil
}

func (c *fakeTranslationCache) countByRole(role domain.FieldRole) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, entry := range c.entries {
		if entry.FieldRole == role {
			n++
		}
	}
	return n
}

// fakeProvider translates by suffixing the language code. It can be told to
// fail for specific source names or to silently skip target languages.
type fakeProvider struct {
	mu         sync.Mutex
	calls      int
	failNames  map[string]bool
	skipLangs  map[string]bool
	configured bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		failNames:  make(map[string]bool),
		skipLangs:  make(map[string]bool),
		configured: true,
	}
}

func (p *fakeProvider) Configured() bool { return p.configured }

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakeProvider) Translate(_ context.Context, req *TranslateRequest) (map[string]domain.FieldTranslations, error) {
	p.mu.Lock()
	p.calls++
	fail := p.failNames[req.Name]
	p.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("provider rejected %q", req.Name)
	}

	out := make(map[string]domain.FieldTranslations, len(req.TargetLangs))
	for _, lang := range req.TargetLangs {
		p.mu.Lock()
		skip := p.skipLangs[lang]
		p.mu.Unlock()
		if skip {
			continue
		}
		ft := domain.FieldTranslations{Name: req.Name + "-" + lang}
		if req.Description != "" {
			ft.Description = req.Description + "-" + lang
		}
		for _, ing := range req.Ingredients {
			ft.Ingredients = append(ft.Ingredients, ing+"-"+lang)
		}
		out[lang] = ft
	}
	return out, nil
}

func newTestEngine(menus *fakeMenuStore, cache *fakeTranslationCache, provider *fakeProvider) *BulkTranslateService {
	return NewBulkTranslateService(menus, cache, provider, NewMemoryJobStore(), nil, &BulkTranslateConfig{
		DishDelay: 0,
		MaxErrors: 50,
	})
}

// waitForJob polls progress until the job reaches a terminal state.
func waitForJob(t *testing.T, engine *BulkTranslateService, jobID string) *domain.TranslationJob {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job := engine.GetProgress(jobID)
		if job == nil {
			t.Fatalf("Job %s disappeared", jobID)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish in time", jobID)
	return nil
}

func TestBulkTranslateScenario(t *testing.T) {
	// Dish "Борщ" with no translations, source ru, targets en and de.
	menus := newFakeMenuStore("ru")
	menus.addCategory(domain.Category{ID: "c1", RestaurantID: "r1", Name: "Супы"})
	menus.addDish(&domain.Dish{ID: "d1", CategoryID: "c1", Name: "Борщ"})
	cache := newFakeTranslationCache()
	provider := newFakeProvider()
	engine := newTestEngine(menus, cache, provider)

	jobID, err := engine.StartJob(context.Background(), "r1", []string{"en", "de"})
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}

	job := waitForJob(t, engine, jobID)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("Job status = %s, want completed (errors: %v)", job.Status, job.Errors)
	}
	if job.Total != 2 || job.Completed != 2 {
		t.Errorf("Progress = %d/%d, want 2/2", job.Completed, job.Total)
	}

	dish, err := menus.GetDishByID(context.Background(), "d1")
	if err != nil {
		t.Fatal(err)
	}
	if dish.Translations["en"].Name == "" {
		t.Error("English dish name not populated")
	}
	if dish.Translations["de"].Name == "" {
		t.Error("German dish name not populated")
	}

	if got := cache.countByRole(domain.RoleDishName); got != 2 {
		t.Errorf("Cache rows with role dish_name = %d, want 2", got)
	}
	if got := cache.countByRole(domain.RoleCategoryName); got != 2 {
		t.Errorf("Cache rows with role category_name = %d, want 2", got)
	}
}

func TestBulkTranslateCacheHitAvoidsProviderCall(t *testing.T) {
	menus := newFakeMenuStore("ru")
	menus.addCategory(domain.Category{
		ID: "c1", RestaurantID: "r1", Name: "Супы",
		Translations: domain.TranslationMap{"en": {Name: "Soups"}},
	})
	menus.addDish(&domain.Dish{ID: "d1", CategoryID: "c1", Name: "Борщ"})

	cache := newFakeTranslationCache()
	cache.preload(HashContent("Борщ", domain.RoleDishName), "en", "Borscht", domain.RoleDishName)

	provider := newFakeProvider()
	engine := newTestEngine(menus, cache, provider)

	jobID, err := engine.StartJob(context.Background(), "r1", []string{"en"})
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	job := waitForJob(t, engine, jobID)

	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("Job status = %s, want completed (errors: %v)", job.Status, job.Errors)
	}
	if got := provider.callCount(); got != 0 {
		t.Errorf("Provider called %d times, want 0 (everything cached)", got)
	}

	dish, _ := menus.GetDishByID(context.Background(), "d1")
	if dish.Translations["en"].Name != "Borscht" {
		t.Errorf("Dish name = %q, want cached %q", dish.Translations["en"].Name, "Borscht")
	}
}

func TestBulkTranslatePartialFailureIsolation(t *testing.T) {
	menus := newFakeMenuStore("ru")
	menus.addCategory(domain.Category{
		ID: "c1", RestaurantID: "r1", Name: "Супы",
		Translations: domain.TranslationMap{"en": {Name: "Soups"}},
	})
	menus.addDish(&domain.Dish{ID: "d1", CategoryID: "c1", Name: "Борщ"})
	menus.addDish(&domain.Dish{ID: "d2", CategoryID: "c1", Name: "Солянка"})
	menus.addDish(&domain.Dish{ID: "d3", CategoryID: "c1", Name: "Уха"})

	cache := newFakeTranslationCache()
	provider := newFakeProvider()
	provider.failNames["Солянка"] = true
	engine := newTestEngine(menus, cache, provider)

	jobID, err := engine.StartJob(context.Background(), "r1", []string{"en"})
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	job := waitForJob(t, engine, jobID)

	// One bad dish must never abort the whole job
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("Job status = %s, want completed", job.Status)
	}
	if len(job.Errors) != 1 {
		t.Errorf("Errors = %v, want exactly 1", job.Errors)
	}
	if job.Completed != job.Total {
		t.Errorf("Progress = %d/%d, want full", job.Completed, job.Total)
	}

	d1, _ := menus.GetDishByID(context.Background(), "d1")
	d3, _ := menus.GetDishByID(context.Background(), "d3")
	if !d1.Translations.Has("en") || !d3.Translations.Has("en") {
		t.Error("Healthy dishes should still be translated")
	}
	d2, _ := menus.GetDishByID(context.Background(), "d2")
	if d2.Translations.Has("en") {
		t.Error("Failed dish should remain untranslated")
	}
}

func TestBulkTranslateIdempotentRerun(t *testing.T) {
	menus := newFakeMenuStore("ru")
	menus.addCategory(domain.Category{
		ID: "c1", RestaurantID: "r1", Name: "Супы",
		Translations: domain.TranslationMap{"en": {Name: "Soups"}},
	})
	menus.addDish(&domain.Dish{
		ID: "d1", CategoryID: "c1", Name: "Борщ",
		Translations: domain.TranslationMap{"en": {Name: "Borscht"}},
	})

	cache := newFakeTranslationCache()
	provider := newFakeProvider()
	engine := newTestEngine(menus, cache, provider)

	jobID, err := engine.StartJob(context.Background(), "r1", []string{"en"})
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	job := waitForJob(t, engine, jobID)

	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("Job status = %s, want completed", job.Status)
	}
	// Already-translated entities still count toward progress
	if job.Completed != 2 {
		t.Errorf("Completed = %d, want 2", job.Completed)
	}
	if got := provider.callCount(); got != 0 {
		t.Errorf("Provider called %d times on a fully translated menu, want 0", got)
	}
}

func TestBulkTranslateMergePreservesExistingLanguages(t *testing.T) {
	menus := newFakeMenuStore("ru")
	menus.addCategory(domain.Category{
		ID: "c1", RestaurantID: "r1", Name: "Супы",
		Translations: domain.TranslationMap{"en": {Name: "Soups"}},
	})
	menus.addDish(&domain.Dish{
		ID: "d1", CategoryID: "c1", Name: "Борщ",
		Translations: domain.TranslationMap{"en": {Name: "Borscht"}},
	})

	cache := newFakeTranslationCache()
	provider := newFakeProvider()
	engine := newTestEngine(menus, cache, provider)

	jobID, err := engine.StartJob(context.Background(), "r1", []string{"en", "de"})
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	job := waitForJob(t, engine, jobID)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("Job status = %s, want completed (errors: %v)", job.Status, job.Errors)
	}

	dish, _ := menus.GetDishByID(context.Background(), "d1")
	if dish.Translations["en"].Name != "Borscht" {
		t.Errorf("Existing English translation was clobbered: %q", dish.Translations["en"].Name)
	}
	if !dish.Translations.Has("de") {
		t.Error("New German translation missing after merge")
	}
}

func TestBulkTranslateNoCredentials(t *testing.T) {
	menus := newFakeMenuStore("ru")
	menus.addCategory(domain.Category{ID: "c1", RestaurantID: "r1", Name: "Супы"})
	menus.addDish(&domain.Dish{ID: "d1", CategoryID: "c1", Name: "Борщ"})

	cache := newFakeTranslationCache()
	provider := newFakeProvider()
	provider.configured = false
	engine := newTestEngine(menus, cache, provider)

	jobID, err := engine.StartJob(context.Background(), "r1", []string{"en"})
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	job := waitForJob(t, engine, jobID)

	if job.Status != domain.JobStatusError {
		t.Fatalf("Job status = %s, want error", job.Status)
	}
	// Short-circuits before touching any entity
	if job.Completed != 0 {
		t.Errorf("Completed = %d, want 0", job.Completed)
	}
	if len(job.Errors) == 0 {
		t.Error("Expected a job-level error entry")
	}
}

func TestBulkTranslateRejectsOverlappingJob(t *testing.T) {
	menus := newFakeMenuStore("ru")
	menus.addCategory(domain.Category{ID: "c1", RestaurantID: "r1", Name: "Супы"})
	for i := 0; i < 30; i++ {
		menus.addDish(&domain.Dish{ID: fmt.Sprintf("d%d", i), CategoryID: "c1", Name: fmt.Sprintf("Блюдо %d", i)})
	}

	cache := newFakeTranslationCache()
	provider := newFakeProvider()
	engine := NewBulkTranslateService(menus, cache, provider, NewMemoryJobStore(), nil, &BulkTranslateConfig{
		DishDelay: 20 * time.Millisecond,
	})

	jobID, err := engine.StartJob(context.Background(), "r1", []string{"en"})
	if err != nil {
		t.Fatalf("First StartJob failed: %v", err)
	}

	if _, err := engine.StartJob(context.Background(), "r1", []string{"de"}); err != ErrJobAlreadyRunning {
		t.Errorf("Second StartJob error = %v, want ErrJobAlreadyRunning", err)
	}

	waitForJob(t, engine, jobID)

	// After the first job finishes a new one is accepted again
	if _, err := engine.StartJob(context.Background(), "r1", []string{"de"}); err != nil {
		t.Errorf("StartJob after completion failed: %v", err)
	}
}

func TestBulkTranslateConcurrentStartsAcceptOne(t *testing.T) {
	menus := newFakeMenuStore("ru")
	menus.addCategory(domain.Category{ID: "c1", RestaurantID: "r1", Name: "Супы"})
	menus.addDish(&domain.Dish{ID: "d1", CategoryID: "c1", Name: "Борщ"})
	// Slow entity loading widens the window between guard and job start
	menus.loadDelay = 50 * time.Millisecond

	engine := newTestEngine(menus, newFakeTranslationCache(), newFakeProvider())

	const starters = 4
	results := make(chan error, starters)
	var wg sync.WaitGroup
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.StartJob(context.Background(), "r1", []string{"en"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	accepted, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrJobAlreadyRunning):
			rejected++
		default:
			t.Errorf("Unexpected StartJob error: %v", err)
		}
	}
	if accepted != 1 {
		t.Errorf("Accepted %d overlapping jobs for one tenant, want 1", accepted)
	}
	if rejected != starters-1 {
		t.Errorf("Rejected %d starts, want %d", rejected, starters-1)
	}
}

func TestBulkTranslatePartialProviderCoverage(t *testing.T) {
	menus := newFakeMenuStore("ru")
	menus.addCategory(domain.Category{
		ID: "c1", RestaurantID: "r1", Name: "Супы",
		Translations: domain.TranslationMap{"en": {Name: "Soups"}, "de": {Name: "Suppen"}},
	})
	menus.addDish(&domain.Dish{ID: "d1", CategoryID: "c1", Name: "Борщ"})

	provider := newFakeProvider()
	provider.skipLangs["de"] = true
	engine := newTestEngine(menus, newFakeTranslationCache(), provider)

	jobID, err := engine.StartJob(context.Background(), "r1", []string{"en", "de"})
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	job := waitForJob(t, engine, jobID)

	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("Job status = %s, want completed", job.Status)
	}

	// The language that did come back is persisted...
	dish, _ := menus.GetDishByID(context.Background(), "d1")
	if !dish.Translations.Has("en") {
		t.Error("Covered language should be persisted")
	}
	if dish.Translations.Has("de") {
		t.Error("Skipped language should not appear translated")
	}

	// ...and the shortfall shows up in the job's error list
	if len(job.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly 1 shortfall entry", job.Errors)
	}
	if !strings.Contains(job.Errors[0], "de") {
		t.Errorf("Shortfall entry %q should name the missing language", job.Errors[0])
	}
}

func TestBulkTranslateProgressMonotonic(t *testing.T) {
	menus := newFakeMenuStore("ru")
	menus.addCategory(domain.Category{ID: "c1", RestaurantID: "r1", Name: "Супы"})
	for i := 0; i < 10; i++ {
		menus.addDish(&domain.Dish{ID: fmt.Sprintf("d%d", i), CategoryID: "c1", Name: fmt.Sprintf("Блюдо %d", i)})
	}

	engine := NewBulkTranslateService(menus, newFakeTranslationCache(), newFakeProvider(), NewMemoryJobStore(), nil, &BulkTranslateConfig{
		DishDelay: time.Millisecond,
	})

	jobID, err := engine.StartJob(context.Background(), "r1", []string{"en"})
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}

	last := 0
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job := engine.GetProgress(jobID)
		if job.Completed < last {
			t.Fatalf("Progress went backwards: %d -> %d", last, job.Completed)
		}
		last = job.Completed
		if job.Status.Terminal() {
			if job.Completed != job.Total {
				t.Errorf("Terminal progress = %d/%d, want full", job.Completed, job.Total)
			}
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("Job did not finish in time")
}
