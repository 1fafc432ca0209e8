package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/codyseavey/tcg-inventory/internal/config"
	"github.com/codyseavey/tcg-inventory/internal/database"
	"github.com/codyseavey/tcg-inventory/internal/jobs"
	"github.com/codyseavey/tcg-inventory/internal/logging"
	"github.com/codyseavey/tcg-inventory/internal/models"
)

// fakeFetcher answers lookups from a fixed table keyed by card name
type fakeFetcher struct {
	mu    sync.Mutex
	cards map[string]CardMetadata
	calls []LookupQuery
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{cards: make(map[string]CardMetadata)}
}

func (f *fakeFetcher) FetchMetadata(_ context.Context, q LookupQuery) CardMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	return f.cards[q.Name]
}

func (f *fakeFetcher) set(name string, usd, foil float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards[name] = CardMetadata{
		Found:         true,
		Name:          name,
		PriceUSD:      usd,
		PriceFoilUSD:  foil,
		Rarity:        "Rare",
		Colors:        "Blue",
		ColorIdentity: "U",
		ManaCost:      "1U",
		ManaValue:     2,
		TypeLine:      "Instant",
		ImageURL:      "https://img.example/" + name + ".jpg",
		MarketURL:     "https://market.example/" + name,
	}
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testEnv struct {
	db         *gorm.DB
	inventory  *database.InventoryStore
	alerts     *database.AlertStore
	templates  *database.TemplateStore
	snapshots  *database.SnapshotStore
	fetcher    *fakeFetcher
	enricher   *Enricher
	runner     *jobs.Runner
	collection *CollectionService
	templateSv *TemplateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logging.Discard()
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")}, log)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	cfg := config.JobsConfig{CommitEvery: 10, RefreshMissingLimit: 200}
	env := &testEnv{
		db:        db,
		inventory: database.NewInventoryStore(db),
		alerts:    database.NewAlertStore(db),
		templates: database.NewTemplateStore(db),
		snapshots: database.NewSnapshotStore(db),
		fetcher:   newFakeFetcher(),
		runner:    jobs.NewRunner(context.Background(), jobs.NewRegistry(), jobs.NewMemoryLock(), 2, log),
	}
	env.enricher = NewEnricher(env.inventory, env.fetcher, cfg, log)
	env.templateSv = NewTemplateService(env.templates, env.inventory, env.runner, env.enricher, log)
	env.collection = NewCollectionService(env.inventory, env.alerts, env.enricher, env.templateSv, env.runner, cfg, log)
	t.Cleanup(env.runner.Wait)
	return env
}

func (e *testEnv) addRecord(t *testing.T, owner, name string, qty int) uint {
	t.Helper()
	rec := &models.InventoryRecord{
		OwnerID:   owner,
		CardName:  name,
		Condition: models.DefaultCondition,
		Language:  models.DefaultLanguage,
		Quantity:  qty,
	}
	id, _, err := e.inventory.MergeOrInsert(context.Background(), rec)
	if err != nil {
		t.Fatalf("failed to seed %q: %v", name, err)
	}
	return id
}
