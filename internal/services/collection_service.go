package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-inventory/internal/config"
	"github.com/codyseavey/tcg-inventory/internal/database"
	"github.com/codyseavey/tcg-inventory/internal/importer"
	"github.com/codyseavey/tcg-inventory/internal/jobs"
	"github.com/codyseavey/tcg-inventory/internal/models"
)

var (
	ErrNoCards          = errors.New("no cards in inventory")
	ErrNoneSelected     = errors.New("no cards selected")
	ErrNothingOwned     = errors.New("none of the selected cards belong to you")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateHolding = errors.New("a card with the same name, set, number, finish and condition already exists")
)

// CollectionService runs imports and refreshes for an owner's inventory and serves the
// inventory itself
type CollectionService struct {
	inventory  *database.InventoryStore
	alerts     *database.AlertStore
	reconciler *importer.Reconciler
	enricher   *Enricher
	templates  *TemplateService
	runner     *jobs.Runner
	cfg        config.JobsConfig
	log        logrus.FieldLogger
}

func NewCollectionService(
	inventory *database.InventoryStore,
	alerts *database.AlertStore,
	enricher *Enricher,
	templates *TemplateService,
	runner *jobs.Runner,
	cfg config.JobsConfig,
	log logrus.FieldLogger,
) *CollectionService {
	return &CollectionService{
		inventory:  inventory,
		alerts:     alerts,
		reconciler: importer.NewReconciler(inventory, log),
		enricher:   enricher,
		templates:  templates,
		runner:     runner,
		cfg:        cfg,
		log:        log,
	}
}

type ImportOptions struct {
	CreateTemplate bool
	TemplateName   string
	MakePublic     bool
}

type ImportResult struct {
	JobID      string              `json:"job_id"`
	Imported   int                 `json:"imported"`
	Updated    int                 `json:"updated"`
	Errors     int                 `json:"errors"`
	RowErrors  []importer.RowError `json:"row_errors,omitempty"`
	TemplateID uint                `json:"template_id,omitempty"`
	Enriching  int                 `json:"enriching"`
}

type RefreshResult struct {
	JobID   string `json:"job_id,omitempty"`
	Started bool   `json:"started"`
	Count   int    `json:"count"`
}

type ProgressResponse struct {
	Active         bool        `json:"active"`
	LatestProgress *jobs.State `json:"latest_progress"`
}

// ImportFile parses an upload, merges its rows into the owner's inventory and enriches
// the touched records in the background. Parsing and merging happen before returning.
func (s *CollectionService) ImportFile(ctx context.Context, ownerID, filename string, data []byte, opts ImportOptions) (*ImportResult, error) {
	job, err := s.runner.Begin(ctx, ownerID, jobs.KindImport)
	if err != nil {
		return nil, err
	}

	table, err := importer.ReadTable(filename, data)
	if err != nil {
		job.Fail(err)
		return nil, err
	}
	normalized, err := importer.Normalize(table)
	if err != nil {
		job.Fail(err)
		return nil, err
	}
	if normalized.NameFallback {
		s.log.Infof("Collection: %s upload has no name header, using column %q", ownerID, normalized.Mapping[importer.FieldCardName])
	}

	job.SetPhase(jobs.PhaseImporting, len(normalized.Rows), fmt.Sprintf("Importing %d rows", len(normalized.Rows)))
	reconciled := s.reconciler.Reconcile(ctx, normalized.Rows, ownerID, jobProgress(job))

	result := &ImportResult{
		JobID:     job.ID,
		Imported:  reconciled.Inserted,
		Updated:   reconciled.Updated,
		Errors:    reconciled.Errors,
		RowErrors: reconciled.RowErrors,
		Enriching: len(reconciled.RecordIDs),
	}

	if opts.CreateTemplate {
		name := opts.TemplateName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		}
		tmpl, _, err := s.templates.CreateFromRows(ctx, ownerID, name, opts.MakePublic, normalized.Rows)
		if err != nil {
			s.log.Warnf("Collection: failed to create template for %s: %v", ownerID, err)
		} else {
			result.TemplateID = tmpl.ID
		}
	}

	summary := jobs.Summary{
		Imported:   result.Imported,
		Updated:    result.Updated,
		Errors:     result.Errors,
		TemplateID: result.TemplateID,
		RowErrors:  result.RowErrors,
	}
	if len(reconciled.RecordIDs) == 0 {
		job.Complete(summary, "No cards imported")
		return result, nil
	}

	job.Go(enrichmentTask(s.enricher, ownerID, reconciled.RecordIDs, summary))
	return result, nil
}

func jobProgress(job *jobs.Job) func(current, total int, cardName string) {
	return func(current, _ int, cardName string) {
		job.Tick(current, cardName)
	}
}

// enrichmentTask enriches ids as the price update phase of a job, adding the
// enrichment counts to summary
func enrichmentTask(e *Enricher, ownerID string, ids []uint, summary jobs.Summary) jobs.Task {
	return func(ctx context.Context, job *jobs.Job) (jobs.Summary, string, error) {
		job.SetPhase(jobs.PhasePriceUpdate, len(ids), fmt.Sprintf("Fetching prices for %d cards", len(ids)))
		res, err := e.Enrich(ctx, ownerID, ids, jobProgress(job))
		summary.Enriched = res.Updated
		summary.Skipped = res.NotFound + res.Skipped
		summary.Alerts = res.Alerts
		if err != nil {
			return summary, "", err
		}
		return summary, fmt.Sprintf("Updated %d of %d cards", res.Updated, len(ids)), nil
	}
}

func (s *CollectionService) startRefresh(ctx context.Context, ownerID string, kind jobs.Kind, ids []uint) (*RefreshResult, error) {
	job, err := s.runner.Begin(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}
	job.Go(enrichmentTask(s.enricher, ownerID, ids, jobs.Summary{}))
	return &RefreshResult{JobID: job.ID, Started: true, Count: len(ids)}, nil
}

// RefreshMissing enriches the owner's most valuable records that are still missing
// metadata. Returns ErrNoCards for an empty inventory and Started false when nothing
// is missing.
func (s *CollectionService) RefreshMissing(ctx context.Context, ownerID string) (*RefreshResult, error) {
	count, err := s.inventory.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNoCards
	}

	ids, err := s.inventory.MissingMetadataIDs(ctx, ownerID, s.cfg.RefreshMissingLimit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &RefreshResult{}, nil
	}
	return s.startRefresh(ctx, ownerID, jobs.KindRefreshMissing, ids)
}

func (s *CollectionService) RefreshAll(ctx context.Context, ownerID string) (*RefreshResult, error) {
	ids, err := s.inventory.AllIDs(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoCards
	}
	return s.startRefresh(ctx, ownerID, jobs.KindRefreshAll, ids)
}

// RefreshSelection enriches the selected records the owner actually owns
func (s *CollectionService) RefreshSelection(ctx context.Context, ownerID string, ids []uint) (*RefreshResult, error) {
	if len(ids) == 0 {
		return nil, ErrNoneSelected
	}
	owned, err := s.inventory.OwnedIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return nil, ErrNothingOwned
	}
	return s.startRefresh(ctx, ownerID, jobs.KindRefreshSelection, owned)
}

func (s *CollectionService) Poll(ownerID string) ProgressResponse {
	state, ok := s.runner.Registry().Status(ownerID)
	if !ok {
		return ProgressResponse{}
	}
	return ProgressResponse{Active: state.Active(), LatestProgress: &state}
}

// AddCard merges a single card into the inventory. Unless deferred, its metadata is
// looked up before returning.
func (s *CollectionService) AddCard(ctx context.Context, ownerID string, req models.AddCardRequest) (*models.InventoryRecord, error) {
	name := strings.TrimSpace(req.CardName)
	if name == "" {
		return nil, fmt.Errorf("%w: card_name is required", ErrInvalidInput)
	}

	rec := models.InventoryRecord{
		OwnerID:         ownerID,
		CardName:        name,
		SetCode:         strings.ToLower(strings.TrimSpace(req.SetCode)),
		SetName:         strings.TrimSpace(req.SetName),
		CollectorNumber: strings.TrimSpace(req.CollectorNumber),
		IsFoil:          req.IsFoil,
		Condition:       models.DefaultCondition,
		Language:        models.DefaultLanguage,
		Quantity:        req.Quantity,
		PurchasePrice:   req.PurchasePrice,
		AlertThreshold:  req.AlertThreshold,
	}
	if req.Condition != "" {
		rec.Condition = importer.TitleCase(req.Condition)
	}
	if req.Language != "" && !strings.EqualFold(req.Language, "en") {
		rec.Language = req.Language
	}
	if rec.Quantity <= 0 {
		rec.Quantity = 1
	}

	id, merged, err := s.inventory.MergeOrInsert(ctx, &rec)
	if err != nil {
		return nil, fmt.Errorf("failed to add card: %w", err)
	}
	s.log.Infof("Collection: %s added %q (id %d, merged %v)", ownerID, name, id, merged)

	if req.Defer {
		if _, err := s.startRefresh(ctx, ownerID, jobs.KindRefreshSelection, []uint{id}); err != nil {
			s.log.Infof("Collection: deferred lookup for %d not started: %v", id, err)
		}
	} else if _, err := s.enricher.Enrich(ctx, ownerID, []uint{id}, nil); err != nil {
		s.log.Warnf("Collection: lookup for %q failed: %v", name, err)
	}

	return s.inventory.Get(ctx, ownerID, id)
}

// UpdateCard edits the user-controlled fields of a record and recomputes its value
func (s *CollectionService) UpdateCard(ctx context.Context, ownerID string, id uint, req models.UpdateCardRequest) (*models.InventoryRecord, error) {
	rec, err := s.inventory.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
		}
		rec.Quantity = *req.Quantity
	}
	if req.Condition != nil && strings.TrimSpace(*req.Condition) != "" {
		rec.Condition = importer.TitleCase(*req.Condition)
	}
	if req.PurchasePrice != nil {
		rec.PurchasePrice = *req.PurchasePrice
	}
	if req.AlertThreshold != nil {
		rec.AlertThreshold = *req.AlertThreshold
	}
	rec.Recalculate()
	now := time.Now()
	rec.LastUpdated = &now

	if err := s.inventory.UpdateDetails(ctx, rec); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateHolding
		}
		return nil, err
	}
	return rec, nil
}

func (s *CollectionService) Get(ctx context.Context, ownerID string, id uint) (*models.InventoryRecord, error) {
	return s.inventory.Get(ctx, ownerID, id)
}

func (s *CollectionService) List(ctx context.Context, ownerID string, filter models.InventoryFilter) (*models.InventoryPage, error) {
	return s.inventory.List(ctx, ownerID, filter)
}

func (s *CollectionService) Stats(ctx context.Context, ownerID string) (*models.InventoryStats, error) {
	return s.inventory.Stats(ctx, ownerID)
}

func (s *CollectionService) Delete(ctx context.Context, ownerID string, id uint) error {
	n, err := s.inventory.DeleteByIDs(ctx, ownerID, []uint{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// BulkDelete deletes the selected records the owner owns. Ids owned by anyone else are
// ignored; ErrNothingOwned is returned when that leaves nothing to delete.
func (s *CollectionService) BulkDelete(ctx context.Context, ownerID string, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoneSelected
	}
	n, err := s.inventory.DeleteByIDs(ctx, ownerID, ids)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNothingOwned
	}
	s.log.Infof("Collection: %s deleted %d of %d selected cards", ownerID, n, len(ids))
	return n, nil
}

func (s *CollectionService) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	n, err := s.inventory.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	s.log.Infof("Collection: %s deleted all %d cards", ownerID, n)
	return n, nil
}

func (s *CollectionService) Alerts(ctx context.Context, ownerID string, unreadOnly bool) ([]models.PriceAlert, error) {
	return s.alerts.List(ctx, ownerID, unreadOnly)
}

func (s *CollectionService) MarkAlertRead(ctx context.Context, ownerID string, id uint) error {
	return s.alerts.MarkRead(ctx, ownerID, id)
}

// Analyze reports how an upload's columns would be mapped without importing anything
func (s *CollectionService) Analyze(filename string, data []byte) (*importer.Analysis, error) {
	table, err := importer.ReadTable(filename, data)
	if err != nil {
		return nil, err
	}
	return importer.Analyze(table), nil
}

func (s *CollectionService) UnreadAlerts(ctx context.Context, ownerID string) (int64, error) {
	return s.alerts.CountUnread(ctx, ownerID)
}
