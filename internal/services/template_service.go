package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/database"
	"github.com/codyseavey/tcg-inventory/internal/importer"
	"github.com/codyseavey/tcg-inventory/internal/jobs"
	"github.com/codyseavey/tcg-inventory/internal/models"
)

var (
	ErrTemplateNotFound        = errors.New("template not found")
	ErrTemplateAlreadyImported = errors.New("template already imported")
	ErrEmptyTemplate           = errors.New("template has no valid rows")
)

// TemplateService saves imported rows as shareable templates and copies templates into
// an owner's inventory
type TemplateService struct {
	store     *database.TemplateStore
	inventory importer.RecordWriter
	runner    *jobs.Runner
	enricher  *Enricher
	log       logrus.FieldLogger
}

func NewTemplateService(store *database.TemplateStore, inventory importer.RecordWriter, runner *jobs.Runner, enricher *Enricher, log logrus.FieldLogger) *TemplateService {
	return &TemplateService{
		store:     store,
		inventory: inventory,
		runner:    runner,
		enricher:  enricher,
		log:       log,
	}
}

type TemplateImportResult struct {
	JobID      string `json:"job_id"`
	TemplateID uint   `json:"template_id"`
	Imported   int    `json:"imported"`
	Updated    int    `json:"updated"`
	Errors     int    `json:"errors"`
}

// CreateFromRows stores the valid rows as a template. The same owner creating a template
// with the same name and rows again gets the existing one back with created false.
func (s *TemplateService) CreateFromRows(ctx context.Context, ownerID, name string, public bool, rows []importer.CanonicalRow) (*models.CollectionTemplate, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Imported collection"
	}

	tmpl := &models.CollectionTemplate{
		Name:      name,
		CreatedBy: ownerID,
		IsPublic:  public,
	}
	templateHash := sha256.New()
	templateHash.Write([]byte(ownerID))
	templateHash.Write([]byte{0})
	templateHash.Write([]byte(name))

	for _, row := range rows {
		if !row.Valid {
			continue
		}
		key := rowKey(row)
		entryHash := sha256.Sum256([]byte(key))
		templateHash.Write([]byte{'\n'})
		templateHash.Write([]byte(key))

		tmpl.Entries = append(tmpl.Entries, models.TemplateEntry{
			Position:        len(tmpl.Entries),
			CardName:        row.CardName,
			SetName:         row.SetName,
			SetCode:         row.SetCode,
			CollectorNumber: row.CollectorNumber,
			IsFoil:          row.IsFoil,
			Condition:       row.Condition,
			Language:        row.Language,
			Quantity:        row.Quantity,
			PurchasePrice:   row.PurchasePrice,
			Rarity:          row.Rarity,
			EntryHash:       hex.EncodeToString(entryHash[:]),
		})
	}
	if len(tmpl.Entries) == 0 {
		return nil, false, ErrEmptyTemplate
	}
	tmpl.TemplateHash = hex.EncodeToString(templateHash.Sum(nil))
	tmpl.Description = fmt.Sprintf("%d cards", len(tmpl.Entries))

	stored, created, err := s.store.Create(ctx, tmpl)
	if err != nil {
		return nil, false, fmt.Errorf("failed to save template: %w", err)
	}
	if created {
		s.log.Infof("Templates: %s created template %d %q with %d entries", ownerID, stored.ID, stored.Name, stored.EntryCount)
	}
	return stored, created, nil
}

func rowKey(r importer.CanonicalRow) string {
	return fmt.Sprintf("%s|%s|%s|%s|%t|%s|%s|%d|%.2f|%s",
		r.CardName, r.SetName, r.SetCode, r.CollectorNumber, r.IsFoil, r.Condition, r.Language, r.Quantity, r.PurchasePrice, r.Rarity)
}

func (s *TemplateService) List(ctx context.Context, ownerID string) ([]models.CollectionTemplate, error) {
	return s.store.ListVisible(ctx, ownerID)
}

// Import copies a visible template's entries into ownerID's inventory and enriches them
// in the background. Each owner can import a template once.
func (s *TemplateService) Import(ctx context.Context, ownerID string, templateID uint) (*TemplateImportResult, error) {
	tmpl, err := s.store.GetVisible(ctx, ownerID, templateID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}

	job, err := s.runner.Begin(ctx, ownerID, jobs.KindTemplateImport)
	if err != nil {
		return nil, err
	}

	instance, err := s.store.RecordInstance(ctx, ownerID, tmpl)
	if err != nil {
		if errors.Is(err, database.ErrAlreadyImported) {
			err = ErrTemplateAlreadyImported
		}
		job.Fail(err)
		return nil, err
	}

	job.SetPhase(jobs.PhaseImporting, len(tmpl.Entries), fmt.Sprintf("Importing template %q", tmpl.Name))
	result := &TemplateImportResult{JobID: job.ID, TemplateID: tmpl.ID}
	var ids []uint
	seen := make(map[uint]bool, len(tmpl.Entries))

	for i, entry := range tmpl.Entries {
		rec := entryRecord(ownerID, tmpl.ID, entry)
		id, merged, err := s.inventory.MergeOrInsert(ctx, &rec)
		switch {
		case err != nil:
			s.log.Warnf("Templates: failed to copy %q from template %d: %v", entry.CardName, tmpl.ID, err)
			result.Errors++
		case merged:
			result.Updated++
		default:
			result.Imported++
		}
		if err == nil && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
		if (i+1)%10 == 0 {
			job.Tick(i+1, entry.CardName)
		}
	}

	if len(ids) == 0 {
		if err := s.store.DeleteInstance(ctx, instance.ID); err != nil {
			s.log.Warnf("Templates: failed to remove instance %d: %v", instance.ID, err)
		}
		err := fmt.Errorf("no cards could be copied from template %q: %w", tmpl.Name, ErrEmptyTemplate)
		job.Fail(err)
		return nil, err
	}

	summary := jobs.Summary{Imported: result.Imported, Updated: result.Updated, Errors: result.Errors, TemplateID: tmpl.ID}
	job.Go(enrichmentTask(s.enricher, ownerID, ids, summary))
	return result, nil
}

func entryRecord(ownerID string, templateID uint, e models.TemplateEntry) models.InventoryRecord {
	return models.InventoryRecord{
		OwnerID:          ownerID,
		CardName:         e.CardName,
		SetName:          e.SetName,
		SetCode:          e.SetCode,
		CollectorNumber:  e.CollectorNumber,
		IsFoil:           e.IsFoil,
		Condition:        e.Condition,
		Language:         e.Language,
		Quantity:         e.Quantity,
		PurchasePrice:    e.PurchasePrice,
		Rarity:           e.Rarity,
		SourceTemplateID: &templateID,
	}
}
