package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codyseavey/tcg-inventory/internal/models"
)

var ErrNotFound = errors.New("record not found")

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// sortColumns whitelists the columns an inventory listing may be ordered by
var sortColumns = map[string]string{
	"card_name":     "card_name",
	"current_price": "current_price",
	"total_value":   "total_value",
	"mana_value":    "mana_value",
	"rarity":        "rarity",
	"card_type":     "type_line",
	"set_name":      "set_name",
}

// enrichmentColumns are the fields written back by a lookup. Derived values are
// recomputed in SQL against the row's current quantity and purchase price.
var enrichmentColumns = []string{
	"current_price", "rarity", "colors", "color_identity",
	"mana_cost", "mana_value", "type_line", "image_url", "image_url_back", "market_url", "last_updated",
}

// IdentityKey identifies a holding within one owner's inventory
type IdentityKey struct {
	CardName        string
	SetCode         string
	CollectorNumber string
	IsFoil          bool
	Condition       string
}

func KeyOf(r *models.InventoryRecord) IdentityKey {
	return IdentityKey{
		CardName:        r.CardName,
		SetCode:         r.SetCode,
		CollectorNumber: r.CollectorNumber,
		IsFoil:          r.IsFoil,
		Condition:       r.Condition,
	}
}

func identityWhere(ownerID string, key IdentityKey) map[string]interface{} {
	return map[string]interface{}{
		"owner_id":         ownerID,
		"card_name":        key.CardName,
		"set_code":         key.SetCode,
		"collector_number": key.CollectorNumber,
		"is_foil":          key.IsFoil,
		"condition":        key.Condition,
	}
}

// EnrichmentBatch is a group of looked-up records and the alerts they raised,
// committed together
type EnrichmentBatch struct {
	Records []models.InventoryRecord
	Alerts  []models.PriceAlert
}

type InventoryStore struct {
	db *gorm.DB
}

func NewInventoryStore(db *gorm.DB) *InventoryStore {
	return &InventoryStore{db: db}
}

// Get loads one record owned by ownerID
func (s *InventoryStore) Get(ctx context.Context, ownerID string, id uint) (*models.InventoryRecord, error) {
	var rec models.InventoryRecord
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MergeOrInsert adds rec to its owner's inventory in a single transaction. An existing
// holding with the same identity key has its quantity incremented instead. A unique
// violation on insert means a concurrent import won the race, so it is retried as a merge.
func (s *InventoryStore) MergeOrInsert(ctx context.Context, rec *models.InventoryRecord) (id uint, merged bool, err error) {
	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		id, merged, txErr = mergeOrInsert(tx, rec, now)
		return txErr
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			id, txErr = mergeExisting(tx, rec, now)
			merged = true
			return txErr
		})
	}
	return id, merged, err
}

func mergeOrInsert(tx *gorm.DB, rec *models.InventoryRecord, now time.Time) (uint, bool, error) {
	id, err := mergeExisting(tx, rec, now)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, false, err
	}

	insert := *rec
	insert.ID = 0
	insert.CurrentPrice = 0
	insert.TotalValue = 0
	insert.PriceChange = 0
	insert.LastUpdated = &now
	if err := tx.Create(&insert).Error; err != nil {
		return 0, false, err
	}
	return insert.ID, false, nil
}

func mergeExisting(tx *gorm.DB, rec *models.InventoryRecord, now time.Time) (uint, error) {
	var existing models.InventoryRecord
	err := tx.Where(identityWhere(rec.OwnerID, KeyOf(rec))).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	err = tx.Model(&models.InventoryRecord{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
		"quantity":     gorm.Expr("quantity + ?", rec.Quantity),
		"last_updated": now,
	}).Error
	if err != nil {
		return 0, err
	}
	err = tx.Model(&models.InventoryRecord{}).Where("id = ?", existing.ID).
		Update("total_value", gorm.Expr("current_price * quantity")).Error
	if err != nil {
		return 0, err
	}
	return existing.ID, nil
}

// FindOwned returns the records in ids that belong to ownerID, in ascending id order
func (s *InventoryStore) FindOwned(ctx context.Context, ownerID string, ids []uint) ([]models.InventoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var records []models.InventoryRecord
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// OwnedIDs filters ids down to the ones ownerID owns
func (s *InventoryStore) OwnedIDs(ctx context.Context, ownerID string, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var owned []uint
	err := s.db.WithContext(ctx).Model(&models.InventoryRecord{}).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Order("id ASC").
		Pluck("id", &owned).Error
	return owned, err
}

// AllIDs returns every record id ownerID owns
func (s *InventoryStore) AllIDs(ctx context.Context, ownerID string) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.InventoryRecord{}).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// MissingMetadataIDs selects up to limit records with an empty enrichment field,
// most valuable first
func (s *InventoryStore) MissingMetadataIDs(ctx context.Context, ownerID string, limit int) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.InventoryRecord{}).
		Where("owner_id = ?", ownerID).
		Where("rarity IS NULL OR rarity = '' OR colors IS NULL OR colors = '' OR mana_cost IS NULL OR mana_cost = '' OR type_line IS NULL OR type_line = ''").
		Order("total_value DESC").
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (s *InventoryStore) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.InventoryRecord{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

// ApplyEnrichment writes looked-up fields and new alerts in one transaction. An alert
// is dropped when its record already has an unread alert triggered after dedupSince.
// Returns the number of alerts created.
func (s *InventoryStore) ApplyEnrichment(ctx context.Context, batch EnrichmentBatch, dedupSince time.Time) (int, error) {
	created := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created = 0
		for i := range batch.Records {
			rec := &batch.Records[i]
			err := tx.Model(&models.InventoryRecord{}).
				Where("id = ? AND owner_id = ?", rec.ID, rec.OwnerID).
				Select(enrichmentColumns).
				Updates(rec).Error
			if err != nil {
				return fmt.Errorf("failed to update record %d: %w", rec.ID, err)
			}
			err = tx.Model(&models.InventoryRecord{}).
				Where("id = ? AND owner_id = ?", rec.ID, rec.OwnerID).
				Updates(map[string]interface{}{
					"total_value":  gorm.Expr("? * quantity", rec.CurrentPrice),
					"price_change": gorm.Expr("? - purchase_price", rec.CurrentPrice),
				}).Error
			if err != nil {
				return fmt.Errorf("failed to update values of record %d: %w", rec.ID, err)
			}
		}
		for i := range batch.Alerts {
			ok, err := createAlertIfNoRecent(tx, &batch.Alerts[i], dedupSince)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	return created, err
}

// UpdateDetails saves the user-editable fields of rec along with its derived values
func (s *InventoryStore) UpdateDetails(ctx context.Context, rec *models.InventoryRecord) error {
	return s.db.WithContext(ctx).Model(&models.InventoryRecord{}).
		Where("id = ? AND owner_id = ?", rec.ID, rec.OwnerID).
		Select("quantity", "condition", "purchase_price", "alert_threshold", "total_value", "price_change", "last_updated").
		Updates(rec).Error
}

// DeleteByIDs deletes the records in ids owned by ownerID along with their alerts
func (s *InventoryStore) DeleteByIDs(ctx context.Context, ownerID string, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ? AND record_id IN ?", ownerID, ids).Delete(&models.PriceAlert{}).Error; err != nil {
			return err
		}
		result := tx.Where("owner_id = ? AND id IN ?", ownerID, ids).Delete(&models.InventoryRecord{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}

// DeleteByOwner deletes every record and alert belonging to ownerID
func (s *InventoryStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID).Delete(&models.PriceAlert{}).Error; err != nil {
			return err
		}
		result := tx.Where("owner_id = ?", ownerID).Delete(&models.InventoryRecord{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}

func (s *InventoryStore) filtered(ctx context.Context, ownerID string, f models.InventoryFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.InventoryRecord{}).Where("owner_id = ?", ownerID)
	if f.Rarity != "" {
		q = q.Where("rarity = ?", f.Rarity)
	}
	if f.Color != "" {
		q = q.Where("colors = ?", f.Color)
	}
	if f.CardType != "" {
		q = q.Where("LOWER(type_line) LIKE ?", "%"+strings.ToLower(f.CardType)+"%")
	}
	if f.ManaMin != nil {
		q = q.Where("mana_value >= ?", *f.ManaMin)
	}
	if f.ManaMax != nil {
		q = q.Where("mana_value <= ?", *f.ManaMax)
	}
	if f.Search != "" {
		term := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(card_name) LIKE ? OR LOWER(set_name) LIKE ?", term, term)
	}
	return q
}

// List returns one page of ownerID's inventory. Unknown sort keys fall back to
// total value, highest first. Page sizes above MaxPageSize are clamped and pages
// past the end are empty.
func (s *InventoryStore) List(ctx context.Context, ownerID string, f models.InventoryFilter) (*models.InventoryPage, error) {
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	page := f.Page
	if page < 1 {
		page = 1
	}

	var total int64
	if err := s.filtered(ctx, ownerID, f).Count(&total).Error; err != nil {
		return nil, err
	}

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = "total_value"
	}
	desc := !strings.EqualFold(f.Order, "asc")

	records := []models.InventoryRecord{}
	if int64(page-1) <= total/int64(pageSize) {
		err := s.filtered(ctx, ownerID, f).
			Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc}).
			Order("id ASC").
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Find(&records).Error
		if err != nil {
			return nil, err
		}
	}

	return &models.InventoryPage{
		Records:    records,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Stats aggregates ownerID's inventory and collects the distinct filter values
func (s *InventoryStore) Stats(ctx context.Context, ownerID string) (*models.InventoryStats, error) {
	var agg struct {
		UniqueCards  int64
		TotalCards   int64
		TotalValue   float64
		AveragePrice float64
	}
	err := s.db.WithContext(ctx).Model(&models.InventoryRecord{}).
		Select("COUNT(*) AS unique_cards, COALESCE(SUM(quantity), 0) AS total_cards, COALESCE(SUM(total_value), 0) AS total_value, COALESCE(AVG(current_price), 0) AS average_price").
		Where("owner_id = ?", ownerID).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}

	stats := &models.InventoryStats{
		UniqueCards:  agg.UniqueCards,
		TotalCards:   agg.TotalCards,
		TotalValue:   agg.TotalValue,
		AveragePrice: agg.AveragePrice,
	}
	for column, dest := range map[string]*[]string{
		"rarity":    &stats.FilterOptions.Rarities,
		"colors":    &stats.FilterOptions.Colors,
		"type_line": &stats.FilterOptions.CardTypes,
	} {
		if err := s.distinct(ctx, ownerID, column, dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *InventoryStore) distinct(ctx context.Context, ownerID, column string, dest *[]string) error {
	values := []string{}
	err := s.db.WithContext(ctx).Model(&models.InventoryRecord{}).
		Where("owner_id = ?", ownerID).
		Where(clause.Neq{Column: clause.Column{Name: column}, Value: ""}).
		Distinct(column).
		Order(column).
		Pluck(column, &values).Error
	*dest = values
	return err
}

// OwnersWithAlerts lists owners holding at least one priced record with an alert threshold
func (s *InventoryStore) OwnersWithAlerts(ctx context.Context) ([]string, error) {
	var owners []string
	err := s.db.WithContext(ctx).Model(&models.InventoryRecord{}).
		Where("alert_threshold > 0 AND current_price > 0").
		Distinct("owner_id").
		Order("owner_id").
		Pluck("owner_id", &owners).Error
	return owners, err
}

// AlertEnabledIDs lists ownerID's priced records that have an alert threshold
func (s *InventoryStore) AlertEnabledIDs(ctx context.Context, ownerID string) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.InventoryRecord{}).
		Where("owner_id = ? AND alert_threshold > 0 AND current_price > 0", ownerID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// Owners lists every owner with at least one record
func (s *InventoryStore) Owners(ctx context.Context) ([]string, error) {
	var owners []string
	err := s.db.WithContext(ctx).Model(&models.InventoryRecord{}).
		Distinct("owner_id").
		Order("owner_id").
		Pluck("owner_id", &owners).Error
	return owners, err
}
