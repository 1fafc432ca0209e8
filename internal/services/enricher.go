package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/config"
	"github.com/codyseavey/tcg-inventory/internal/database"
	"github.com/codyseavey/tcg-inventory/internal/metrics"
	"github.com/codyseavey/tcg-inventory/internal/models"
)

// EnrichmentStore loads records for enrichment and commits the results
type EnrichmentStore interface {
	FindOwned(ctx context.Context, ownerID string, ids []uint) ([]models.InventoryRecord, error)
	ApplyEnrichment(ctx context.Context, batch database.EnrichmentBatch, dedupSince time.Time) (int, error)
}

// ProgressFunc receives per-record progress from long running operations
type ProgressFunc func(current, total int, cardName string)

type EnrichResult struct {
	Updated  int `json:"updated"`
	NotFound int `json:"not_found"`
	Skipped  int `json:"skipped"`
	Alerts   int `json:"alerts"`
}

// Enricher looks up metadata and prices for inventory records and writes them back in
// small batches
type Enricher struct {
	store       EnrichmentStore
	lookup      MetadataFetcher
	commitEvery int
	dedupWindow time.Duration
	now         func() time.Time
	log         logrus.FieldLogger
}

func NewEnricher(store EnrichmentStore, lookup MetadataFetcher, cfg config.JobsConfig, log logrus.FieldLogger) *Enricher {
	commitEvery := cfg.CommitEvery
	if commitEvery <= 0 {
		commitEvery = 10
	}
	window := cfg.AlertDedupWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Enricher{
		store:       store,
		lookup:      lookup,
		commitEvery: commitEvery,
		dedupWindow: window,
		now:         time.Now,
		log:         log,
	}
}

// Enrich processes ids in ascending order. Ids the owner does not own are skipped.
// A record whose lookup fails is left as it was. Staged updates are committed every
// commitEvery records, so a crash loses at most one batch.
func (e *Enricher) Enrich(ctx context.Context, ownerID string, ids []uint, progress ProgressFunc) (EnrichResult, error) {
	var result EnrichResult
	ids = sortedUnique(ids)
	total := len(ids)
	processed := 0

	for start := 0; start < total; start += e.commitEvery {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + e.commitEvery
		if end > total {
			end = total
		}
		chunk := ids[start:end]

		records, err := e.store.FindOwned(ctx, ownerID, chunk)
		if err != nil {
			return result, fmt.Errorf("failed to load records: %w", err)
		}
		result.Skipped += len(chunk) - len(records)
		metrics.EnrichedRecordsTotal.WithLabelValues("skipped").Add(float64(len(chunk) - len(records)))

		var batch database.EnrichmentBatch
		for i := range records {
			rec := records[i]
			processed++
			if progress != nil {
				progress(processed, total, rec.CardName)
			}

			meta := e.lookup.FetchMetadata(ctx, LookupQuery{
				Name:            rec.CardName,
				SetCode:         rec.SetCode,
				CollectorNumber: rec.CollectorNumber,
			})
			if !meta.Found {
				e.log.Debugf("Enricher: no metadata for %q (%s #%s)", rec.CardName, rec.SetCode, rec.CollectorNumber)
				result.NotFound++
				metrics.EnrichedRecordsTotal.WithLabelValues("not_found").Inc()
				continue
			}

			if alert := e.apply(&rec, meta); alert != nil {
				batch.Alerts = append(batch.Alerts, *alert)
			}
			batch.Records = append(batch.Records, rec)
		}
		// Ids not owned still count towards progress
		processed = end

		if len(batch.Records) == 0 {
			continue
		}

		commitStart := time.Now()
		alerts, err := e.store.ApplyEnrichment(ctx, batch, e.now().Add(-e.dedupWindow))
		metrics.EnrichmentBatchDuration.Observe(time.Since(commitStart).Seconds())
		if err != nil {
			return result, fmt.Errorf("failed to commit enrichment batch: %w", err)
		}
		result.Updated += len(batch.Records)
		result.Alerts += alerts
		metrics.EnrichedRecordsTotal.WithLabelValues("updated").Add(float64(len(batch.Records)))
		metrics.PriceAlertsTotal.Add(float64(alerts))
	}

	e.log.Infof("Enricher: owner %s: %d updated, %d not found, %d skipped, %d alerts",
		ownerID, result.Updated, result.NotFound, result.Skipped, result.Alerts)
	return result, nil
}

// apply copies looked-up fields onto rec and returns an alert when the price moved by
// at least the record's threshold
func (e *Enricher) apply(rec *models.InventoryRecord, meta CardMetadata) *models.PriceAlert {
	now := e.now()
	oldPrice := rec.CurrentPrice
	newPrice := meta.PriceFor(rec.IsFoil)

	rec.CurrentPrice = newPrice
	rec.Recalculate()
	rec.Rarity = meta.Rarity
	rec.Colors = meta.Colors
	rec.ColorIdentity = meta.ColorIdentity
	rec.ManaCost = meta.ManaCost
	rec.ManaValue = meta.ManaValue
	rec.TypeLine = meta.TypeLine
	rec.ImageURL = meta.ImageURL
	rec.ImageURLBack = meta.ImageURLBack
	rec.MarketURL = meta.MarketURL
	rec.LastUpdated = &now

	pct, ok := PriceChangePercent(oldPrice, newPrice, rec.AlertThreshold)
	if !ok {
		return nil
	}
	return &models.PriceAlert{
		RecordID:       rec.ID,
		OwnerID:        rec.OwnerID,
		CardName:       rec.CardName,
		AlertType:      models.AlertTypePriceChange,
		ThresholdValue: rec.AlertThreshold,
		CurrentValue:   math.Round(pct*100) / 100,
		OldPrice:       oldPrice,
		NewPrice:       newPrice,
		TriggeredAt:    now,
	}
}

// PriceChangePercent returns the percent change from oldPrice to newPrice and whether
// it breaches threshold. No alert is possible without a threshold or a previous price.
func PriceChangePercent(oldPrice, newPrice, threshold float64) (float64, bool) {
	if threshold <= 0 || oldPrice <= 0 {
		return 0, false
	}
	pct := (newPrice - oldPrice) / oldPrice * 100
	return pct, math.Abs(pct) >= threshold
}

func sortedUnique(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
