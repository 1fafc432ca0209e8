package importer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/metrics"
	"github.com/codyseavey/tcg-inventory/internal/models"
)

const (
	progressEvery = 10
	maxRowErrors  = 50
)

// RecordWriter stores one canonical row, merging it into an existing holding when the
// identity key matches
type RecordWriter interface {
	MergeOrInsert(ctx context.Context, rec *models.InventoryRecord) (id uint, merged bool, err error)
}

// ProgressFunc receives reconciliation progress. It is called every few rows and once
// more after the last row.
type ProgressFunc func(current, total int, cardName string)

type RowError struct {
	Row      int    `json:"row"`
	CardName string `json:"card_name,omitempty"`
	Reason   string `json:"reason"`
}

type ReconcileResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Errors   int `json:"errors"`
	// RecordIDs holds every touched record once, in first-touched order
	RecordIDs []uint     `json:"-"`
	RowErrors []RowError `json:"row_errors,omitempty"`
}

type Reconciler struct {
	store RecordWriter
	log   logrus.FieldLogger
}

func NewReconciler(store RecordWriter, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

// Reconcile merges rows into ownerID's inventory. Each row is stored on its own, so a
// failing row is counted and skipped without affecting the others.
func (r *Reconciler) Reconcile(ctx context.Context, rows []CanonicalRow, ownerID string, progress ProgressFunc) ReconcileResult {
	var result ReconcileResult
	seen := make(map[uint]bool, len(rows))
	total := len(rows)

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			r.log.Warnf("Reconciler: stopped after %d of %d rows: %v", i, total, err)
			result.Errors += total - i
			break
		}

		if !row.Valid {
			result.addError(row, row.Reason)
			metrics.ImportRowsTotal.WithLabelValues("invalid").Inc()
		} else {
			rec := row.Record(ownerID)
			id, merged, err := r.store.MergeOrInsert(ctx, &rec)
			switch {
			case err != nil:
				r.log.Warnf("Reconciler: row %d (%s) failed: %v", row.RowNumber, row.CardName, err)
				result.addError(row, fmt.Sprintf("failed to save: %v", err))
				metrics.ImportRowsTotal.WithLabelValues("failed").Inc()
			case merged:
				result.Updated++
				metrics.ImportRowsTotal.WithLabelValues("merged").Inc()
			default:
				result.Inserted++
				metrics.ImportRowsTotal.WithLabelValues("inserted").Inc()
			}
			if err == nil && !seen[id] {
				seen[id] = true
				result.RecordIDs = append(result.RecordIDs, id)
			}
		}

		if progress != nil && (i+1)%progressEvery == 0 {
			progress(i+1, total, row.CardName)
		}
	}

	if progress != nil {
		progress(total, total, "")
	}

	r.log.Infof("Reconciler: owner %s: %d inserted, %d merged, %d errors", ownerID, result.Inserted, result.Updated, result.Errors)
	return result
}

func (res *ReconcileResult) addError(row CanonicalRow, reason string) {
	res.Errors++
	if len(res.RowErrors) < maxRowErrors {
		res.RowErrors = append(res.RowErrors, RowError{Row: row.RowNumber, CardName: row.CardName, Reason: reason})
	}
}
