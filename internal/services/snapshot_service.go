package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/database"
	"github.com/codyseavey/tcg-inventory/internal/metrics"
	"github.com/codyseavey/tcg-inventory/internal/models"
)

// SnapshotSource provides the owners and inventory totals that snapshots record
type SnapshotSource interface {
	Owners(ctx context.Context) ([]string, error)
	Stats(ctx context.Context, ownerID string) (*models.InventoryStats, error)
}

// SnapshotService records each owner's inventory value once a day
type SnapshotService struct {
	source        SnapshotSource
	store         *database.SnapshotStore
	snapshotHour  int // Hour of day to take snapshot (0-23)
	checkInterval time.Duration
	now           func() time.Time
	log           logrus.FieldLogger
}

func NewSnapshotService(source SnapshotSource, store *database.SnapshotStore, snapshotHour int, log logrus.FieldLogger) *SnapshotService {
	if snapshotHour < 0 || snapshotHour > 23 {
		snapshotHour = 23
	}
	return &SnapshotService{
		source:        source,
		store:         store,
		snapshotHour:  snapshotHour,
		checkInterval: 15 * time.Minute,
		now:           time.Now,
		log:           log,
	}
}

// Start begins the background snapshot worker
func (s *SnapshotService) Start(ctx context.Context) {
	s.log.Info("Snapshot service started: will record daily inventory value")

	s.checkAndSnapshot(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Snapshot service stopping...")
			return
		case <-ticker.C:
			s.checkAndSnapshot(ctx)
		}
	}
}

// checkAndSnapshot snapshots every owner without one for today, once the configured
// hour has passed
func (s *SnapshotService) checkAndSnapshot(ctx context.Context) {
	now := s.now()
	if now.Hour() < s.snapshotHour {
		return
	}
	if _, err := s.TakeSnapshots(ctx, false); err != nil {
		s.log.Errorf("Snapshot service: failed to take snapshots: %v", err)
	}
}

// TakeSnapshots records today's value for each owner. Owners that already have today's
// snapshot are skipped unless force is set. Returns the number of snapshots written.
func (s *SnapshotService) TakeSnapshots(ctx context.Context, force bool) (int, error) {
	owners, err := s.source.Owners(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	today := startOfDay(now)
	var totalValue float64
	var totalCards int64
	written := 0

	for _, owner := range owners {
		stats, err := s.source.Stats(ctx, owner)
		if err != nil {
			s.log.Warnf("Snapshot service: failed to load stats for %s: %v", owner, err)
			continue
		}
		totalValue += stats.TotalValue
		totalCards += stats.TotalCards

		if !force {
			exists, err := s.store.HasSnapshot(ctx, owner, today)
			if err != nil {
				s.log.Warnf("Snapshot service: failed to check snapshot for %s: %v", owner, err)
				continue
			}
			if exists {
				continue
			}
		}

		snapshot := &models.InventoryValueSnapshot{
			OwnerID:      owner,
			SnapshotDate: today,
			TotalCards:   stats.TotalCards,
			UniqueCards:  stats.UniqueCards,
			TotalValue:   stats.TotalValue,
			CreatedAt:    now,
		}
		if err := s.store.Save(ctx, snapshot); err != nil {
			s.log.Warnf("Snapshot service: failed to save snapshot for %s: %v", owner, err)
			continue
		}
		written++
	}

	metrics.CollectionValueUSD.Set(totalValue)
	metrics.CollectionCardsTotal.Set(float64(totalCards))

	if written > 0 {
		s.log.Infof("Snapshot service: recorded %d snapshots for %s (total: $%.2f, cards: %d)",
			written, today.Format("2006-01-02"), totalValue, totalCards)
	}
	return written, nil
}

// History returns ownerID's snapshots for a period: week, month, 3month, year or all.
// Unknown periods default to month.
func (s *SnapshotService) History(ctx context.Context, ownerID, period string) (*models.ValueHistoryResponse, error) {
	now := s.now()
	var startDate time.Time

	switch period {
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "3month":
		startDate = now.AddDate(0, -3, 0)
	case "year":
		startDate = now.AddDate(-1, 0, 0)
	case "all":
		startDate = time.Time{}
	default:
		period = "month"
		startDate = now.AddDate(0, -1, 0)
	}

	snapshots, err := s.store.History(ctx, ownerID, startDate)
	if err != nil {
		return nil, err
	}
	return &models.ValueHistoryResponse{Snapshots: snapshots, Period: period}, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
