package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/jobs"
)

// MonitorStore lists the records the price monitor watches
type MonitorStore interface {
	OwnersWithAlerts(ctx context.Context) ([]string, error)
	AlertEnabledIDs(ctx context.Context, ownerID string) ([]uint, error)
}

// PriceMonitor periodically re-prices every record with an alert threshold so alerts
// fire without a manual refresh
type PriceMonitor struct {
	store    MonitorStore
	enricher *Enricher
	lock     jobs.OwnerLock
	interval time.Duration
	log      logrus.FieldLogger
}

type MonitorStatus struct {
	Owners  int `json:"owners"`
	Checked int `json:"checked"`
	Alerts  int `json:"alerts"`
}

func NewPriceMonitor(store MonitorStore, enricher *Enricher, lock jobs.OwnerLock, interval time.Duration, log logrus.FieldLogger) *PriceMonitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PriceMonitor{
		store:    store,
		enricher: enricher,
		lock:     lock,
		interval: interval,
		log:      log,
	}
}

// Start runs a check immediately and then every interval until ctx is cancelled
func (m *PriceMonitor) Start(ctx context.Context) {
	m.log.Infof("Price monitor started: checking alert thresholds every %v", m.interval)

	m.runAndLog(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Price monitor stopping...")
			return
		case <-ticker.C:
			m.runAndLog(ctx)
		}
	}
}

func (m *PriceMonitor) runAndLog(ctx context.Context) {
	status, err := m.RunOnce(ctx)
	if err != nil {
		m.log.Errorf("Price monitor: check failed: %v", err)
		return
	}
	if status.Checked > 0 {
		m.log.Infof("Price monitor: checked %d cards for %d owners, %d alerts", status.Checked, status.Owners, status.Alerts)
	}
}

// RunOnce re-prices the alert-enabled records of every owner under the owner's job
// lock. Owners with a job in progress are skipped until the next run.
func (m *PriceMonitor) RunOnce(ctx context.Context) (MonitorStatus, error) {
	var status MonitorStatus

	owners, err := m.store.OwnersWithAlerts(ctx)
	if err != nil {
		return status, err
	}

	for _, owner := range owners {
		if ctx.Err() != nil {
			return status, ctx.Err()
		}
		res, err := m.checkOwner(ctx, owner)
		if errors.Is(err, jobs.ErrJobActive) {
			m.log.Debugf("Price monitor: skipping %s, job in progress", owner)
			continue
		}
		if err != nil {
			m.log.Warnf("Price monitor: check for %s failed: %v", owner, err)
			continue
		}

		status.Owners++
		status.Checked += res.Updated + res.NotFound
		status.Alerts += res.Alerts
	}
	return status, nil
}

func (m *PriceMonitor) checkOwner(ctx context.Context, owner string) (EnrichResult, error) {
	release, err := m.lock.Acquire(ctx, owner)
	if err != nil {
		return EnrichResult{}, err
	}
	defer release()

	ids, err := m.store.AlertEnabledIDs(ctx, owner)
	if err != nil {
		return EnrichResult{}, err
	}
	return m.enricher.Enrich(ctx, owner, ids, nil)
}
