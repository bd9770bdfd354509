package db

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"logfort/internal/metrics"
)

// sweepChunkSize bounds how many rows one delete statement may touch, so
// a sweep never holds a long-lived transaction against the ingest write path.
const sweepChunkSize = 500

// SnapshotCutoff returns the expiry boundary for a snapshot created at
// the given time under the given retention.
func SnapshotCutoff(createdAt time.Time, retentionDays int) time.Time {
	return createdAt.Add(time.Duration(retentionDays) * 24 * time.Hour)
}

func sweepExpired(db *gorm.DB, model interface{}, now time.Time) (int64, error) {
	var total int64
	for {
		sub := db.Model(model).Select("id").
			Where("expires_at IS NOT NULL AND expires_at <= ?", now).
			Limit(sweepChunkSize)
		res := db.Where("id IN (?)", sub).Delete(model)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if res.RowsAffected < sweepChunkSize {
			return total, nil
		}
	}
}

// RunRetentionOnce performs a single sweep pass over inventory snapshots
// and security events. Deleting zero rows is a normal outcome.
func RunRetentionOnce(db *gorm.DB, log *zap.Logger) error {
	now := time.Now()

	snaps, err := sweepExpired(db, &InventorySnapshot{}, now)
	if err != nil {
		return err
	}
	metrics.SweeperDeletions.WithLabelValues("inventory_snapshot").Add(float64(snaps))

	events, err := sweepExpired(db, &SecurityEvent{}, now)
	if err != nil {
		return err
	}
	metrics.SweeperDeletions.WithLabelValues("security_event").Add(float64(events))

	if snaps > 0 || events > 0 {
		log.Info("retention sweep complete",
			zap.Int64("snapshots_deleted", snaps),
			zap.Int64("events_deleted", events))
	}
	return nil
}

// StartRetentionWorker launches a background goroutine that runs the
// retention sweep once at startup and then once per day. It is
// independent of request handling and safe to run repeatedly.
func StartRetentionWorker(db *gorm.DB, log *zap.Logger) {
	go func() {
		if err := RunRetentionOnce(db, log); err != nil {
			log.Error("retention sweep failed (startup)", zap.Error(err))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if err := RunRetentionOnce(db, log); err != nil {
				log.Error("retention sweep failed", zap.Error(err))
			}
		}
	}()
}
