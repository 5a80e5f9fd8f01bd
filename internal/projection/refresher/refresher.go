// Package refresher keeps the balance snapshot cache current. It reacts
// to operation events by refreshing the touched (wallet, asset) pairs
// through a bounded worker pool, and runs a periodic full rebuild that
// repairs anything the event path missed.
package refresher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/virtual-currency-ledger/internal/domain/shared"
)

// PairRefresher is the projector surface the refresher drives
type PairRefresher interface {
	RefreshPair(ctx context.Context, walletID, assetTypeID int64) error
	RefreshAll(ctx context.Context) (int, error)
}

// SnapshotRefresher submits snapshot refresh work to an ants pool. The
// pool bounds concurrent reads against the authoritative store no matter
// how fast events arrive.
type SnapshotRefresher struct {
	logger    *slog.Logger
	pool      *ants.Pool
	projector PairRefresher
}

// NewSnapshotRefresher creates a refresher with a worker pool of the given size
func NewSnapshotRefresher(logger *slog.Logger, projector PairRefresher, poolSize int) (*SnapshotRefresher, error) {
	pool, err := ants.NewPool(poolSize, ants.WithLogger(&antsLoggerAdapter{logger: logger}))
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot refresher pool: %w", err)
	}
	logger.Info("Snapshot refresher pool created", "size", poolSize)
	return &SnapshotRefresher{
		logger:    logger,
		pool:      pool,
		projector: projector,
	}, nil
}

// HandleMessage processes one operation event: every touched pair is
// refreshed on the pool, and the call blocks until all pairs finish so a
// failed refresh keeps the message uncommitted for redelivery.
func (r *SnapshotRefresher) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.OperationEvent
	if err := json.Unmarshal(value, &event); err != nil {
		// A malformed payload will never parse on redelivery; log and drop.
		r.logger.Error("Dropping undecodable operation event",
			"key", string(key),
			"error", err)
		return nil
	}

	if event.Stage != shared.StageCompleted {
		r.logger.Debug("Ignoring non-completed operation event",
			"reference_key", event.ReferenceKey,
			"stage", event.Stage)
		return nil
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		firstErr  error
		submitErr error
	)
	for _, pair := range event.Pairs {
		pair := pair
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			if err := r.projector.RefreshPair(ctx, pair.WalletID, pair.AssetTypeID); err != nil {
				r.logger.Error("Failed to refresh snapshot pair",
					"wallet_id", pair.WalletID,
					"asset_type_id", pair.AssetTypeID,
					"reference_key", event.ReferenceKey,
					"error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
		if err != nil {
			// The rejected job never ran; jobs submitted before it may
			// still be running, so fall through to the wait below
			wg.Done()
			submitErr = fmt.Errorf("failed to submit snapshot refresh job: %w", err)
			break
		}
	}
	wg.Wait()

	if submitErr != nil {
		return submitErr
	}
	if firstErr != nil {
		return fmt.Errorf("snapshot refresh for reference key %s: %w", event.ReferenceKey, firstErr)
	}
	r.logger.Debug("Refreshed snapshots for operation",
		"reference_key", event.ReferenceKey,
		"pairs", len(event.Pairs))
	return nil
}

// RunPeriodic rebuilds the whole cache on the given interval until the
// context is canceled. The full rebuild also covers pairs whose events
// were lost, so cache staleness is bounded by the interval.
func (r *SnapshotRefresher) RunPeriodic(ctx context.Context, interval time.Duration, refreshOnStart bool) {
	if refreshOnStart {
		r.refreshAll(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping periodic snapshot refresh")
			return
		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

func (r *SnapshotRefresher) refreshAll(ctx context.Context) {
	start := time.Now()
	refreshed, err := r.projector.RefreshAll(ctx)
	if err != nil {
		r.logger.Error("Full snapshot refresh finished with errors",
			"refreshed", refreshed,
			"duration", time.Since(start),
			"error", err)
		return
	}
	r.logger.Info("Full snapshot refresh complete",
		"refreshed", refreshed,
		"duration", time.Since(start))
}

// Close releases the worker pool
func (r *SnapshotRefresher) Close() {
	r.pool.Release()
	r.logger.Info("Snapshot refresher pool released")
}

// antsLoggerAdapter routes ants' internal logging through slog
type antsLoggerAdapter struct {
	logger *slog.Logger
}

func (a *antsLoggerAdapter) Printf(format string, args ...interface{}) {
	a.logger.Info(fmt.Sprintf(format, args...))
}
