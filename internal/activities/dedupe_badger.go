package activities

import (
	"context"
	"path/filepath"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/dgraph-io/badger/v4"

	"github.com/yourorg/guest-provisioner/internal/iopkg"
	"github.com/yourorg/guest-provisioner/internal/types"
)

// DedupePool removes duplicate candidate emails from the master pool before
// partitioning, keeping the first occurrence so chunk allocation order is
// preserved. Duplicates would otherwise burn provider quota on doomed calls.
// The seen-set lives in an on-disk badger store so arbitrarily large pools
// don't need to fit their key set in memory.
func (a *Activities) DedupePool(ctx context.Context, p types.RunParams) (types.DedupeResult, error) {
	lines, err := iopkg.ReadLines(ctx, p.PoolURI)
	if err != nil {
		return types.DedupeResult{}, err
	}

	dbpath := filepath.Join(a.cfg.ScratchDir, p.ScratchSubdir, "pool-dedupe.badger")
	opts := badger.DefaultOptions(dbpath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return types.DedupeResult{}, err
	}
	defer db.Close()

	kept := make([]string, 0, len(lines))
	var res types.DedupeResult
	lastHB := time.Now()
	for _, line := range lines {
		res.Total++
		k := []byte(line)
		err := db.Update(func(txn *badger.Txn) error {
			_, e := txn.Get(k)
			if e == badger.ErrKeyNotFound {
				kept = append(kept, line)
				return txn.Set(k, []byte{1})
			}
			return e
		})
		if err != nil {
			return types.DedupeResult{}, err
		}
		if res.Total%5000 == 0 || time.Since(lastHB) > 10*time.Second {
			if activity.IsActivity(ctx) {
				activity.RecordHeartbeat(ctx, res.Total)
			}
			lastHB = time.Now()
		}
	}
	res.Unique = uint64(len(kept))

	if res.Unique < res.Total {
		if err := iopkg.WriteLines(ctx, p.PoolURI, kept); err != nil {
			return types.DedupeResult{}, err
		}
		a.logger.Info("deduped pool",
			zap.Uint64("total", res.Total), zap.Uint64("unique", res.Unique))
	}
	return res, nil
}
