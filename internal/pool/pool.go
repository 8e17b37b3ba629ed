// Package pool owns the master pool of candidate emails. The partitioner is
// the only writer: it allocates fixed-size chunks to operators and shrinks
// the pool in a single commit. No other component may open the pool for
// writing.
package pool

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/guest-provisioner/internal/iopkg"
	"github.com/yourorg/guest-provisioner/internal/metrics"
	"github.com/yourorg/guest-provisioner/internal/types"
)

// ChunkURI returns the operator-scoped chunk resource under the storage
// prefix. Chunks are written once here and read-only afterward.
func ChunkURI(storageURI, operatorEmail string) string {
	return iopkg.Join(storageURI, operatorEmail+".txt")
}

// Partition takes cutSize records off the front of the pool for each
// operator, in order. All-or-nothing: if the pool cannot cover
// cutSize * len(operators) records, nothing is allocated and the pool is
// untouched. Chunks are written first; the shrunk pool is persisted last in
// one atomic commit, so a crash mid-allocation leaves the pool intact and
// at worst some orphan chunk files that the next full run overwrites.
func Partition(ctx context.Context, p types.RunParams, operators []string, logger *zap.Logger) (types.PartitionResult, error) {
	lines, err := iopkg.ReadLines(ctx, p.PoolURI)
	if err != nil {
		return types.PartitionResult{}, fmt.Errorf("read pool: %w", err)
	}

	res := types.PartitionResult{
		Operators:  len(operators),
		PoolBefore: len(lines),
		PoolAfter:  len(lines),
	}
	needed := p.CutSize * len(operators)
	if needed > len(lines) {
		logger.Warn("insufficient pool records",
			zap.Int("needed", needed), zap.Int("have", len(lines)))
		return res, nil
	}

	for i, op := range operators {
		chunk := lines[i*p.CutSize : (i+1)*p.CutSize]
		uri := ChunkURI(p.StorageURI, op)
		if err := iopkg.WriteLines(ctx, uri, chunk); err != nil {
			return res, fmt.Errorf("write chunk for %s: %w", op, err)
		}
		res.ChunkURIs = append(res.ChunkURIs, uri)
	}

	if err := iopkg.WriteLines(ctx, p.PoolURI, lines[needed:]); err != nil {
		return res, fmt.Errorf("persist pool: %w", err)
	}

	res.Allocated = true
	res.PoolAfter = len(lines) - needed
	metrics.RecordsPartitioned.Add(float64(needed))
	logger.Info("partitioned pool",
		zap.Int("operators", len(operators)),
		zap.Int("cutSize", p.CutSize),
		zap.Int("remaining", res.PoolAfter))
	return res, nil
}
