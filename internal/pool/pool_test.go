package pool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/yourorg/guest-provisioner/internal/iopkg"
	"github.com/yourorg/guest-provisioner/internal/types"
)

func writePool(t *testing.T, dir string, n int) (string, []string) {
	t.Helper()
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("user%03d@ext.io", i)
	}
	uri := "file://" + filepath.Join(dir, "pool.txt")
	if err := iopkg.WriteLines(context.Background(), uri, lines); err != nil {
		t.Fatal(err)
	}
	return uri, lines
}

func params(poolURI, storageURI string, cut int) types.RunParams {
	return types.RunParams{
		PoolURI:    poolURI,
		StorageURI: storageURI,
		CutSize:    cut,
	}
}

func TestPartition(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	poolURI, original := writePool(t, dir, 100)
	storage := "file://" + filepath.Join(dir, "storage")
	ops := []string{"op1@contoso.com", "op2@contoso.com"}

	res, err := Partition(ctx, params(poolURI, storage, 10), ops, zap.NewNop())
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if !res.Allocated {
		t.Fatal("expected allocation")
	}
	if res.PoolBefore != 100 || res.PoolAfter != 80 {
		t.Fatalf("pool before=%d after=%d", res.PoolBefore, res.PoolAfter)
	}

	// each operator's chunk is the next cut-size slice of the original pool
	for i, op := range ops {
		chunk, err := iopkg.ReadLines(ctx, ChunkURI(storage, op))
		if err != nil {
			t.Fatalf("read chunk %s: %v", op, err)
		}
		if len(chunk) != 10 {
			t.Fatalf("chunk %s has %d records", op, len(chunk))
		}
		for j, line := range chunk {
			if want := original[i*10+j]; line != want {
				t.Fatalf("chunk %s[%d]=%q; want %q", op, j, line, want)
			}
		}
	}

	// persisted pool equals the original tail
	rest, err := iopkg.ReadLines(ctx, poolURI)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 80 {
		t.Fatalf("pool has %d records", len(rest))
	}
	for i, line := range rest {
		if line != original[20+i] {
			t.Fatalf("pool[%d]=%q; want %q", i, line, original[20+i])
		}
	}
}

func TestPartitionInsufficientPool(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	poolURI, original := writePool(t, dir, 15)
	storageDir := filepath.Join(dir, "storage")
	storage := "file://" + storageDir
	ops := []string{"op1@contoso.com", "op2@contoso.com"}

	res, err := Partition(ctx, params(poolURI, storage, 10), ops, zap.NewNop())
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if res.Allocated {
		t.Fatal("expected no allocation")
	}
	if len(res.ChunkURIs) != 0 {
		t.Fatalf("chunk URIs written: %v", res.ChunkURIs)
	}
	if _, err := os.Stat(storageDir); !os.IsNotExist(err) {
		t.Fatalf("storage dir created despite shortfall: %v", err)
	}
	// pool unchanged
	rest, _ := iopkg.ReadLines(ctx, poolURI)
	if len(rest) != len(original) {
		t.Fatalf("pool mutated: %d records", len(rest))
	}
}

func TestPartitionExactFit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	poolURI, _ := writePool(t, dir, 20)
	storage := "file://" + filepath.Join(dir, "storage")

	res, err := Partition(ctx, params(poolURI, storage, 10),
		[]string{"a@x.io", "b@x.io"}, zap.NewNop())
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if !res.Allocated || res.PoolAfter != 0 {
		t.Fatalf("allocated=%v after=%d", res.Allocated, res.PoolAfter)
	}
	rest, _ := iopkg.ReadLines(ctx, poolURI)
	if len(rest) != 0 {
		t.Fatalf("pool should be empty, has %d", len(rest))
	}
}
