package api

import (
	"context"
	"fmt"

	"github.com/yourorg/guest-provisioner/internal/iopkg"
	"github.com/yourorg/guest-provisioner/internal/types"
)

// checkIntakeResources verifies the master pool and operator records exist
// and are non-empty. Runs are rejected before anything is queued or started
// so a missing upload surfaces to the requester, not mid-run.
func checkIntakeResources(ctx context.Context, p types.RunParams) error {
	for _, res := range []struct{ name, uri string }{
		{"pool", p.PoolURI},
		{"operator records", p.RecordsURI},
	} {
		if !iopkg.Exists(ctx, res.uri) {
			return fmt.Errorf("%s resource missing: %s", res.name, res.uri)
		}
		lines, err := iopkg.ReadLines(ctx, res.uri)
		if err != nil {
			return fmt.Errorf("%s resource unreadable: %w", res.name, err)
		}
		if len(lines) == 0 {
			return fmt.Errorf("%s resource is empty: %s", res.name, res.uri)
		}
	}
	return nil
}
