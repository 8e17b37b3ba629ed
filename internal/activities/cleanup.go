package activities

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/yourorg/guest-provisioner/internal/types"
)

// CleanupScratch removes the run's scratch subdirectory under the configured
// scratch root. Safe to call even if the directory doesn't exist.
func (a *Activities) CleanupScratch(ctx context.Context, p types.CleanupParams) error {
	sub := filepath.Clean(p.ScratchSubdir)
	if sub == "." || sub == "" || sub == "/" || sub == ".." {
		// Safety: never allow deleting the entire scratch root or going up the tree.
		return errors.New("invalid scratch subdir for cleanup")
	}
	return os.RemoveAll(filepath.Join(a.cfg.ScratchDir, sub))
}
