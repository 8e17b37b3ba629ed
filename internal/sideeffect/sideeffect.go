// Package sideeffect runs the optional external provisioning command once
// per run, outside the pipeline's critical path. Its output is surfaced
// verbatim to the requester; its failure never blocks or alters the
// pipeline.
package sideeffect

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/guest-provisioner/internal/types"
)

// Run executes the command and collects combined stdout/stderr. When the
// command maintains its own log file, that file's content replaces the
// combined output after a successful exit. A missing executable reports
// exit code -1 with an explanatory message instead of an error.
func Run(ctx context.Context, command []string, logPath string, logger *zap.Logger) types.SideEffectResult {
	if len(command) == 0 {
		return types.SideEffectResult{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	out, err := cmd.CombinedOutput()
	res := types.SideEffectResult{Ran: true, Output: strings.TrimSpace(string(out))}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		default:
			// command not found, not executable, context cancelled
			res.ExitCode = -1
			if res.Output == "" {
				res.Output = err.Error()
			}
		}
		logger.Warn("side-effect command failed",
			zap.Strings("command", command),
			zap.Int("exitCode", res.ExitCode),
			zap.Error(err))
		return res
	}

	if logPath != "" {
		if b, rerr := os.ReadFile(logPath); rerr == nil {
			res.Output = strings.TrimSpace(string(b))
		}
	}
	logger.Info("side-effect command finished", zap.Strings("command", command))
	return res
}
