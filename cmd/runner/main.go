package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/guest-provisioner/internal/activities"
	dbpkg "github.com/yourorg/guest-provisioner/internal/db"
	"github.com/yourorg/guest-provisioner/internal/identity"
	"github.com/yourorg/guest-provisioner/internal/iopkg"
	"github.com/yourorg/guest-provisioner/internal/ledger"
	gpmetrics "github.com/yourorg/guest-provisioner/internal/metrics"
	"github.com/yourorg/guest-provisioner/internal/pool"
	"github.com/yourorg/guest-provisioner/internal/record"
	"github.com/yourorg/guest-provisioner/internal/runner"
	"github.com/yourorg/guest-provisioner/internal/sideeffect"
	"github.com/yourorg/guest-provisioner/internal/types"
)

// The runner is the no-Temporal deployment: it polls the run journal for
// queued runs and executes the pipeline in-process.
func main() {
	ctx := context.Background()
	cfg := dbpkg.FromEnv()
	dbPool, err := dbpkg.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer dbPool.Close()

	if err := dbpkg.Migrate(ctx, dbPool); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	gpmetrics.Init()
	go func() {
		_ = gpmetrics.Serve(gpmetrics.AddrFromEnv())
	}()

	runs := dbpkg.NewRunRepo(dbPool)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		// Try to claim a run
		run, err := runs.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, dbpkg.ErrNotFound) {
				// No run; wait and retry
				<-ticker.C
				continue
			}
			zl.Error("claim error", zap.Error(err))
			<-ticker.C
			continue
		}

		summaryJSON, err := processRun(ctx, run, zl.With(zap.Int64("run", run.ID)))
		if err != nil {
			em := err.Error()
			_ = runs.UpdateStatus(ctx, run.ID, "failed", &em, summaryJSON)
			zl.Error("run failed", zap.Int64("run", run.ID), zap.Error(err))
			continue
		}
		if err := runs.UpdateStatus(ctx, run.ID, "done", nil, summaryJSON); err != nil {
			zl.Error("status update failed", zap.Int64("run", run.ID), zap.Error(err))
		}
	}
}

func processRun(ctx context.Context, run dbpkg.Run, zl *zap.Logger) ([]byte, error) {
	p, err := run.Params()
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	startedAt := time.Now().UTC().Format(time.RFC3339)

	var se types.SideEffectResult
	if len(p.SideEffectCommand) > 0 {
		se = sideeffect.Run(ctx, p.SideEffectCommand, p.SideEffectLogPath, zl)
	}

	lines, err := iopkg.ReadLines(ctx, p.RecordsURI)
	if err != nil {
		return nil, err
	}
	operators, skipped := record.ParseAll(lines)
	if skipped > 0 {
		zl.Warn("skipped malformed operator records", zap.Int("skipped", skipped))
	}
	if len(operators) == 0 {
		return nil, errors.New("no valid operator records")
	}

	emails := make([]string, len(operators))
	for i, op := range operators {
		emails[i] = op.Email
	}
	part, err := pool.Partition(ctx, p, emails, zl)
	if err != nil {
		return nil, err
	}

	var results []types.OperatorRunResult
	if part.Allocated {
		led := ledger.New(p.SuccessLedgerPath, p.FailureLedgerPath)
		timeout := time.Duration(p.TimeoutSeconds) * time.Second
		r := runner.New(identity.New(timeout, zl), led, zl)
		results = r.RunBatches(ctx, operators, p)
	}

	finishedAt := time.Now().UTC().Format(time.RFC3339)
	summary := activities.BuildSummary(p, part, results, se, startedAt, finishedAt)
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, err
	}
	if p.SummaryURI != "" {
		if err := iopkg.WriteLines(ctx, p.SummaryURI, []string{string(summaryJSON)}); err != nil {
			zl.Warn("summary write failed", zap.Error(err))
		}
	}
	if err := ledger.New(p.SuccessLedgerPath, p.FailureLedgerPath).Touch(); err != nil {
		zl.Warn("ledger touch failed", zap.Error(err))
	}
	return summaryJSON, nil
}
