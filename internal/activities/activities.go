// Package activities wraps the pipeline's components as Temporal activities.
// The activities are thin: partitioning, operator runs, and reporting live
// in their own packages and are reused verbatim by the non-Temporal runner
// binary.
package activities

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/yourorg/guest-provisioner/internal/identity"
	"github.com/yourorg/guest-provisioner/internal/iopkg"
	"github.com/yourorg/guest-provisioner/internal/ledger"
	"github.com/yourorg/guest-provisioner/internal/pool"
	"github.com/yourorg/guest-provisioner/internal/record"
	"github.com/yourorg/guest-provisioner/internal/runner"
	"github.com/yourorg/guest-provisioner/internal/sideeffect"
	"github.com/yourorg/guest-provisioner/internal/types"
)

type Config struct {
	ScratchDir string
}

type Activities struct {
	cfg    Config
	logger *zap.Logger

	// provider overrides the real identity client in tests.
	provider identity.Provider

	// Operators in the same batch run as concurrent activities in this
	// worker process; their ledger appends must share one mutex, so ledgers
	// are pooled per path pair.
	mu      sync.Mutex
	ledgers map[string]*ledger.Ledger
}

func New(cfg Config, logger *zap.Logger) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activities{
		cfg:     cfg,
		logger:  logger,
		ledgers: make(map[string]*ledger.Ledger),
	}
}

func (a *Activities) ledgerFor(p types.RunParams) *ledger.Ledger {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := p.SuccessLedgerPath + "\x00" + p.FailureLedgerPath
	l, ok := a.ledgers[key]
	if !ok {
		l = ledger.New(p.SuccessLedgerPath, p.FailureLedgerPath)
		a.ledgers[key] = l
	}
	return l
}

func (a *Activities) providerFor(p types.RunParams) identity.Provider {
	if a.provider != nil {
		return a.provider
	}
	return identity.New(time.Duration(p.TimeoutSeconds)*time.Second, a.logger)
}

// LoadOperators reads and parses the operator records resource, skipping
// malformed lines the way the intake validation does.
func (a *Activities) LoadOperators(ctx context.Context, p types.RunParams) ([]types.Operator, error) {
	lines, err := iopkg.ReadLines(ctx, p.RecordsURI)
	if err != nil {
		return nil, err
	}
	ops, skipped := record.ParseAll(lines)
	if skipped > 0 {
		a.logger.Warn("skipped malformed operator records", zap.Int("skipped", skipped))
	}
	if len(ops) == 0 {
		return nil, errors.New("no valid operator records")
	}
	return ops, nil
}

// PartitionPool allocates one chunk per operator, all-or-nothing.
func (a *Activities) PartitionPool(ctx context.Context, p types.PartitionParams) (types.PartitionResult, error) {
	return pool.Partition(ctx, p.Run, p.Operators, a.logger)
}

// RunOperator drives one operator's full state machine, heartbeating after
// every completed creation attempt.
func (a *Activities) RunOperator(ctx context.Context, p types.OperatorRunParams) (types.OperatorRunResult, error) {
	r := runner.New(a.providerFor(p.Run), a.ledgerFor(p.Run), a.logger)
	if activity.IsActivity(ctx) {
		r.OnProgress = func(operator string, done, total int) {
			activity.RecordHeartbeat(ctx, map[string]any{
				"operator": operator, "done": done, "total": total,
			})
		}
	}
	return r.RunOperator(ctx, p.Operator, p.Run), nil
}

// RunSideEffect executes the optional external command. It never returns an
// error: failures are part of the result, reported and ignored.
func (a *Activities) RunSideEffect(ctx context.Context, p types.RunParams) (types.SideEffectResult, error) {
	return sideeffect.Run(ctx, p.SideEffectCommand, p.SideEffectLogPath, a.logger), nil
}

// WriteSummary touches the ledgers and persists the run summary JSON when a
// summary resource is configured.
func (a *Activities) WriteSummary(ctx context.Context, s types.RunSummary) error {
	if err := a.ledgerFor(s.Params).Touch(); err != nil {
		return err
	}
	if s.Params.SummaryURI == "" {
		return nil
	}
	return writeSummary(ctx, s)
}
