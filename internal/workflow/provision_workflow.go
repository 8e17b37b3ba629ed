package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/yourorg/guest-provisioner/internal/activities"
	"github.com/yourorg/guest-provisioner/internal/types"
)

// ProvisionWorkflow runs one full provisioning invocation: optional side
// effect, optional pool dedupe, all-or-nothing partitioning, then batches of
// operator runs. Batches execute strictly in sequence; operators inside a
// batch run as concurrent activities. Nothing is retried: a failed creation
// call or operator stays failed, so every activity runs with a single
// attempt.
func ProvisionWorkflow(ctx workflow.Context, p types.RunParams) (types.RunSummary, error) {
	if err := p.Validate(); err != nil {
		return types.RunSummary{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	startedAt := workflow.Now(ctx).UTC().Format(time.RFC3339)

	// The side-effect command is outside the critical path: its result is
	// carried in the summary, its failure ignored.
	var se types.SideEffectResult
	if len(p.SideEffectCommand) > 0 {
		_ = workflow.ExecuteActivity(ctx, "Activities.RunSideEffect", p).Get(ctx, &se)
	}

	var operators []types.Operator
	if err := workflow.ExecuteActivity(ctx, "Activities.LoadOperators", p).Get(ctx, &operators); err != nil {
		return types.RunSummary{}, err
	}

	if p.DedupePool {
		var dd types.DedupeResult
		if err := workflow.ExecuteActivity(ctx, "Activities.DedupePool", p).Get(ctx, &dd); err != nil {
			return types.RunSummary{}, err
		}
	}

	emails := make([]string, len(operators))
	for i, op := range operators {
		emails[i] = op.Email
	}
	var part types.PartitionResult
	pp := types.PartitionParams{Run: p, Operators: emails}
	if err := workflow.ExecuteActivity(ctx, "Activities.PartitionPool", pp).Get(ctx, &part); err != nil {
		return types.RunSummary{}, err
	}

	var results []types.OperatorRunResult
	if part.Allocated {
		results = make([]types.OperatorRunResult, len(operators))
		for start := 0; start < len(operators); start += p.BatchSize {
			end := start + p.BatchSize
			if end > len(operators) {
				end = len(operators)
			}
			futures := make([]workflow.Future, end-start)
			for i := start; i < end; i++ {
				orp := types.OperatorRunParams{Operator: operators[i], Run: p}
				futures[i-start] = workflow.ExecuteActivity(ctx, "Activities.RunOperator", orp)
			}
			for i := start; i < end; i++ {
				// A failed operator activity is contained: record an empty
				// result and keep the batch bookkeeping intact.
				if err := futures[i-start].Get(ctx, &results[i]); err != nil {
					workflow.GetLogger(ctx).Error("operator run failed",
						"operator", operators[i].Email, "error", err)
					results[i] = types.OperatorRunResult{OperatorEmail: operators[i].Email}
				}
			}
		}
	}

	finishedAt := workflow.Now(ctx).UTC().Format(time.RFC3339)
	summary := activities.BuildSummary(p, part, results, se, startedAt, finishedAt)
	if err := workflow.ExecuteActivity(ctx, "Activities.WriteSummary", summary).Get(ctx, nil); err != nil {
		return summary, err
	}

	if p.ScratchSubdir != "" && !p.KeepScratch {
		cp := types.CleanupParams{ScratchSubdir: p.ScratchSubdir}
		_ = workflow.ExecuteActivity(ctx, "Activities.CleanupScratch", cp).Get(ctx, nil)
	}
	return summary, nil
}
