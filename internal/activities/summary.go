package activities

import (
	"context"
	"encoding/json"

	"github.com/yourorg/guest-provisioner/internal/iopkg"
	"github.com/yourorg/guest-provisioner/internal/types"
)

func writeSummary(ctx context.Context, s types.RunSummary) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return iopkg.WriteLines(ctx, s.Params.SummaryURI, []string{string(b)})
}

// BuildSummary assembles the run summary from the pieces the workflow (or
// the standalone runner) collected.
func BuildSummary(p types.RunParams, part types.PartitionResult, results []types.OperatorRunResult, se types.SideEffectResult, startedAt, finishedAt string) types.RunSummary {
	total := 0
	for _, r := range results {
		total += r.Created
	}
	return types.RunSummary{
		Params:       p,
		Partition:    part,
		Operators:    results,
		TotalCreated: total,
		SideEffect:   se,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}
}
