package types

import "errors"

// RunParams is the full input for one provisioning run. The caller (API or
// run journal) validates it before anything is queued; the pipeline assumes
// it is well formed.
type RunParams struct {
	PoolURI    string // master pool of candidate emails, file:// or s3://
	RecordsURI string // operator credential records, one per line
	StorageURI string // prefix under which per-operator chunks are written

	SuccessLedgerPath string
	FailureLedgerPath string
	SummaryURI        string // run summary JSON; empty disables it

	CutSize            int
	BatchSize          int
	WorkersPerOperator int
	TimeoutSeconds     int // per external call; 0 means the default

	DedupePool bool // dedupe the pool with badger before partitioning

	// Optional relative subdirectory under the scratch root for temp state
	// (badger dirs etc). If empty, activities may use the scratch root.
	ScratchSubdir string
	KeepScratch   bool

	// Optional side-effect command run once per invocation, outside the
	// pipeline's critical path. Its failure never aborts the run.
	SideEffectCommand []string
	SideEffectLogPath string
}

// ErrInvalidParams indicates run parameters failed validation.
var ErrInvalidParams = errors.New("invalid run parameters")

// Validate checks the parameters the front end must supply as positive
// integers and the resources the pipeline cannot run without.
func (p RunParams) Validate() error {
	if p.PoolURI == "" || p.RecordsURI == "" || p.StorageURI == "" {
		return ErrInvalidParams
	}
	if p.SuccessLedgerPath == "" || p.FailureLedgerPath == "" {
		return ErrInvalidParams
	}
	if p.CutSize <= 0 || p.BatchSize <= 0 || p.WorkersPerOperator <= 0 {
		return ErrInvalidParams
	}
	if p.TimeoutSeconds < 0 {
		return ErrInvalidParams
	}
	return nil
}

// Operator is one account-creation operator: its own email plus the
// credentials for the client-credentials token exchange. Domain is the
// suffix of the operator email, used to build guest principal names.
type Operator struct {
	Email        string
	Password     string
	ClientSecret string
	ClientID     string
	TenantID     string
	Domain       string
}

// PartitionResult reports what the partitioner did. Allocated is false when
// the pool could not cover cutSize * operators; in that case nothing was
// written and the pool is untouched.
type PartitionResult struct {
	Allocated  bool
	Operators  int
	PoolBefore int
	PoolAfter  int
	ChunkURIs  []string
}

type DedupeResult struct {
	Total  uint64
	Unique uint64
}

// PartitionParams is the partition activity input: the run plus the
// operator emails requesting chunks, in records-file order.
type PartitionParams struct {
	Run       RunParams
	Operators []string
}

// OperatorRunParams is the per-operator activity input.
type OperatorRunParams struct {
	Operator Operator
	Run      RunParams
}

// OperatorRunResult is the aggregate of one operator's run. Exactly one
// ledger entry was written for it: a failure entry when TokenFailed or
// ChunkMissing is set, a success entry otherwise.
type OperatorRunResult struct {
	OperatorEmail string
	ChunkSize     int
	Created       int
	Failed        int
	// Skipped counts attempts that were never issued to the provider because
	// the run stopped early; they are not provider failures.
	Skipped      int
	QuotaHit     bool
	TokenFailed  bool
	ChunkMissing bool
}

// SideEffectResult carries the outcome of the optional external command.
type SideEffectResult struct {
	Ran      bool
	ExitCode int
	Output   string
}

// RunSummary is the JSON document written next to the ledgers after a run.
type RunSummary struct {
	Params       RunParams           `json:"params"`
	Partition    PartitionResult     `json:"partition"`
	Operators    []OperatorRunResult `json:"operators"`
	TotalCreated int                 `json:"total_created"`
	SideEffect   SideEffectResult    `json:"side_effect"`
	StartedAt    string              `json:"started_at"`
	FinishedAt   string              `json:"finished_at"`
}

type CleanupParams struct {
	ScratchSubdir string
}
