// Package runner drives one provisioning run: per-operator state machine
// (token fetch, bounded-concurrency creation, ledger report) and batch-level
// scheduling across operators.
package runner

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yourorg/guest-provisioner/internal/identity"
	"github.com/yourorg/guest-provisioner/internal/iopkg"
	"github.com/yourorg/guest-provisioner/internal/ledger"
	"github.com/yourorg/guest-provisioner/internal/metrics"
	"github.com/yourorg/guest-provisioner/internal/pool"
	"github.com/yourorg/guest-provisioner/internal/types"
)

type Runner struct {
	Provider identity.Provider
	Ledger   *ledger.Ledger
	Logger   *zap.Logger

	// OnProgress, when set, is called after every completed creation attempt
	// for an operator. Activity wrappers use it to heartbeat.
	OnProgress func(operatorEmail string, done, total int)
}

func New(provider identity.Provider, led *ledger.Ledger, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Provider: provider, Ledger: led, Logger: logger}
}

// RunOperator executes the per-operator state machine. Exactly one ledger
// entry is written on every path: a failure entry when the token exchange
// fails or the chunk resource is missing, a success entry with the created
// count otherwise.
func (r *Runner) RunOperator(ctx context.Context, op types.Operator, p types.RunParams) types.OperatorRunResult {
	res := types.OperatorRunResult{OperatorEmail: op.Email}
	log := r.Logger.With(zap.String("operator", op.Email))

	token, err := r.Provider.AcquireToken(ctx, op.ClientID, op.TenantID, op.ClientSecret)
	if err != nil {
		log.Error("credential exchange failed", zap.Error(err))
		res.TokenFailed = true
		r.reportFailure(op.Email, log)
		return res
	}

	emails, err := iopkg.ReadLines(ctx, pool.ChunkURI(p.StorageURI, op.Email))
	if err != nil {
		log.Error("chunk missing", zap.Error(err))
		res.ChunkMissing = true
		r.reportFailure(op.Email, log)
		return res
	}
	res.ChunkSize = len(emails)

	res.Created, res.Failed, res.Skipped, res.QuotaHit = r.createAll(ctx, token, op, emails, p.WorkersPerOperator)

	metrics.AccountsCreated.Add(float64(res.Created))
	metrics.CreationFailures.Add(float64(res.Failed))
	if res.QuotaHit {
		metrics.QuotaStops.Inc()
	}
	if err := r.Ledger.Success(op.Email, res.Created); err != nil {
		log.Error("ledger append failed", zap.Error(err))
	} else {
		metrics.OperatorsSucceeded.Inc()
	}
	log.Info("operator run finished",
		zap.Int("created", res.Created),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Bool("quotaHit", res.QuotaHit))
	return res
}

// attempt is one candidate's result inside createAll. Skipped attempts were
// never issued to the provider and carry no outcome.
type attempt struct {
	outcome identity.Outcome
	skipped bool
}

// createAll launches one creation attempt per chunk email, with at most
// workers calls in flight, and consumes results as they complete. On the
// first quota signal it cancels the shared context: attempts that have not
// started yet are skipped and in-flight calls are cut off by their HTTP
// context. Calls the provider already accepted may still land on its side;
// the ledger only reflects Created results observed here. Failed counts only
// calls actually issued; never-issued attempts count as skipped.
func (r *Runner) createAll(parent context.Context, token string, op types.Operator, emails []string, workers int) (created, failed, skipped int, quotaHit bool) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sem := make(chan struct{}, workers)
	attempts := make(chan attempt, len(emails))
	var wg sync.WaitGroup
	for _, email := range emails {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				attempts <- attempt{skipped: true}
				return
			}
			defer func() { <-sem }()
			attempts <- attempt{outcome: r.Provider.CreateGuest(ctx, token, email, op.Domain)}
		}(email)
	}

	for done := 0; done < len(emails); done++ {
		a := <-attempts
		switch {
		case a.skipped:
			skipped++
		case a.outcome.Kind == identity.OutcomeCreated:
			created++
		case a.outcome.Kind == identity.OutcomeQuotaExceeded:
			quotaHit = true
			cancel()
		default:
			failed++
		}
		if r.OnProgress != nil {
			r.OnProgress(op.Email, done+1, len(emails))
		}
	}
	wg.Wait()
	return created, failed, skipped, quotaHit
}

func (r *Runner) reportFailure(operatorEmail string, log *zap.Logger) {
	if err := r.Ledger.Failure(operatorEmail); err != nil {
		log.Error("failure ledger append failed", zap.Error(err))
		return
	}
	metrics.OperatorsFailed.Inc()
}

// RunBatches splits operators into consecutive groups of at most batchSize
// and runs each group concurrently, groups strictly in sequence. A panic in
// one operator's run is contained at the operator boundary and does not
// abort its batch.
func (r *Runner) RunBatches(ctx context.Context, operators []types.Operator, p types.RunParams) []types.OperatorRunResult {
	results := make([]types.OperatorRunResult, len(operators))
	for start := 0; start < len(operators); start += p.BatchSize {
		end := min(start+p.BatchSize, len(operators))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer func() {
					if rec := recover(); rec != nil {
						r.Logger.Error("operator run panicked",
							zap.String("operator", operators[i].Email),
							zap.Any("panic", rec))
						results[i] = types.OperatorRunResult{OperatorEmail: operators[i].Email}
					}
				}()
				results[i] = r.RunOperator(ctx, operators[i], p)
			}(i)
		}
		wg.Wait()
	}
	return results
}
