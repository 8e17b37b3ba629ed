package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yourorg/guest-provisioner/internal/types"
)

// Run is one queued or finished provisioning invocation in the journal.
type Run struct {
	ID          int64
	ParamsJSON  []byte
	Status      string // queued, running, done, failed
	Error       *string
	SummaryJSON []byte
}

// Params decodes the run's parameters.
func (r Run) Params() (types.RunParams, error) {
	var p types.RunParams
	err := json.Unmarshal(r.ParamsJSON, &p)
	return p, err
}

type RunRepository interface {
	Enqueue(ctx context.Context, params types.RunParams) (Run, error)
	// ClaimNext atomically claims the next queued run using SKIP LOCKED;
	// returns ErrNotFound if none.
	ClaimNext(ctx context.Context) (Run, error)
	UpdateStatus(ctx context.Context, id int64, status string, errMsg *string, summaryJSON []byte) error
}

func NewRunRepo(p *Pool) RunRepository { return &runRepo{p: p} }

type runRepo struct{ p *Pool }

// Migrate creates the run journal schema if it does not exist.
func Migrate(ctx context.Context, p *Pool) error {
	const q = `create table if not exists provision_run (
        id      bigserial primary key,
        params  jsonb not null,
        status  text not null default 'queued',
        error   text,
        summary jsonb,
        created_at timestamptz not null default now()
    )`
	_, err := p.Exec(ctx, q)
	return err
}

func (r *runRepo) Enqueue(ctx context.Context, params types.RunParams) (Run, error) {
	if err := params.Validate(); err != nil {
		return Run{}, err
	}
	pj, err := json.Marshal(params)
	if err != nil {
		return Run{}, err
	}
	const q = `insert into provision_run (params, status) values ($1, 'queued')
               returning id, params, status, error, coalesce(summary,'{}'::jsonb)`
	var run Run
	err = r.p.QueryRow(ctx, q, pj).Scan(&run.ID, &run.ParamsJSON, &run.Status, &run.Error, &run.SummaryJSON)
	if err != nil {
		return Run{}, mapPgErr(err)
	}
	return run, nil
}

func (r *runRepo) ClaimNext(ctx context.Context) (Run, error) {
	// SKIP LOCKED so multiple runner processes never claim the same run.
	const q = `with cte as (
                  select id from provision_run where status='queued' order by id asc for update skip locked limit 1
               )
               update provision_run j set status='running'
               from cte where j.id = cte.id
               returning j.id, j.params, j.status, j.error, coalesce(j.summary,'{}'::jsonb)`
	var run Run
	err := r.p.QueryRow(ctx, q).Scan(&run.ID, &run.ParamsJSON, &run.Status, &run.Error, &run.SummaryJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, mapPgErr(err)
	}
	return run, nil
}

func (r *runRepo) UpdateStatus(ctx context.Context, id int64, status string, errMsg *string, summaryJSON []byte) error {
	const q = `update provision_run set status=$1, error=$2, summary=coalesce($3::jsonb, summary) where id=$4`
	var sj any
	if summaryJSON != nil {
		sj = string(summaryJSON)
	}
	_, err := r.p.Exec(ctx, q, status, errMsg, sj, id)
	return err
}

func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "23505": // unique_violation
			return ErrConflict
		}
	}
	return err
}
