// Package history keeps an optional Postgres audit log of policy runs. All
// functions are no-ops on a nil pool so the store can stay unconfigured.
package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is one channel's outcome within a run.
type Row struct {
	RunID       string
	RecordedAt  time.Time
	ChannelID   string
	PolicyName  string
	Strategy    string
	Outcome     string
	BaseFeeMsat int64
	FeeRatePpm  int64
	DryRun      bool
	ErrorText   string
}

func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if db == nil {
		return nil
	}
	_, err := db.Exec(ctx, `
create table if not exists policy_runs (
  id bigserial primary key,
  run_id uuid not null,
  recorded_at timestamptz not null default now(),
  channel_id text not null,
  policy_name text not null,
  strategy text not null default '',
  outcome text not null,
  base_fee_msat bigint not null default 0,
  fee_rate_ppm bigint not null default 0,
  dry_run boolean not null default false,
  error_text text not null default ''
);
create index if not exists policy_runs_run_id_idx on policy_runs (run_id);
create index if not exists policy_runs_recorded_at_idx on policy_runs (recorded_at desc);
`)
	return err
}

func InsertRows(ctx context.Context, db *pgxpool.Pool, rows []Row) error {
	if db == nil || len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
insert into policy_runs (
  run_id, recorded_at, channel_id, policy_name, strategy,
  outcome, base_fee_msat, fee_rate_ppm, dry_run, error_text
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
			row.RunID,
			normalizeRecordedAt(row.RecordedAt),
			row.ChannelID,
			row.PolicyName,
			row.Strategy,
			row.Outcome,
			row.BaseFeeMsat,
			row.FeeRatePpm,
			row.DryRun,
			row.ErrorText,
		)
	}

	results := db.SendBatch(ctx, batch)
	defer results.Close()
	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func FetchRecent(ctx context.Context, db *pgxpool.Pool, limit int) ([]Row, error) {
	if db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(ctx, `
select run_id, recorded_at, channel_id, policy_name, strategy,
  outcome, base_fee_msat, fee_rate_ppm, dry_run, error_text
from policy_runs
order by recorded_at desc, id desc
limit $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(
			&row.RunID,
			&row.RecordedAt,
			&row.ChannelID,
			&row.PolicyName,
			&row.Strategy,
			&row.Outcome,
			&row.BaseFeeMsat,
			&row.FeeRatePpm,
			&row.DryRun,
			&row.ErrorText,
		); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func normalizeRecordedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
