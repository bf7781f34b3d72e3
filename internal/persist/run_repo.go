package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/bowarena/client/internal/core/event"
	"github.com/jackc/pgx/v5"
)

// RunRow is one finished arena run or duel.
type RunRow struct {
	RunID         string
	Mode          string
	Outcome       string
	Wave          int
	TotalWaves    int
	PlayerHP      int
	OpponentHP    int
	XPGained      int
	CooldownUntil *time.Time
	EndedAt       time.Time
}

// RowFromEvent converts a delivered outcome into a history row.
func RowFromEvent(e event.RunEnded, endedAt time.Time) RunRow {
	row := RunRow{
		RunID:      e.RunID,
		Mode:       string(e.Mode),
		Outcome:    string(e.Outcome),
		Wave:       e.Wave,
		TotalWaves: e.TotalWaves,
		PlayerHP:   e.PlayerHP,
		OpponentHP: e.OpponentHP,
		XPGained:   e.XPGained,
		EndedAt:    endedAt,
	}
	if !e.CooldownUntil.IsZero() {
		cd := e.CooldownUntil
		row.CooldownUntil = &cd
	}
	return row
}

// OutcomeCount is the number of runs per mode and outcome.
type OutcomeCount struct {
	Mode    string
	Outcome string
	Count   int
}

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

const insertRun = `INSERT INTO run_history
	(run_id, mode, outcome, wave, total_waves, player_hp, opponent_hp, xp_gained, cooldown_until, ended_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (run_id, mode) DO NOTHING`

// RecordArena stores an arena outcome. Recording the same run twice is a
// no-op.
func (r *RunRepo) RecordArena(ctx context.Context, e event.RunEnded) error {
	if e.Mode != event.ModeArena {
		return fmt.Errorf("record arena: run %s has mode %s", e.RunID, e.Mode)
	}
	return r.Record(ctx, RowFromEvent(e, time.Now()))
}

// RecordDuel stores a duel outcome.
func (r *RunRepo) RecordDuel(ctx context.Context, e event.RunEnded) error {
	if e.Mode != event.ModePvP {
		return fmt.Errorf("record duel: run %s has mode %s", e.RunID, e.Mode)
	}
	return r.Record(ctx, RowFromEvent(e, time.Now()))
}

// Record inserts one row.
func (r *RunRepo) Record(ctx context.Context, row RunRow) error {
	_, err := r.db.Pool.Exec(ctx, insertRun,
		row.RunID, row.Mode, row.Outcome, row.Wave, row.TotalWaves,
		row.PlayerHP, row.OpponentHP, row.XPGained, row.CooldownUntil, row.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", row.RunID, err)
	}
	return nil
}

// RecordBatch inserts rows in a single transaction; either all are stored
// or none.
func (r *RunRepo) RecordBatch(ctx context.Context, rows []RunRow) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("run batch begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertRun,
			row.RunID, row.Mode, row.Outcome, row.Wave, row.TotalWaves,
			row.PlayerHP, row.OpponentHP, row.XPGained, row.CooldownUntil, row.EndedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("run batch insert: %w", err)
	}
	return tx.Commit(ctx)
}

// Recent returns the newest limit rows, newest first.
func (r *RunRepo) Recent(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT run_id, mode, outcome, wave, total_waves, player_hp, opponent_hp,
		        xp_gained, cooldown_until, ended_at
		 FROM run_history
		 ORDER BY ended_at DESC, id DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var result []RunRow
	for rows.Next() {
		var row RunRow
		if err := rows.Scan(
			&row.RunID, &row.Mode, &row.Outcome, &row.Wave, &row.TotalWaves,
			&row.PlayerHP, &row.OpponentHP, &row.XPGained, &row.CooldownUntil, &row.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// CountSince tallies outcomes of runs that ended at or after since.
func (r *RunRepo) CountSince(ctx context.Context, since time.Time) ([]OutcomeCount, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT mode, outcome, COUNT(*)
		 FROM run_history
		 WHERE ended_at >= $1
		 GROUP BY mode, outcome
		 ORDER BY mode, outcome`, since,
	)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OutcomeCount, error) {
		var c OutcomeCount
		err := row.Scan(&c.Mode, &c.Outcome, &c.Count)
		return c, err
	})
}
