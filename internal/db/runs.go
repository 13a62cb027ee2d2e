package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunRecord describes one persisted tracking run.
type RunRecord struct {
	RunID      string
	Dataset    string
	Version    string
	ConfigJSON string
	Started    time.Time
	Finished   time.Time
	Recorded   time.Time
	Frames     int
	Detections int
	Tracks     int
	Rows       int
	Merges     int
	MaxUID     ptv.UID
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RecordRun stores rec and every row of table in one transaction. An empty
// RunID is replaced with a new one; the final record is returned.
func (db *DB) RecordRun(ctx context.Context, rec RunRecord, table *ptv.Table) (*RunRecord, error) {
	if rec.RunID == "" {
		rec.RunID = NewRunID()
	} else if _, err := uuid.Parse(rec.RunID); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", rec.RunID, err)
	}
	rec.Recorded = db.now()
	if table != nil {
		rec.Tracks = len(table.TrackLengths)
		rec.Rows = len(table.Rows)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO ptv_runs (
			run_id, dataset, version, config_json,
			started_unix_nanos, finished_unix_nanos, recorded_unix_nanos,
			frames, detections, tracks, rows_output, merges, max_uid
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Dataset, rec.Version, rec.ConfigJSON,
		rec.Started.UnixNano(), rec.Finished.UnixNano(), rec.Recorded.UnixNano(),
		rec.Frames, rec.Detections, rec.Tracks, rec.Rows, rec.Merges, int64(rec.MaxUID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	if table != nil {
		if err := insertTrackRows(ctx, tx, rec.RunID, table.Rows); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return &rec, nil
}

func insertTrackRows(ctx context.Context, tx *sql.Tx, runID string, rows []ptv.Row) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ptv_track_rows (
			run_id, seq, uid, lifetime, frame, x, y, vx, vy, ax, ay, aux
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare track row insert: %w", err)
	}
	defer stmt.Close()

	for seq, r := range rows {
		var vx, vy sql.NullFloat64
		if v, ok := r.Velocity.Get(); ok {
			vx = sql.NullFloat64{Float64: v.X, Valid: true}
			vy = sql.NullFloat64{Float64: v.Y, Valid: true}
		}
		var ax, ay sql.NullFloat64
		if acc, ok := r.Acceleration.Get(); ok {
			ax = sql.NullFloat64{Float64: acc.X, Valid: true}
			ay = sql.NullFloat64{Float64: acc.Y, Valid: true}
		}
		aux, err := encodeAux(r.Aux)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, runID, seq, int64(r.UID), r.Lifetime, r.Frame,
			r.Position.X, r.Position.Y, vx, vy, ax, ay, aux)
		if err != nil {
			return fmt.Errorf("failed to insert track row %d: %w", seq, err)
		}
	}
	return nil
}

// GetRun returns the run record for runID.
func (db *DB) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM ptv_runs WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return rec, err
}

// ListRuns returns the runs of dataset, most recent first. An empty
// dataset lists every run.
func (db *DB) ListRuns(ctx context.Context, dataset string) ([]RunRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM ptv_runs
		WHERE ? = '' OR dataset = ?
		ORDER BY recorded_unix_nanos DESC, run_id`, dataset, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// TrackRows reloads the output table of a run, in its original row order.
func (db *DB) TrackRows(ctx context.Context, runID string) ([]ptv.Row, error) {
	rows, err := db.QueryContext(ctx, `SELECT uid, lifetime, frame, x, y, vx, vy, ax, ay, aux
		FROM ptv_track_rows WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query track rows: %w", err)
	}
	defer rows.Close()

	var out []ptv.Row
	for rows.Next() {
		var (
			r      ptv.Row
			uid    int64
			vx, vy sql.NullFloat64
			ax, ay sql.NullFloat64
			aux    sql.NullString
		)
		if err := rows.Scan(&uid, &r.Lifetime, &r.Frame, &r.Position.X, &r.Position.Y,
			&vx, &vy, &ax, &ay, &aux); err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		r.UID = ptv.UID(uid)
		if vx.Valid && vy.Valid {
			r.Velocity = ptv.Some(ptv.Vec2{X: vx.Float64, Y: vy.Float64})
		}
		if ax.Valid && ay.Valid {
			r.Acceleration = ptv.Some(ptv.Vec2{X: ax.Float64, Y: ay.Float64})
		}
		if r.Aux, err = decodeAux(aux); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const runColumns = `run_id, dataset, version, config_json,
	started_unix_nanos, finished_unix_nanos, recorded_unix_nanos,
	frames, detections, tracks, rows_output, merges, max_uid`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*RunRecord, error) {
	var (
		rec                         RunRecord
		started, finished, recorded int64
		maxUID                      int64
	)
	err := s.Scan(&rec.RunID, &rec.Dataset, &rec.Version, &rec.ConfigJSON,
		&started, &finished, &recorded,
		&rec.Frames, &rec.Detections, &rec.Tracks, &rec.Rows, &rec.Merges, &maxUID)
	if err != nil {
		return nil, err
	}
	rec.Started = time.Unix(0, started)
	rec.Finished = time.Unix(0, finished)
	rec.Recorded = time.Unix(0, recorded)
	rec.MaxUID = ptv.UID(maxUID)
	return &rec, nil
}
