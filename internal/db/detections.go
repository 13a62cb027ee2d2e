package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
)

// ErrDatasetNotFound is returned when a named dataset does not exist.
var ErrDatasetNotFound = errors.New("dataset not found")

// Dataset describes a stored set of detections.
type Dataset struct {
	Name       string
	AuxNames   []string
	Detections int
	Frames     int
}

// CreateDataset registers a dataset with its auxiliary column names.
func (db *DB) CreateDataset(ctx context.Context, name string, auxNames []string) error {
	if name == "" {
		return fmt.Errorf("dataset name is required")
	}
	if auxNames == nil {
		auxNames = []string{}
	}
	auxJSON, err := json.Marshal(auxNames)
	if err != nil {
		return fmt.Errorf("failed to encode aux names: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO ptv_datasets (dataset, aux_names, created_unix_nanos) VALUES (?, ?, ?)`,
		name, string(auxJSON), db.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset %q: %w", name, err)
	}
	return nil
}

// InsertDetections appends frames to dataset in one transaction. Within a
// frame, detections keep their slice order on reload.
func (db *DB) InsertDetections(ctx context.Context, dataset string, frames ptv.Frames) (int, error) {
	if err := frames.Validate(); err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ptv_detections (dataset, frame, x, y, aux) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, frame := range sortedFrames(frames) {
		for _, d := range frames[frame] {
			aux, err := encodeAux(d.Aux)
			if err != nil {
				return 0, err
			}
			if _, err := stmt.ExecContext(ctx, dataset, frame, d.Position.X, d.Position.Y, aux); err != nil {
				return 0, fmt.Errorf("failed to insert detection (frame %d): %w", frame, err)
			}
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit detections: %w", err)
	}
	return n, nil
}

// LoadDetections returns every detection of dataset keyed by frame, along
// with the dataset's auxiliary column names.
func (db *DB) LoadDetections(ctx context.Context, dataset string) (ptv.Frames, []string, error) {
	ds, err := db.GetDataset(ctx, dataset)
	if err != nil {
		return nil, nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT frame, x, y, aux FROM ptv_detections WHERE dataset = ? ORDER BY frame, detection_id`,
		dataset)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	frames := make(ptv.Frames)
	for rows.Next() {
		var (
			frame int
			x, y  float64
			aux   sql.NullString
		)
		if err := rows.Scan(&frame, &x, &y, &aux); err != nil {
			return nil, nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		d := ptv.Detection{Position: ptv.Vec2{X: x, Y: y}}
		if !d.Position.IsFinite() {
			return nil, nil, fmt.Errorf("frame %d: %w", frame, ptv.ErrNonFinite)
		}
		if d.Aux, err = decodeAux(aux); err != nil {
			return nil, nil, fmt.Errorf("frame %d: %w", frame, err)
		}
		frames[frame] = append(frames[frame], d)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return frames, ds.AuxNames, nil
}

// GetDataset returns the dataset metadata and its detection counts.
func (db *DB) GetDataset(ctx context.Context, name string) (*Dataset, error) {
	var auxJSON string
	err := db.QueryRowContext(ctx,
		`SELECT aux_names FROM ptv_datasets WHERE dataset = ?`, name).Scan(&auxJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrDatasetNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset: %w", err)
	}

	ds := &Dataset{Name: name}
	if err := json.Unmarshal([]byte(auxJSON), &ds.AuxNames); err != nil {
		return nil, fmt.Errorf("failed to decode aux names: %w", err)
	}
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT frame) FROM ptv_detections WHERE dataset = ?`, name,
	).Scan(&ds.Detections, &ds.Frames)
	if err != nil {
		return nil, fmt.Errorf("failed to count detections: %w", err)
	}
	return ds, nil
}

func encodeAux(aux []float64) (any, error) {
	if len(aux) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(aux)
	if err != nil {
		return nil, fmt.Errorf("failed to encode aux: %w", err)
	}
	return string(b), nil
}

func decodeAux(s sql.NullString) ([]float64, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var aux []float64
	if err := json.Unmarshal([]byte(s.String), &aux); err != nil {
		return nil, fmt.Errorf("failed to decode aux: %w", err)
	}
	return aux, nil
}

func sortedFrames(frames ptv.Frames) []int {
	return slices.Sorted(maps.Keys(frames))
}
