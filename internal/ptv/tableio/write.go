package tableio

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/lagrangian.tracks/internal/fsutil"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
)

// TableHeader returns the output table header for the given auxiliary
// column names. Unnamed auxiliary columns are labelled aux0, aux1, ...
func TableHeader(auxNames []string, auxCount int) []string {
	header := []string{"x", "y", "vx", "vy", "uid", "lifetime", "frame", "ax", "ay"}
	for i := 0; i < auxCount; i++ {
		if i < len(auxNames) && auxNames[i] != "" {
			header = append(header, auxNames[i])
		} else {
			header = append(header, "aux"+strconv.Itoa(i))
		}
	}
	return header
}

// WriteTable writes every row of t as CSV. Undefined velocity components
// are written as empty cells.
func WriteTable(w io.Writer, t *ptv.Table) error {
	cw := csv.NewWriter(w)

	auxCount := len(t.AuxNames)
	for _, r := range t.Rows {
		if len(r.Aux) > auxCount {
			auxCount = len(r.Aux)
		}
	}
	if err := cw.Write(TableHeader(t.AuxNames, auxCount)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, 0, 9+auxCount)
	for _, r := range t.Rows {
		record = record[:0]
		vx, vy := "", ""
		if v, ok := r.Velocity.Get(); ok {
			vx, vy = formatFloat(v.X), formatFloat(v.Y)
		}
		ax, ay := "", ""
		if acc, ok := r.Acceleration.Get(); ok {
			ax, ay = formatFloat(acc.X), formatFloat(acc.Y)
		}
		record = append(record,
			formatFloat(r.Position.X),
			formatFloat(r.Position.Y),
			vx, vy,
			strconv.FormatInt(int64(r.UID), 10),
			strconv.Itoa(r.Lifetime),
			strconv.Itoa(r.Frame),
			ax, ay,
		)
		for i := 0; i < auxCount; i++ {
			if i < len(r.Aux) {
				record = append(record, formatFloat(r.Aux[i]))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row uid=%d frame=%d: %w", r.UID, r.Frame, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteLengths writes one uid,length line per track, in table order.
func WriteLengths(w io.Writer, t *ptv.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"uid", "length"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	start := 0
	for _, n := range t.TrackLengths {
		if n == 0 {
			continue
		}
		uid := t.Rows[start].UID
		if err := cw.Write([]string{strconv.FormatInt(int64(uid), 10), strconv.Itoa(n)}); err != nil {
			return fmt.Errorf("failed to write length for uid=%d: %w", uid, err)
		}
		start += n
	}
	cw.Flush()
	return cw.Error()
}

// SaveTable writes t to path on fsys, creating parent directories.
func SaveTable(fsys fsutil.FileSystem, path string, t *ptv.Table) error {
	return save(fsys, path, func(w io.Writer) error { return WriteTable(w, t) })
}

// SaveLengths writes the track lengths of t to path on fsys.
func SaveLengths(fsys fsutil.FileSystem, path string, t *ptv.Table) error {
	return save(fsys, path, func(w io.Writer) error { return WriteLengths(w, t) })
}

func save(fsys fsutil.FileSystem, path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." && !fsys.Exists(dir) {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
