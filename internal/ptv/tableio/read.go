// Package tableio reads per-frame detections from CSV and writes the
// tracked output table and track lengths back to CSV.
package tableio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/lagrangian.tracks/internal/fsutil"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
)

// detectionColumns is the fixed prefix of a detections header. Any further
// columns are carried through as auxiliary values.
var detectionColumns = []string{"frame", "x", "y"}

// Input is a parsed detections file.
type Input struct {
	Frames   ptv.Frames
	AuxNames []string
	Rows     int // Detection rows read
}

// ReadDetections parses a detections CSV with header frame,x,y[,aux...].
// Rows may appear in any frame order; within a frame the file order is
// kept.
func ReadDetections(r io.Reader) (*Input, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty detections file: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < len(detectionColumns) {
		return nil, fmt.Errorf("invalid header, expected: %s[,aux...]", strings.Join(detectionColumns, ","))
	}
	for i, want := range detectionColumns {
		if strings.ToLower(strings.TrimSpace(header[i])) != want {
			return nil, fmt.Errorf("invalid header column %d: got %q, want %q", i+1, header[i], want)
		}
	}

	in := &Input{Frames: make(ptv.Frames)}
	for _, name := range header[len(detectionColumns):] {
		in.AuxNames = append(in.AuxNames, strings.TrimSpace(name))
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		frame, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid frame at line %d: %w", line, err)
		}
		x, err := parseFloat(record[1])
		if err != nil {
			return nil, fmt.Errorf("invalid x at line %d: %w", line, err)
		}
		y, err := parseFloat(record[2])
		if err != nil {
			return nil, fmt.Errorf("invalid y at line %d: %w", line, err)
		}

		det := ptv.Detection{Position: ptv.Vec2{X: x, Y: y}}
		if !det.Position.IsFinite() {
			return nil, fmt.Errorf("invalid position at line %d: %w", line, ptv.ErrNonFinite)
		}
		if n := len(in.AuxNames); n > 0 {
			det.Aux = make([]float64, n)
			for j := 0; j < n; j++ {
				v, err := parseFloat(record[len(detectionColumns)+j])
				if err != nil {
					return nil, fmt.Errorf("invalid %s at line %d: %w", in.AuxNames[j], line, err)
				}
				det.Aux[j] = v
			}
		}
		in.Frames[frame] = append(in.Frames[frame], det)
		in.Rows++
	}
	return in, nil
}

// LoadDetections opens path on fsys and parses it with ReadDetections.
func LoadDetections(fsys fsutil.FileSystem, path string) (*Input, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open detections file: %w", err)
	}
	defer f.Close()

	in, err := ReadDetections(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
