// Command ptv-track links per-frame particle detections into tracks and
// writes the resulting table as CSV, optionally recording the run in
// SQLite and publishing run metrics as a Prometheus textfile.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/lagrangian.tracks/internal/config"
	"github.com/banshee-data/lagrangian.tracks/internal/db"
	"github.com/banshee-data/lagrangian.tracks/internal/fsutil"
	"github.com/banshee-data/lagrangian.tracks/internal/monitoring"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/linking"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/pipeline"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/tableio"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/tracks"
	"github.com/banshee-data/lagrangian.tracks/internal/version"
)

var (
	configFile      = flag.String("config", "", "Path to tracking config JSON (built-in defaults when empty)")
	inputCSV        = flag.String("input", "", "Detections CSV with header frame,x,y[,aux...]")
	dbPath          = flag.String("db", "", "SQLite database for detections and run records")
	dataset         = flag.String("dataset", "", "Dataset name in -db; with -input the CSV is imported under this name first")
	outputCSV       = flag.String("output", "", "Output table CSV (stdout when empty)")
	lengthsCSV      = flag.String("lengths", "", "Track lengths CSV (skipped when empty)")
	samplingHz      = flag.Float64("fs", 0, "Sampling frequency in Hz (overrides config)")
	searchRadius    = flag.Float64("radius", 0, "Search radius in metres (overrides config)")
	maxSkip         = flag.Int("max-skip", -1, "Largest frame gap bridged by repair (overrides config)")
	strategy        = flag.String("strategy", "", "Association strategy: nearest or optimal (overrides config)")
	metricsTextfile = flag.String("metrics-textfile", "", "Write run metrics to this Prometheus textfile")
	persist         = flag.Bool("persist", false, "Record the run and its rows in -db")
	verbose         = flag.Bool("v", false, "Enable diagnostic logging")
	trace           = flag.Bool("trace", false, "Enable per-candidate trace logging")
	showVersion     = flag.Bool("version", false, "Print version and exit")
)

// options is the resolved command line for one tracking run.
type options struct {
	Tracking        *config.TrackingConfig
	Input           string
	DBPath          string
	Dataset         string
	Output          string
	Lengths         string
	MetricsTextfile string
	Persist         bool
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}

	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	setupLogging(os.Stderr, *verbose, *trace)

	opts, err := optionsFromFlags()
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	if err := runTracking(context.Background(), opts, fsutil.OSFileSystem{}, os.Stdout); err != nil {
		if errors.Is(err, ptv.ErrNoTracks) {
			log.Fatalf("%v", err)
		}
		log.Fatalf("Tracking failed: %v", err)
	}
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	path := fs.String("db", "ptv.db", "SQLite database path")
	action := "help"
	if len(args) > 0 {
		action, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}
	if err := db.RunMigrateCommand([]string{action}, *path, os.Stdout); err != nil {
		log.Fatalf("Migrate %s failed: %v", action, err)
	}
}

// setupLogging wires the three logging streams of every tracking package.
func setupLogging(w io.Writer, diag, traceOn bool) {
	var diagW, traceW io.Writer
	if diag || traceOn {
		diagW = w
	}
	if traceOn {
		traceW = w
	}
	linking.SetLogWriters(w, diagW, traceW)
	tracks.SetLogWriters(w, diagW, traceW)
	pipeline.SetLogWriters(w, diagW, traceW)
	if !diag && !traceOn {
		monitoring.SetLogger(nil)
	}
}

// optionsFromFlags loads the config file and applies explicitly set
// flags on top of it.
func optionsFromFlags() (options, error) {
	tc := config.EmptyTrackingConfig()
	if *configFile != "" {
		loaded, err := config.LoadTrackingConfig(*configFile)
		if err != nil {
			return options{}, err
		}
		tc = loaded
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["fs"] {
		tc.SetSamplingFrequencyHz(*samplingHz)
	}
	if set["radius"] {
		tc.SetSearchRadiusM(*searchRadius)
	}
	if set["max-skip"] {
		tc.SetMaxFramesSkipped(*maxSkip)
	}
	if set["strategy"] {
		tc.SetAssociationStrategy(*strategy)
	}
	if err := tc.Validate(); err != nil {
		return options{}, err
	}

	opts := options{
		Tracking:        tc,
		Input:           *inputCSV,
		DBPath:          *dbPath,
		Dataset:         *dataset,
		Output:          *outputCSV,
		Lengths:         *lengthsCSV,
		MetricsTextfile: *metricsTextfile,
		Persist:         *persist,
	}
	return opts, opts.validate()
}

func (o options) validate() error {
	if o.Input == "" && o.Dataset == "" {
		return fmt.Errorf("one of -input or -dataset is required")
	}
	if o.Dataset != "" && o.DBPath == "" {
		return fmt.Errorf("-dataset requires -db")
	}
	if o.Persist && o.DBPath == "" {
		return fmt.Errorf("-persist requires -db")
	}
	return nil
}

// runTracking loads detections, runs the pipeline and writes every
// requested output. The table goes to stdout when no -output is given.
func runTracking(ctx context.Context, opts options, fsys fsutil.FileSystem, stdout io.Writer) error {
	if err := opts.validate(); err != nil {
		return err
	}

	var database *db.DB
	if opts.DBPath != "" {
		var err error
		database, err = db.NewDB(opts.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
	}

	frames, auxNames, source, err := loadInput(ctx, opts, fsys, database)
	if err != nil {
		return err
	}

	metrics := monitoring.NewRunMetrics()
	res, runErr := pipeline.Run(frames, pipeline.ConfigFromTracking(opts.Tracking), pipeline.Options{
		AuxNames: auxNames,
		Metrics:  metrics,
	})
	if opts.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(opts.MetricsTextfile); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	if opts.Output != "" {
		if err := tableio.SaveTable(fsys, opts.Output, res.Table); err != nil {
			return err
		}
	} else if err := tableio.WriteTable(stdout, res.Table); err != nil {
		return err
	}
	if opts.Lengths != "" {
		if err := tableio.SaveLengths(fsys, opts.Lengths, res.Table); err != nil {
			return err
		}
	}

	if opts.Persist {
		cfgJSON, err := json.Marshal(opts.Tracking)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		rec, err := database.RecordRun(ctx, db.RunRecord{
			Dataset:    source,
			Version:    version.String(),
			ConfigJSON: string(cfgJSON),
			Started:    res.Started,
			Finished:   res.Finished,
			Frames:     res.Frames,
			Detections: res.Input,
			Merges:     len(res.Repair.Merges),
			MaxUID:     res.MaxUID,
		}, res.Table)
		if err != nil {
			return err
		}
		log.Printf("Recorded run %s: %d tracks, %d rows", rec.RunID, rec.Tracks, rec.Rows)
	}
	return nil
}

// loadInput reads detections from CSV, from the database, or imports the
// CSV into the database first when both -input and -dataset are given.
// It returns the name recorded as the run's source.
func loadInput(ctx context.Context, opts options, fsys fsutil.FileSystem, database *db.DB) (ptv.Frames, []string, string, error) {
	if opts.Input != "" {
		in, err := tableio.LoadDetections(fsys, opts.Input)
		if err != nil {
			return nil, nil, "", err
		}
		if opts.Dataset == "" {
			return in.Frames, in.AuxNames, opts.Input, nil
		}
		if err := database.CreateDataset(ctx, opts.Dataset, in.AuxNames); err != nil {
			return nil, nil, "", err
		}
		n, err := database.InsertDetections(ctx, opts.Dataset, in.Frames)
		if err != nil {
			return nil, nil, "", err
		}
		log.Printf("Imported %d detections from %s into dataset %q", n, opts.Input, opts.Dataset)
	}

	frames, auxNames, err := database.LoadDetections(ctx, opts.Dataset)
	if err != nil {
		return nil, nil, "", err
	}
	return frames, auxNames, opts.Dataset, nil
}
