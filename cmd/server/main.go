// Command gaze-server runs the real-time gaze-processing engine: the
// session registry, optional sqlite persistence, and the HTTP/SSE/
// websocket surface in internal/api, wired together the way
// cmd/radar/radar.go wires its serial device, database, and API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/ganzin/gazeengine/internal/api"
	"github.com/ganzin/gazeengine/internal/config"
	"github.com/ganzin/gazeengine/internal/db"
	"github.com/ganzin/gazeengine/internal/gaze/intake"
	"github.com/ganzin/gazeengine/internal/gaze/session"
	"github.com/ganzin/gazeengine/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	debugMode   = flag.Bool("debug", false, "run in debug mode (verbose request logging)")
	configFile  = flag.String("config", config.DefaultConfigPath, "path to JSON tuning configuration file")
	dbPathFlag  = flag.String("db-path", "gaze_data.db", "path to sqlite database file; empty disables persistence")
	dataDirFlag = flag.String("data-dir", "sessions", "directory session exports are written to; empty disables export-to-disk")
	serialPort  = flag.String("port", "", "device serial port (e.g. /dev/ttyACM0); empty runs against a synthetic mock source")
	fixtureFile = flag.String("fixture", "", "path to a recorded fixture file to replay instead of a live device")
	mockRateHz  = flag.Float64("mock-rate-hz", 60, "sample rate for the synthetic mock source when no port or fixture is given")
	versionFlag = flag.Bool("version", false, "print version information and exit")
)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("gaze-server v%s (git SHA: %s)\n", version.Version, version.GitSHA)
		os.Exit(0)
	}

	if *listen == "" {
		log.Fatal("listen address is required")
	}

	tuningCfg, err := config.LoadTuningConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load tuning config from %s: %v", *configFile, err)
	}
	log.Printf("loaded tuning configuration from %s", *configFile)
	log.Printf("gaze-server v%s (git SHA: %s)", version.Version, version.GitSHA)

	newSource, err := newSourceFactory(*serialPort, *fixtureFile, *mockRateHz)
	if err != nil {
		log.Fatalf("failed to configure sample source: %v", err)
	}

	var database *db.DB
	if *dbPathFlag != "" {
		database, err = db.Open(*dbPathFlag)
		if err != nil {
			log.Fatalf("failed to open database %s: %v", *dbPathFlag, err)
		}
		defer database.Close()
	} else {
		log.Printf("running without persistence (--db-path empty)")
	}

	if *dataDirFlag != "" {
		if err := os.MkdirAll(*dataDirFlag, 0o755); err != nil {
			log.Fatalf("failed to create data dir %s: %v", *dataDirFlag, err)
		}
	}

	registry := session.NewRegistry()
	apiServer := api.NewServer(registry, tuningCfg, database, *dataDirFlag, newSource)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", *listen)
		if err := apiServer.Start(ctx, *listen, *debugMode); err != nil {
			log.Printf("HTTP server exited with error: %v", err)
			os.Exit(2)
		}
	}()

	wg.Wait()
}

// newSourceFactory selects which intake.SampleSource a freshly-started
// session streams from: a real device over serial if --port is set, a
// fixture replay if --fixture is set, or a synthetic mock source
// otherwise — mirroring the device/debug/fixture selection cmd/radar/
// radar.go makes for its serial mux, minus the always-on real-hardware
// default (a reading-assistance workstation without an attached device
// should still start and serve the control API).
func newSourceFactory(port, fixturePath string, mockRateHz float64) (func() intake.SampleSource, error) {
	switch {
	case port != "":
		return func() intake.SampleSource {
			return intake.NewSerialSource(port)
		}, nil
	case fixturePath != "":
		samples, err := intake.LoadFixture(fixturePath)
		if err != nil {
			return nil, fmt.Errorf("load fixture %s: %w", fixturePath, err)
		}
		return func() intake.SampleSource {
			return intake.NewMockSource(samples)
		}, nil
	default:
		return func() intake.SampleSource {
			return intake.NewSyntheticMockSource(mockRateHz, 0)
		}, nil
	}
}
