package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sweepcast/internal/api"
	"github.com/banshee-data/sweepcast/internal/config"
	"github.com/banshee-data/sweepcast/internal/db"
	"github.com/banshee-data/sweepcast/internal/lidar/l2sweeps"
	"github.com/banshee-data/sweepcast/internal/lidar/network"
	"github.com/banshee-data/sweepcast/internal/lidar/pipeline"
	"github.com/banshee-data/sweepcast/internal/lidar/protocol"
	"github.com/banshee-data/sweepcast/internal/monitoring"
	"github.com/banshee-data/sweepcast/internal/timeutil"
	"github.com/banshee-data/sweepcast/internal/version"
)

var (
	port          = flag.String("port", "/dev/ttyUSB0", "Serial port of the scanner (ignored with -dev or -fixture)")
	baud          = flag.Int("baud", 460800, "Serial baud rate")
	devMode       = flag.Bool("dev", false, "Use a synthetic scan instead of a device")
	fixture       = flag.String("fixture", "", "Replay angle/distance samples from this file instead of a device")
	fixtureRate   = flag.Float64("fixture-rate", 7200, "Fixture replay rate in samples per second (0 = unpaced)")
	targets       = flag.String("targets", "127.0.0.1:5005", "Comma-separated host:port destinations for output datagrams")
	commandAddr   = flag.String("command-addr", ":5006", "UDP address for live JSON parameter updates (empty disables)")
	format        = flag.String("format", protocol.FormatJSON, "Payload format: "+strings.Join(protocol.Formats, ", "))
	oscPrefix     = flag.String("osc-prefix", "/lidar", "Address prefix for OSC messages")
	tsvMeta       = flag.Bool("tsv-meta", false, "Prefix TSV payloads with a metadata line")
	sweepRule     = flag.String("sweep-rule", l2sweeps.RuleHysteresis.String(), "Sweep wrap rule: hysteresis or descending")
	configFile    = flag.String("config", "", "Startup parameter file (.json, .yaml or .yml)")
	dbFile        = flag.String("db", "", "SQLite file for sessions and config history (empty disables)")
	restoreConfig = flag.Bool("restore-config", false, "Apply the last configuration stored in -db on startup")
	listen        = flag.String("listen", ":8080", "HTTP listen address (empty disables)")
	logInterval   = flag.Duration("log-interval", 10*time.Second, "Statistics logging interval")
	debug         = flag.Bool("debug", false, "Log per-sweep and per-packet diagnostics")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *debug {
		monitoring.SetDebugLogger(os.Stderr)
	}
	log.Printf("%s starting", version.String())

	rule, err := l2sweeps.ParseRule(*sweepRule)
	if err != nil {
		log.Fatalf("invalid -sweep-rule: %v", err)
	}
	encoder, err := protocol.NewEncoder(*format, protocol.Options{OSCPrefix: *oscPrefix, TSVMeta: *tsvMeta})
	if err != nil {
		log.Fatalf("invalid -format: %v", err)
	}
	dests := parseTargets(*targets)
	if len(dests) == 0 {
		log.Fatal("at least one -targets destination is required")
	}

	cfg := config.Default()
	if *configFile != "" {
		cfg, err = config.LoadRuntimeConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		log.Printf("[config] loaded %s", *configFile)
	}

	sessionID := uuid.NewString()
	startedAt := time.Now()

	var database *db.DB
	if *dbFile != "" {
		database, err = db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer database.Close()

		if *restoreConfig {
			cfg = restoreLatest(database, cfg)
		}
		if err := database.StartSession(db.Session{
			ID:        sessionID,
			StartedAt: startedAt,
			Format:    encoder.Name(),
			Targets:   dests,
		}); err != nil {
			log.Fatalf("failed to record session: %v", err)
		}
	}

	store := config.NewStore(cfg)
	if database != nil {
		store.Subscribe(database.ConfigRecorder(sessionID))
	}
	store.Subscribe(func(u config.Update) {
		log.Printf("[config] %s applied %s", u.Source, strings.Join(u.Applied, ", "))
	})

	sender, err := network.NewSender(network.SenderConfig{Targets: dests, LogInterval: *logInterval})
	if err != nil {
		log.Fatalf("failed to create sender: %v", err)
	}
	sender.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := timeutil.RealClock{}
	source, err := openSource(ctx, sourceOptions{
		Dev:         *devMode,
		Fixture:     *fixture,
		FixtureRate: *fixtureRate,
		Port:        *port,
		Baud:        *baud,
		MotorPWM:    cfg.MotorPWM,
		Clock:       clock,
	})
	if err != nil {
		sender.Close()
		log.Fatalf("failed to open sensor: %v", err)
	}

	stats := pipeline.NewStats(clock)
	pipe := pipeline.New(pipeline.Config{
		Source:  store,
		Encoder: encoder,
		Sink:    sender,
		Stats:   stats,
		Rule:    rule,
	})
	runner := &pipeline.Runner{
		Pipeline: pipe,
		Config:   store,
		Source:   source,
		Sender:   sender,
		Clock:    clock,
		MotorPWM: -1,
	}

	log.Printf("session %s: %s to %s, sweep rule %s", sessionID, encoder.Name(), strings.Join(dests, ", "), rule)

	var wg sync.WaitGroup

	if *commandAddr != "" {
		listener := network.NewCommandListener(network.CommandListenerConfig{
			Address: *commandAddr,
			Applier: store,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("command listener error: %v", err)
			}
			log.Print("command listener routine terminated")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		stats.Run(ctx, *logInterval)
	}()

	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, api.NewServer(api.Options{
				Store:     store,
				Pipeline:  pipe,
				Sender:    sender,
				DB:        database,
				SessionID: sessionID,
				Format:    encoder.Name(),
				StartedAt: startedAt,
			}))
		}()
	}

	exitCode := 0
	if err := runner.Run(ctx); err != nil {
		log.Printf("pipeline stopped: %v", err)
		exitCode = 1
	}
	stop()

	if err := runner.Shutdown(); err != nil {
		exitCode = 1
	}
	wg.Wait()

	if database != nil {
		totals := sessionTotals(stats.Snapshot(), sender.Stats())
		if err := database.FinishSession(sessionID, time.Now(), totals); err != nil {
			log.Printf("failed to finish session: %v", err)
		}
	}

	log.Printf("Graceful shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// sessionTotals builds the counters stored when a session ends. Every refused
// payload is counted by both the pipeline and the sender, so drops come from
// the sender alone.
func sessionTotals(p pipeline.StatsSnapshot, s network.SenderStats) db.SessionTotals {
	return db.SessionTotals{
		Sweeps:         p.Sweeps,
		PacketsSent:    p.Emitted,
		PacketsDropped: s.Dropped,
	}
}

func restoreLatest(database *db.DB, cfg config.RuntimeConfig) config.RuntimeConfig {
	latest, ok, err := database.LatestConfigSnapshot()
	switch {
	case err != nil:
		log.Printf("[config] not restoring stored config: %v", err)
		return cfg
	case !ok:
		log.Printf("[config] no stored config to restore")
		return cfg
	}
	log.Printf("[config] restored last stored config")
	return latest
}

func serveHTTP(ctx context.Context, srv *api.Server) {
	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(srv.ServeMux()),
	}

	go func() {
		log.Printf("Starting HTTP server on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
}
