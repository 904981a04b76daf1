// Command soothsayer tracks divination card drops from the Path of
// Exile client log: it watches the client process, tails the log for
// draw events, aggregates per-session and lifetime counts, and values
// drops against cached market prices.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/navali-creations/soothsayer-sub010/internal/config"
	"github.com/navali-creations/soothsayer-sub010/internal/events"
	"github.com/navali-creations/soothsayer-sub010/internal/logwatch"
	"github.com/navali-creations/soothsayer-sub010/internal/pricing"
	"github.com/navali-creations/soothsayer-sub010/internal/process"
	"github.com/navali-creations/soothsayer-sub010/internal/session"
	"github.com/navali-creations/soothsayer-sub010/internal/storage"
	"github.com/navali-creations/soothsayer-sub010/internal/storage/models"
)

var (
	configPath     = flag.String("config", "", "Path to config.toml (default: ~/.soothsayer/config.toml)")
	gameFlag       = flag.String("game", "", "Game to track: poe1 or poe2 (overrides config)")
	leagueFlag     = flag.String("league", "", "League name (overrides config)")
	logFilePath    = flag.String("log-file-path", "", "Path to the client's Client.txt (overrides config)")
	backupOnExit   = flag.Bool("backup-on-exit", true, "Write a database backup during shutdown")
	verboseEvents  = flag.Bool("verbose", false, "Print high-churn events (process liveness)")
	refreshAndExit = flag.Bool("refresh-prices", false, "Fetch a fresh price snapshot and exit")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		log.Fatalf("Error resolving database path: %v", err)
	}

	dbConfig := storage.DefaultConfig(dbPath)
	dbConfig.AutoMigrate = true
	db, err := storage.Open(dbConfig)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	dispatcher := events.NewDispatcher()
	dispatcher.Register(events.NewConsoleObserver(*verboseEvents))

	game := models.Game(cfg.Game.Game)
	league := cfg.Game.League

	reuseThreshold, _ := cfg.GetReuseThreshold()
	refreshInterval, _ := cfg.GetAutoRefreshInterval()
	pricingSvc := pricing.NewService(
		&pricing.ServiceConfig{
			ReuseThreshold:      reuseThreshold,
			AutoRefreshInterval: refreshInterval,
			FallbackCeiling:     pricing.DefaultServiceConfig().FallbackCeiling,
		},
		pricing.NewClient(&pricing.ClientConfig{BaseURL: cfg.Pricing.BaseURL}),
		db,
		dispatcher,
	)

	if *refreshAndExit {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		result, err := pricingSvc.Refresh(ctx, game, league)
		if err != nil {
			log.Fatalf("Error refreshing prices: %v", err)
		}
		fmt.Printf("Snapshot %s stored for %s/%s (%d cards)\n",
			result.Snapshot.ID, game, league, len(result.Snapshot.Exchange.CardPrices))
		return
	}

	sessionSvc := session.NewService(db, pricingSvc, dispatcher)

	repaired, err := sessionSvc.ReconcileStartup(context.Background())
	if err != nil {
		log.Fatalf("Error reconciling sessions: %v", err)
	}
	for _, sess := range repaired {
		log.Printf("Previous session %s (%s) was interrupted; its counts are preserved", sess.ID, sess.Game)
	}

	if err := run(cfg, game, league, db, dispatcher, pricingSvc, sessionSvc); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if *gameFlag != "" {
		cfg.Game.Game = *gameFlag
	}
	if *leagueFlag != "" {
		cfg.Game.League = *leagueFlag
	}
	if *logFilePath != "" {
		cfg.Log.FilePath = *logFilePath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run wires the pipeline together and blocks until a shutdown signal.
func run(cfg *config.Config, game models.Game, league string, db *storage.DB,
	dispatcher *events.Dispatcher, pricingSvc *pricing.Service, sessionSvc *session.Service) error {

	pollInterval, _ := cfg.GetPollInterval()
	liveness, err := process.NewWatcher(process.WatcherConfig{
		ProcessNames: cfg.Game.ProcessNames,
		Interval:     pollInterval,
		OnChange: func(state process.State) {
			dispatcher.Dispatch(events.Event{
				Type:    events.TypeProcessLiveness,
				Payload: events.ProcessLiveness{IsRunning: state.IsRunning, ProcessName: state.ProcessName},
			})

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if state.IsRunning {
				if _, err := sessionSvc.Start(ctx, game, league); err != nil && !errors.Is(err, session.ErrSessionActive) {
					log.Printf("Error starting session: %v", err)
				}
			} else {
				if err := sessionSvc.Stop(ctx, game); err != nil {
					log.Printf("Error stopping session: %v", err)
				}
			}
		},
		OnError: func(err error) {
			log.Printf("Process scan failed: %v", err)
		},
	})
	if err != nil {
		return fmt.Errorf("create process watcher: %w", err)
	}

	var logWatcher *logwatch.Watcher
	if cfg.Log.FilePath != "" {
		debounce, _ := cfg.GetDebounce()
		logWatcher, err = logwatch.NewWatcher(logwatch.WatcherConfig{
			Path:      cfg.Log.FilePath,
			TailLines: cfg.Log.TailLines,
			Debounce:  debounce,
			OnChange: func(text string) {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if _, err := sessionSvc.ProcessTail(ctx, game, text); err != nil && !errors.Is(err, session.ErrNoActiveSession) {
					log.Printf("Error processing log tail: %v", err)
				}
			},
			OnError: func(err error) {
				log.Printf("Log watch failed: %v", err)
			},
		})
		if err != nil {
			return fmt.Errorf("create log watcher: %w", err)
		}
		if err := logWatcher.Start(); err != nil {
			return fmt.Errorf("start log watcher: %w", err)
		}
		log.Printf("Watching %s (last %d lines per change)", cfg.Log.FilePath, cfg.Log.TailLines)
	} else {
		log.Printf("No log file configured; tracking process liveness only")
	}

	liveness.Start()
	log.Printf("Soothsayer tracking %s in league %s", game, league)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %s, shutting down", sig)

	// Shutdown order: stop producers first, then close out the
	// session, then stop background pricing.
	liveness.Stop()
	if logWatcher != nil {
		logWatcher.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sessionSvc.Stop(ctx, game); err != nil {
		log.Printf("Error stopping session: %v", err)
	}
	pricingSvc.StopAll()

	if *backupOnExit {
		backupDir, err := cfg.BackupDir()
		if err != nil {
			log.Printf("Error resolving backup directory: %v", err)
		} else {
			bm := storage.NewBackupManager(db.Path(), storage.BackupConfig{
				Dir:      backupDir,
				Keep:     cfg.Database.BackupKeep,
				Password: cfg.Database.BackupPassword,
			})
			if path, err := bm.Backup(); err != nil {
				log.Printf("Error writing backup: %v", err)
			} else {
				log.Printf("Backup written to %s", path)
			}
		}
	}

	return nil
}
