// Command agent connects to a match host, runs the decision core once per
// snapshot and answers with one ACT. Journal and telemetry ride alongside;
// neither sits on the tick critical path.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stratagem.ai/internal/config"
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/journal"
	"stratagem.ai/internal/planner"
	"stratagem.ai/internal/protocol"
	"stratagem.ai/internal/rules"
	"stratagem.ai/internal/telemetry"
	"stratagem.ai/internal/transport/ws"
)

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "host ws url")
		name      = flag.String("name", "stratagem", "agent name")
		configDir = flag.String("configs", "./configs", "config directory")
		dataDir   = flag.String("data", "./data", "runtime data directory")
		noJournal = flag.Bool("disable_journal", false, "disable the tick journal")
		noIndex   = flag.Bool("disable_db", false, "disable the telemetry index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[agent] ", log.LstdFlags|log.Lmicroseconds)

	tune := loadTuning(filepath.Join(*configDir, "tuning.yaml"), logger)
	catalog := loadCatalog(filepath.Join(*configDir, "entities.yaml"), logger)
	book := loadBook(filepath.Join(*configDir, "strategy.yaml"), logger)

	ctx, cancel := signalContext()
	defer cancel()

	client, err := ws.Dial(ctx, *url, *name, logger)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer client.Close()

	welcome := client.Welcome()
	matchID := welcome.MatchID
	if matchID == "" {
		matchID = telemetry.NewMatchID()
	}
	logger.Printf("WELCOME player=%d map=%d fog=%v match=%s",
		welcome.PlayerID, welcome.MapSize, welcome.FogOfWar, matchID)
	if d := catalog.Digest(); welcome.CatalogDigest != "" && welcome.CatalogDigest != d {
		logger.Printf("catalog digest differs from host (local %s, host %s); scoring may drift",
			d, welcome.CatalogDigest)
	}

	var jw *journal.Writer
	if !*noJournal {
		jw = journal.NewWriter(filepath.Join(*dataDir, "journal"))
		defer jw.Close()
	}
	var idx *telemetry.Index
	if !*noIndex {
		idx, err = telemetry.Open(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open telemetry index: %v", err)
		}
		defer idx.Close()
		if err := idx.StartMatch(matchID, welcome.PlayerID, welcome.MapSize, welcome.FogOfWar, welcome.CatalogDigest); err != nil {
			logger.Printf("telemetry: register match: %v", err)
		}
	}

	core := planner.New(catalog, book, tune)

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	for snap := range client.Snapshots() {
		commit, err := core.Step(snap, time.Now())
		if err != nil {
			logger.Printf("tick %d: %v", snap.Tick, err)
			cancel()
			break
		}
		act := protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Tick:            commit.Tick,
			Actions:         commit.Actions,
		}
		if err := client.Send(act); err != nil {
			logger.Printf("send: %v", err)
			cancel()
			break
		}
		if jw != nil {
			rec := journal.Record{
				Tick:     commit.Tick,
				Snapshot: snap,
				Actions:  commit.Actions,
				Stats:    commit.Stats,
			}
			if err := jw.Write(matchID, rec); err != nil {
				logger.Printf("journal: %v", err)
			}
		}
		idx.WriteTick(matchID, len(commit.Actions), commit.Stats)
		idx.WriteEvents(matchID, commit.Events)
		if commit.Stats.DeadlineHit {
			logger.Printf("tick %d over budget (%.1fms, %d iterations)",
				commit.Tick, float64(commit.Stats.TotalUs)/1000, commit.Stats.PlannerIterations)
		}
	}

	if err := <-runErr; err != nil && ctx.Err() == nil {
		logger.Printf("connection: %v", err)
	}
	logger.Printf("match over")
}

func loadTuning(path string, logger *log.Logger) config.Tuning {
	t, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", path)
		t = config.Defaults()
	}
	return t
}

func loadCatalog(path string, logger *log.Logger) game.Catalog {
	c, err := config.LoadCatalog(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load entities: %v", err)
		}
		logger.Printf("entities not found (%s); using built-in catalog", path)
		c = game.DefaultCatalog()
	}
	return c
}

func loadBook(path string, logger *log.Logger) *rules.Book {
	b, err := rules.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load strategy: %v", err)
		}
		logger.Printf("strategy not found (%s); using built-in book", path)
		b = rules.Default()
	}
	return b
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
