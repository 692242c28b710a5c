// Command replay re-ingests a recorded journal through a fresh decision
// pipeline and verifies the committed actions digest tick by tick. The
// budget is raised far past real time so every search completes; ticks the
// original run degraded under deadline pressure are reported, not failed.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stratagem.ai/internal/config"
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/journal"
	"stratagem.ai/internal/planner"
	"stratagem.ai/internal/rules"
	"stratagem.ai/internal/telemetry"
)

func main() {
	var (
		journalPath = flag.String("journal", "", "path to match-<id>.jsonl.zst")
		dbPath      = flag.String("db", "", "telemetry index to summarize (optional)")
		configDir   = flag.String("configs", "./configs", "config directory (must match the recorded run)")
		fromTick    = flag.Int("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick      = flag.Int("to_tick", 0, "stop at tick (inclusive, optional)")
		budgetMs    = flag.Int("budget_ms", 600000, "replay tick budget; keep high so searches never truncate")
	)
	flag.Parse()

	if *journalPath == "" {
		fmt.Fprintln(os.Stderr, "missing -journal")
		os.Exit(2)
	}

	tune, catalog, book := loadRunConfig(*configDir)
	tune.TickBudgetMs = *budgetMs

	r, err := journal.OpenReader(*journalPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open journal:", err)
		os.Exit(1)
	}
	defer r.Close()

	core := planner.New(catalog, book, tune)

	var ticks, checked, skipped int
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "read journal:", err)
			os.Exit(1)
		}
		if *toTick != 0 && rec.Tick > *toTick {
			break
		}
		if rec.Snapshot == nil {
			fmt.Fprintf(os.Stderr, "tick %d: record has no snapshot\n", rec.Tick)
			os.Exit(1)
		}
		commit, err := core.Step(rec.Snapshot, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "tick %d: %v\n", rec.Tick, err)
			os.Exit(1)
		}
		if commit.Tick != rec.Tick {
			fmt.Fprintf(os.Stderr, "internal tick mismatch: journal=%d pipeline=%d\n", rec.Tick, commit.Tick)
			os.Exit(1)
		}
		ticks++
		if rec.Tick < *fromTick {
			continue
		}
		got, want := journal.Digest(commit.Actions), journal.Digest(rec.Actions)
		switch {
		case got == want:
			checked++
		case rec.Stats.DeadlineHit:
			// The recorded actions came out of a deadline-truncated search;
			// only clean ticks have to reproduce.
			skipped++
		default:
			fmt.Fprintf(os.Stderr, "digest mismatch at tick %d: got=%016x want=%016x\n", rec.Tick, got, want)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: checked=%d skipped=%d (budget-degraded) of %d ticks\n", checked, skipped, ticks)

	if *dbPath == "" {
		return
	}
	idx, err := telemetry.Open(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open index:", err)
		os.Exit(1)
	}
	defer idx.Close()

	matchID := matchIDFromPath(*journalPath)
	sum, err := idx.MatchSummary(matchID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "index summary:", err)
		os.Exit(1)
	}
	avgUs := int64(0)
	if sum.Ticks > 0 {
		avgUs = sum.ElapsedUs / int64(sum.Ticks)
	}
	fmt.Printf("index: match=%s rows=%d ticks=%d..%d actions=%d deadline_hits=%d avg_tick_us=%d\n",
		matchID, sum.Ticks, sum.FirstTick, sum.LastTick, sum.Actions, sum.DeadlineHits, avgUs)
	tallies, err := idx.EventTallies(matchID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "index events:", err)
		os.Exit(1)
	}
	for _, tl := range tallies {
		fmt.Printf("  %s/%s: %d\n", tl.Kind, tl.Status, tl.Count)
	}
}

// matchIDFromPath recovers the match id the writer embedded in the file
// name.
func matchIDFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".jsonl.zst")
	return strings.TrimPrefix(base, "match-")
}

func loadRunConfig(dir string) (config.Tuning, game.Catalog, *rules.Book) {
	tune, err := config.Load(filepath.Join(dir, "tuning.yaml"))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = config.Defaults()
	}
	catalog, err := config.LoadCatalog(filepath.Join(dir, "entities.yaml"))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "load entities:", err)
			os.Exit(1)
		}
		catalog = game.DefaultCatalog()
	}
	book, err := rules.Load(filepath.Join(dir, "strategy.yaml"))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "load strategy:", err)
			os.Exit(1)
		}
		book = rules.Default()
	}
	return tune, catalog, book
}
