// Package telemetry keeps a sqlite index of match history for offline
// inspection and replay summaries. Writes travel through a buffered channel
// into a single writer goroutine, so the decision loop never blocks on the
// database; when the indexer falls behind, rows are dropped and the journal
// stays the source of truth.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"stratagem.ai/internal/game"
	"stratagem.ai/internal/metrics"
	"stratagem.ai/internal/tasks"
)

// NewMatchID mints an id for hosts that do not assign one in the welcome.
func NewMatchID() string { return uuid.NewString() }

type Index struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqEvents
)

type req struct {
	kind reqKind

	match   string
	actions int
	stats   metrics.TickStats
	events  []tasks.Event
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	x := &Index{
		db: db,
		// One tick row plus a handful of task events per tick; this buffer
		// rides out minutes of indexer stall before anything drops.
		ch: make(chan req, 8192),
	}
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		x.loop()
	}()
	return x, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			player_id INTEGER NOT NULL,
			map_size INTEGER NOT NULL,
			fog_of_war INTEGER NOT NULL,
			catalog TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			match_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			entities INTEGER NOT NULL,
			controlled INTEGER NOT NULL,
			groups INTEGER NOT NULL,
			open_tasks INTEGER NOT NULL,
			actions INTEGER NOT NULL,
			iterations INTEGER NOT NULL,
			sim_ticks INTEGER NOT NULL,
			deadline_hit INTEGER NOT NULL,
			elapsed_us INTEGER NOT NULL,
			stats_json TEXT NOT NULL,
			PRIMARY KEY (match_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS task_events (
			match_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			task INTEGER NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			rule TEXT,
			PRIMARY KEY (match_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_task_events_kind ON task_events(match_id, kind, tick);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue, commits whatever is pending and closes the
// database.
func (x *Index) Close() error {
	if x == nil {
		return nil
	}
	var err error
	x.once.Do(func() {
		x.closed.Store(true)
		close(x.ch)
		x.wg.Wait()
		err = x.db.Close()
	})
	return err
}

// StartMatch records the parameters the welcome handed over. Synchronous;
// it runs once, before the first tick.
func (x *Index) StartMatch(id string, playerID game.PlayerID, mapSize int, fog bool, catalogDigest string) error {
	if x == nil {
		return nil
	}
	if id == "" {
		return fmt.Errorf("empty match id")
	}
	_, err := x.db.Exec(
		`INSERT OR REPLACE INTO matches(id,player_id,map_size,fog_of_war,catalog,started_at) VALUES(?,?,?,?,?,?)`,
		id, int64(playerID), mapSize, boolInt(fog), catalogDigest,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// WriteTick indexes one committed tick. Non-blocking by contract.
func (x *Index) WriteTick(matchID string, actions int, stats metrics.TickStats) {
	if x == nil || x.closed.Load() {
		return
	}
	select {
	case x.ch <- req{kind: reqTick, match: matchID, actions: actions, stats: stats}:
	default:
		// Drop if the indexer falls behind; the journal has the full record.
	}
}

// WriteEvents indexes the task lifecycle changes of one tick.
func (x *Index) WriteEvents(matchID string, events []tasks.Event) {
	if x == nil || x.closed.Load() || len(events) == 0 {
		return
	}
	evs := make([]tasks.Event, len(events))
	copy(evs, events)
	select {
	case x.ch <- req{kind: reqEvents, match: matchID, events: evs}:
	default:
	}
}

func (x *Index) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := x.db.Prepare(`INSERT OR REPLACE INTO ticks(match_id,tick,entities,controlled,groups,open_tasks,actions,iterations,sim_ticks,deadline_hit,elapsed_us,stats_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertEvent, _ := x.db.Prepare(`INSERT OR REPLACE INTO task_events(match_id,tick,seq,task,kind,status,rule) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 512
		commitMaxWait = time.Second

		lastEvMatch string
		lastEvTick  int
		evSeq       int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := x.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range x.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			if insertTick == nil {
				continue
			}
			b, _ := json.Marshal(r.stats)
			if _, err := tx.Stmt(insertTick).Exec(
				r.match,
				r.stats.Tick,
				r.stats.Entities,
				r.stats.Controlled,
				r.stats.Groups,
				r.stats.OpenTasks,
				r.actions,
				r.stats.PlannerIterations,
				r.stats.SimTicks,
				boolInt(r.stats.DeadlineHit),
				r.stats.TotalUs,
				string(b),
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqEvents:
			if insertEvent == nil {
				continue
			}
			for _, ev := range r.events {
				if r.match != lastEvMatch || ev.Tick != lastEvTick {
					lastEvMatch, lastEvTick = r.match, ev.Tick
					evSeq = 0
				}
				seq := evSeq
				evSeq++
				if _, err := tx.Stmt(insertEvent).Exec(
					r.match,
					ev.Tick,
					seq,
					ev.Task,
					ev.Kind,
					ev.Status,
					ev.Rule,
				); err != nil {
					rollback()
					break
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

// MatchRow is the recorded registration of one match.
type MatchRow struct {
	ID        string
	PlayerID  game.PlayerID
	MapSize   int
	FogOfWar  bool
	Catalog   string
	StartedAt string
}

// Match loads one match registration row.
func (x *Index) Match(id string) (MatchRow, error) {
	var (
		m   MatchRow
		pid int64
		fog int
	)
	row := x.db.QueryRow(`SELECT id,player_id,map_size,fog_of_war,catalog,started_at FROM matches WHERE id=?`, id)
	if err := row.Scan(&m.ID, &pid, &m.MapSize, &fog, &m.Catalog, &m.StartedAt); err != nil {
		return MatchRow{}, err
	}
	m.PlayerID = game.PlayerID(pid)
	m.FogOfWar = fog != 0
	return m, nil
}

// Summary aggregates what the index recorded for one match.
type Summary struct {
	Ticks        int
	FirstTick    int
	LastTick     int
	Actions      int
	Iterations   int64
	SimTicks     int64
	DeadlineHits int
	ElapsedUs    int64
}

// MatchSummary folds a match's tick rows into totals. Reads share the
// writer's connection, so call it after writes settle.
func (x *Index) MatchSummary(matchID string) (Summary, error) {
	var s Summary
	row := x.db.QueryRow(`SELECT COUNT(*),
		COALESCE(MIN(tick),0), COALESCE(MAX(tick),0),
		COALESCE(SUM(actions),0), COALESCE(SUM(iterations),0),
		COALESCE(SUM(sim_ticks),0), COALESCE(SUM(deadline_hit),0),
		COALESCE(SUM(elapsed_us),0)
		FROM ticks WHERE match_id=?`, matchID)
	if err := row.Scan(&s.Ticks, &s.FirstTick, &s.LastTick, &s.Actions,
		&s.Iterations, &s.SimTicks, &s.DeadlineHits, &s.ElapsedUs); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// EventTally is one (kind, status) bucket of task lifecycle events.
type EventTally struct {
	Kind   string
	Status string
	Count  int
}

// EventTallies groups a match's task events by kind and status, ordered for
// stable printing.
func (x *Index) EventTallies(matchID string) ([]EventTally, error) {
	rows, err := x.db.Query(`SELECT kind,status,COUNT(*) FROM task_events WHERE match_id=? GROUP BY kind,status ORDER BY kind,status`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EventTally
	for rows.Next() {
		var t EventTally
		if err := rows.Scan(&t.Kind, &t.Status, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
