package telemetry

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"stratagem.ai/internal/metrics"
	"stratagem.ai/internal/tasks"
)

func tickStats(tick int) metrics.TickStats {
	return metrics.TickStats{
		Tick:              tick,
		Entities:          20 + tick,
		Controlled:        10,
		Groups:            3,
		OpenTasks:         2,
		PlannerIterations: 100,
		SimTicks:          40,
		DeadlineHit:       tick%2 == 0,
		TotalUs:           1000,
	}
}

func TestIndexRecordsEveryTick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := idx.StartMatch("m1", 2, 40, true, "cat-digest"); err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	const n = 50
	for tick := 1; tick <= n; tick++ {
		idx.WriteTick("m1", 10, tickStats(tick))
	}
	idx.WriteEvents("m1", []tasks.Event{
		{Tick: 1, Task: 0, Kind: "harvest", Status: "open", Rule: "gather"},
		{Tick: 1, Task: 0, Kind: "harvest", Status: "assigned"},
	})
	idx.WriteEvents("m1", []tasks.Event{
		{Tick: 30, Task: 1, Kind: "defend", Status: "open", Rule: "intruders"},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	m, err := reopened.Match("m1")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if m.PlayerID != 2 || m.MapSize != 40 || !m.FogOfWar || m.Catalog != "cat-digest" {
		t.Fatalf("match row mismatch: %+v", m)
	}

	sum, err := reopened.MatchSummary("m1")
	if err != nil {
		t.Fatalf("MatchSummary: %v", err)
	}
	if sum.Ticks != n || sum.FirstTick != 1 || sum.LastTick != n {
		t.Fatalf("tick rows missing: %+v", sum)
	}
	if sum.Actions != 10*n {
		t.Fatalf("actions = %d, want %d", sum.Actions, 10*n)
	}
	if sum.DeadlineHits != n/2 {
		t.Fatalf("deadline hits = %d, want %d", sum.DeadlineHits, n/2)
	}
	if sum.Iterations != 100*n || sum.ElapsedUs != 1000*n {
		t.Fatalf("totals mismatch: %+v", sum)
	}

	tallies, err := reopened.EventTallies("m1")
	if err != nil {
		t.Fatalf("EventTallies: %v", err)
	}
	want := []EventTally{
		{Kind: "defend", Status: "open", Count: 1},
		{Kind: "harvest", Status: "assigned", Count: 1},
		{Kind: "harvest", Status: "open", Count: 1},
	}
	if len(tallies) != len(want) {
		t.Fatalf("tallies = %+v, want %+v", tallies, want)
	}
	for i := range want {
		if tallies[i] != want[i] {
			t.Fatalf("tally[%d] = %+v, want %+v", i, tallies[i], want[i])
		}
	}
}

func TestIndexDrainsQueueOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := idx.StartMatch("burst", 1, 30, false, "d"); err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	// Well under the channel buffer, so nothing may drop; Close has to flush
	// every row before the database shuts.
	const n = 500
	for tick := 1; tick <= n; tick++ {
		idx.WriteTick("burst", 3, tickStats(tick))
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ticks WHERE match_id='burst'`).Scan(&count); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if count != n {
		t.Fatalf("ticks indexed = %d, want %d", count, n)
	}
}

func TestNilIndexIsSafe(t *testing.T) {
	var idx *Index
	idx.WriteTick("m", 1, tickStats(1))
	idx.WriteEvents("m", []tasks.Event{{Tick: 1, Kind: "harvest", Status: "open"}})
	if err := idx.StartMatch("m", 1, 20, false, ""); err != nil {
		t.Fatalf("StartMatch on nil index: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close on nil index: %v", err)
	}
}

func TestNewMatchIDUnique(t *testing.T) {
	a, b := NewMatchID(), NewMatchID()
	if a == "" || a == b {
		t.Fatalf("ids not unique: %q %q", a, b)
	}
}
