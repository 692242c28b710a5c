// Package planner is the per-tick orchestrator: it ingests the snapshot,
// repartitions groups, reconciles roles and tasks, runs the battle
// look-ahead for engaged groups under the tick budget, and commits
// exactly one action per controlled entity. All shared state mutates on
// the committing goroutine; workers only ever see private clones.
package planner

import (
	"context"
	"sort"
	"sync"
	"time"

	"stratagem.ai/internal/config"
	"stratagem.ai/internal/game"
	"stratagem.ai/internal/metrics"
	"stratagem.ai/internal/nav"
	"stratagem.ai/internal/roles"
	"stratagem.ai/internal/rules"
	"stratagem.ai/internal/sim"
	"stratagem.ai/internal/squad"
	"stratagem.ai/internal/tasks"
	"stratagem.ai/internal/world"
)

// Commit is the outcome of one decision tick: the full action batch, the
// adopted battle lines, task lifecycle events and performance counters.
type Commit struct {
	Tick    int
	Actions game.ActionSet
	Plans   []Plan
	Events  []tasks.Event
	Stats   metrics.TickStats
}

type Planner struct {
	cfg      config.Tuning
	catalog  game.Catalog
	simRules sim.Rules

	world   *world.World
	paths   *nav.Planner
	reach   *nav.Reachability
	grouper *squad.Grouper
	roster  *roles.Roster
	stances *roles.Stances
	manager *tasks.Manager
	book    *rules.Book
	track   *metrics.Trackers
}

func New(catalog game.Catalog, book *rules.Book, cfg config.Tuning) *Planner {
	w := world.New(catalog, cfg)
	return &Planner{
		cfg:      cfg,
		catalog:  catalog,
		simRules: sim.StandardRules(catalog),
		world:    w,
		paths:    nav.New(w, cfg),
		grouper:  squad.NewGrouper(cfg),
		roster:   roles.NewRoster(),
		stances:  roles.NewStances(cfg),
		manager:  tasks.NewManager(cfg),
		book:     book,
		track:    metrics.NewTrackers(cfg.TrackerSamples, cfg.TrackerInterval),
	}
}

func (p *Planner) World() *world.World { return p.world }

func (p *Planner) Trackers() *metrics.Trackers { return p.track }

// Step runs one decision tick. now anchors the tick budget; everything
// past now+TickBudget degrades instead of blocking. The only fatal error
// is a snapshot that breaks tick monotonicity.
func (p *Planner) Step(snap *game.Snapshot, now time.Time) (Commit, error) {
	deadline := now.Add(time.Duration(p.cfg.TickBudgetMs) * time.Millisecond)
	var stats metrics.TickStats

	t := time.Now()
	delta, err := p.world.Ingest(snap)
	if err != nil {
		return Commit{}, err
	}
	p.observe(p.world.Tick())
	if p.reach == nil || !delta.Empty() {
		p.reach = p.paths.Reachability(p.world.StartPosition(), nav.ProfileUnit)
		stats.ReachabilityBuilds++
	}
	stats.Tick = p.world.Tick()
	stats.Entities = len(snap.Entities)
	stats.IngestUs = time.Since(t).Microseconds()

	t = time.Now()
	groups := p.grouper.Partition(p.world)
	stats.Groups = len(groups)
	stats.PartitionUs = time.Since(t).Microseconds()

	t = time.Now()
	p.roster.Sweep(p.world)
	stances := p.stances.Assign(p.world, p.track, groups, p.book.ArmyFloor)
	stats.RolesUs = time.Since(t).Microseconds()

	t = time.Now()
	events := p.manager.Reconcile(p.world, delta, p.roster, groups, stances, p.book)
	for _, task := range p.manager.Tasks() {
		if task.Live() {
			stats.OpenTasks++
		}
	}
	stats.TasksUs = time.Since(t).Microseconds()

	t = time.Now()
	plans := p.lookahead(groups, deadline, &stats)
	stats.PlanUs = time.Since(t).Microseconds()

	t = time.Now()
	actions := p.commit(groups, stances, plans, deadline, &stats)
	stats.CommitUs = time.Since(t).Microseconds()
	if time.Now().After(deadline) {
		stats.DeadlineHit = true
	}
	stats.TotalUs = time.Since(now).Microseconds()

	return Commit{
		Tick:    p.world.Tick(),
		Actions: actions,
		Plans:   sortedPlans(plans),
		Events:  events,
		Stats:   stats,
	}, nil
}

// observe feeds the realized per-player series into the rate trackers.
// Runs on the committing goroutine before any worker spawns; the workers
// only read the rates.
func (p *Planner) observe(tick int) {
	opp := 0
	for _, pl := range p.world.Players() {
		if pl.ID == p.world.MyID() {
			p.track.DamageDone.Add(float64(pl.Score), tick)
			p.track.Yield.Add(float64(pl.Resource), tick)
		} else {
			opp += pl.Score
		}
	}
	p.track.DamageReceived.Add(float64(opp), tick)
}

// engaged reports whether a group is close enough to a fight for the
// battle search to matter: combat kind with an armed opponent inside
// sight plus the planning horizon.
func (p *Planner) engaged(grp *squad.Group) bool {
	if grp.Kind != game.KindMeleeUnit && grp.Kind != game.KindRangedUnit {
		return false
	}
	d, ok := p.world.DistanceToNearestOpponent(grp.Anchor)
	return ok && d <= grp.SightRange+p.cfg.PlanHorizon
}

// lookahead fans the engaged groups out over the worker pool. Every job
// captures its own window and clones from there; nothing shared mutates.
// Results still in flight at the deadline are discarded, not awaited.
func (p *Planner) lookahead(groups []squad.Group, deadline time.Time, stats *metrics.TickStats) map[game.EntityID]Plan {
	var engaged []int
	for i := range groups {
		if p.engaged(&groups[i]) {
			engaged = append(engaged, i)
		}
	}
	if len(engaged) == 0 {
		return nil
	}
	drift := p.track.DamageDone.Rate() - p.track.DamageReceived.Rate()

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	jobs := make(chan int)
	results := make(chan groupResult, len(engaged))
	workers := p.cfg.EffectiveWorkers()
	if workers > len(engaged) {
		workers = len(engaged)
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for gi := range jobs {
				if ctx.Err() != nil {
					results <- groupResult{group: groups[gi].ID, deadlineHit: true}
					continue
				}
				results <- p.planGroup(&groups[gi], deadline, drift)
			}
		}()
	}
	go func() {
		for _, gi := range engaged {
			jobs <- gi
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	plans := make(map[game.EntityID]Plan)
	for {
		select {
		case r, ok := <-results:
			if !ok {
				return plans
			}
			if ctx.Err() != nil {
				stats.CandidatesDiscarded += r.simTicks
				stats.DeadlineHit = true
				continue
			}
			stats.PlannerIterations += r.iterations
			stats.SimTicks += r.simTicks
			stats.Candidates += r.simTicks
			stats.StaleSkips += r.staleSkips
			if r.deadlineHit {
				stats.DeadlineHit = true
			}
			for _, plan := range r.plans {
				if _, dup := plans[plan.Entity]; dup {
					continue
				}
				plans[plan.Entity] = plan
			}
		case <-ctx.Done():
			stats.DeadlineHit = true
			return plans
		}
	}
}

func sortedPlans(plans map[game.EntityID]Plan) []Plan {
	if len(plans) == 0 {
		return nil
	}
	ids := make([]game.EntityID, 0, len(plans))
	for id := range plans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Plan, 0, len(ids))
	for _, id := range ids {
		out = append(out, plans[id])
	}
	return out
}
