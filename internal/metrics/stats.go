package metrics

// TickStats is the performance record for one decision tick. It travels to
// the journal and the telemetry index; the core never logs on the hot path.
type TickStats struct {
	Tick       int `json:"tick"`
	Entities   int `json:"entities"`
	Controlled int `json:"controlled"`
	Groups     int `json:"groups"`
	OpenTasks  int `json:"open_tasks"`

	Candidates          int  `json:"candidates"`
	CandidatesDiscarded int  `json:"candidates_discarded"`
	PlannerIterations   int  `json:"planner_iterations"`
	PathCalls           int  `json:"path_calls"`
	ReachabilityBuilds  int  `json:"reachability_builds"`
	SimTicks            int  `json:"sim_ticks"`
	StaleSkips          int  `json:"stale_skips"`
	DeadlineHit         bool `json:"deadline_hit"`

	IngestUs    int64 `json:"ingest_us"`
	PartitionUs int64 `json:"partition_us"`
	RolesUs     int64 `json:"roles_us"`
	TasksUs     int64 `json:"tasks_us"`
	PlanUs      int64 `json:"plan_us"`
	CommitUs    int64 `json:"commit_us"`
	TotalUs     int64 `json:"total_us"`
}
