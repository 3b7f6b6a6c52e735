package reporting

import "time"

// Report is the outcome of one simulated scenario.
type Report struct {
	GeneratedAt time.Time
	Scenario    string

	Summary Summary

	// Checks are the scenario's end-state expectations.
	Checks          []CheckRow
	AllChecksPassed bool

	Pools       []PoolRow
	Holders     []HolderRow     // sorted by pool, then name
	EventCounts []EventCountRow // sorted by kind
	Steps       []StepRow
}

// Summary describes the run as a whole. Amounts are whole reward tokens.
type Summary struct {
	Steps         int
	FailedSteps   int // errors the scenario did not expect
	StartBlock    uint64
	EndBlock      uint64
	StartTime     int64 // unix seconds
	EndTime       int64
	Events        int
	RewardsPaid   string
	FeesCollected string
	Dripped       string
	Deferrals     int
	Fingerprint   string // digest of the event log, equal across identical runs
}

// CheckRow is one end-state expectation.
type CheckRow struct {
	Name     string
	Expected string
	Actual   string
	Pass     bool
}

// PoolRow is a pool's final state.
type PoolRow struct {
	ID                int
	StakeToken        string // symbol
	Weight            uint64
	HarvestDelay      int64
	TotalStaked       string
	AccRewardPerShare string
}

// HolderRow is a holder's final position in one pool plus their settlement
// history from the event log.
type HolderRow struct {
	Name    string
	Address string
	Pool    int
	Staked  string
	Carried string
	Pending string

	// Filled from events by the Generator.
	Paid      string
	Fees      string
	Harvests  int
	Deferrals int
}

// EventCountRow counts one event kind and sums its amounts.
type EventCountRow struct {
	Kind  string
	Count int
	Total string
}

// StepRow is one executed scenario step.
type StepRow struct {
	Index   int
	Block   uint64
	Time    int64
	Action  string
	Actor   string
	Pool    int // -1 when not pool-specific
	Outcome string
	Detail  string
	Failed  bool
}
