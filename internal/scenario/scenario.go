// Package scenario replays a scripted sequence of ledger operations against
// an in-memory deployment and collects the final state for reporting.
package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"farm-ledger/internal/config"
)

// Defaults for the simulated chain.
const (
	DefaultStartBlock uint64 = 1
	DefaultStartTime  int64  = 1_700_000_000
)

// Scenario is a scripted run.
type Scenario struct {
	Name string `yaml:"name"`

	// Config is an inline deployment config (the same schema as the server's).
	Config yaml.Node `yaml:"config"`

	Start struct {
		Block uint64 `yaml:"block"`
		Time  int64  `yaml:"time"` // unix seconds
	} `yaml:"start"`

	// Holders names accounts; steps and checks refer to them by name.
	Holders map[string]string `yaml:"holders"`

	Steps  []Step  `yaml:"steps"`
	Checks []Check `yaml:"checks"`
}

// Advance moves the clock before a step runs.
type Advance struct {
	Blocks  uint64 `yaml:"blocks"`
	Seconds int64  `yaml:"seconds"`
}

// Step is one operation. Amounts are whole tokens of the token involved.
type Step struct {
	Advance Advance `yaml:"advance"`
	Action  string  `yaml:"action"`

	// Actor is a holder name, "admin" or an address. Admin actions default
	// to the farm admin, everything else requires an actor.
	Actor string `yaml:"actor"`

	Pool   int    `yaml:"pool"`
	Token  string `yaml:"token"` // symbol for mint, approve, add_pool
	Amount string `yaml:"amount"`

	// Target is the referrer, beneficiary, mint recipient, fee recipient or
	// auto-compounder, depending on the action.
	Target string `yaml:"target"`

	Weight       uint64 `yaml:"weight"`
	HarvestDelay int64  `yaml:"harvest_delay"`
	Bips         uint64 `yaml:"bips"`
	WithUpdate   bool   `yaml:"with_update"`

	// EffectiveIn schedules a rate change this many seconds after the step.
	EffectiveIn int64  `yaml:"effective_in"`
	Rate        string `yaml:"rate"` // base units per second

	// ExpectError is a substring of the error the step must fail with.
	ExpectError string `yaml:"expect_error"`
}

// Check is an end-state expectation.
type Check struct {
	Kind   string `yaml:"kind"` // balance, staked, carried, pending
	Holder string `yaml:"holder"`
	Token  string `yaml:"token"` // balance only
	Pool   int    `yaml:"pool"`
	Amount string `yaml:"amount"` // whole tokens
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	sc := &Scenario{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Start.Block == 0 {
		sc.Start.Block = DefaultStartBlock
	}
	if sc.Start.Time == 0 {
		sc.Start.Time = DefaultStartTime
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks the scenario's structure. Operation errors surface when it runs.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return errors.New("scenario: name is required")
	}
	for name, addr := range sc.Holders {
		if name == adminActor || name == farmActor || name == escrowActor {
			return fmt.Errorf("scenario: holder name %q is reserved", name)
		}
		if _, err := config.ParseAddress(addr); err != nil {
			return fmt.Errorf("scenario: holder %s: %w", name, err)
		}
	}
	for i, st := range sc.Steps {
		if _, ok := actions[st.Action]; !ok {
			return fmt.Errorf("scenario: step %d: unknown action %q", i+1, st.Action)
		}
	}
	for i, c := range sc.Checks {
		switch c.Kind {
		case checkBalance:
			if c.Token == "" {
				return fmt.Errorf("scenario: check %d: balance needs a token", i+1)
			}
		case checkStaked, checkCarried, checkPending:
		default:
			return fmt.Errorf("scenario: check %d: unknown kind %q", i+1, c.Kind)
		}
		if c.Holder == "" {
			return fmt.Errorf("scenario: check %d: holder is required", i+1)
		}
	}
	return nil
}
