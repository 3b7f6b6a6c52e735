// Package config loads the farm-ledger YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"farm-ledger/internal/amount"
)

// Limits mirrored from the farm so a bad file fails at load time.
const (
	maxFeeBips             = 500
	maxHarvestDelaySeconds = 14 * 24 * 60 * 60
)

// TokenConfig describes one devnet token ledger.
type TokenConfig struct {
	Symbol          string `yaml:"symbol"`
	Address         string `yaml:"address"`
	Decimals        uint8  `yaml:"decimals"`
	TransferFeeBips uint64 `yaml:"transfer_fee_bips"`
	Price           string `yaml:"price"` // reward tokens per whole token, for target_apr_bips
}

// PoolConfig describes a pool created at first start.
type PoolConfig struct {
	StakeToken          string `yaml:"stake_token"` // token symbol
	AllocWeight         uint64 `yaml:"alloc_weight"`
	HarvestDelaySeconds int64  `yaml:"harvest_delay_seconds"`
}

// RateChangeConfig is one scheduled escrow rate change.
type RateChangeConfig struct {
	EffectiveAt   int64  `yaml:"effective_at"`
	RatePerSecond string `yaml:"rate_per_second"` // base units
}

// Config holds all application configuration.
type Config struct {
	Log struct {
		Format string `yaml:"format"`
		Level  string `yaml:"level"`
	} `yaml:"log"`
	Chain struct {
		BlockInterval time.Duration `yaml:"block_interval"`
		GenesisBlock  uint64        `yaml:"genesis_block"`
		GenesisTime   int64         `yaml:"genesis_time"` // unix seconds, 0 = process start
	} `yaml:"chain"`
	Tokens []TokenConfig `yaml:"tokens"`
	Farm   struct {
		Address        string       `yaml:"address"`
		Admin          string       `yaml:"admin"`
		Pauser         string       `yaml:"pauser"`
		RewardToken    string       `yaml:"reward_token"`     // token symbol
		RewardPerBlock string       `yaml:"reward_per_block"` // whole tokens
		TargetAPRBips  uint64       `yaml:"target_apr_bips"`  // 0 = fixed emission
		BlocksPerYear  uint64       `yaml:"blocks_per_year"`
		StartBlock     uint64       `yaml:"start_block"`
		FeeBips        uint64       `yaml:"fee_bips"`
		FeeRecipient   string       `yaml:"fee_recipient"`
		AutoCompounder string       `yaml:"auto_compounder"`
		Pools          []PoolConfig `yaml:"pools"`
	} `yaml:"farm"`
	Dripper struct {
		Address       string             `yaml:"address"`
		Owner         string             `yaml:"owner"`
		WeeklyAmount  string             `yaml:"weekly_amount"`   // whole tokens
		RatePerSecond string             `yaml:"rate_per_second"` // base units
		MaxPerCall    string             `yaml:"max_per_call"`    // whole tokens, empty = uncapped
		Funding       string             `yaml:"funding"`         // whole tokens minted at first start
		Schedule      []RateChangeConfig `yaml:"schedule"`
	} `yaml:"dripper"`
	Automation struct {
		Enabled         bool   `yaml:"enabled"`
		CooldownSeconds int64  `yaml:"cooldown_seconds"`
		LowWaterDays    uint64 `yaml:"low_water_days"`
		BlocksPerDay    uint64 `yaml:"blocks_per_day"`
		MinDrip         string `yaml:"min_drip"` // whole tokens
	} `yaml:"automation"`
	Storage struct {
		UseMemory     bool   `yaml:"use_memory"`
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickhouseDSN string `yaml:"clickhouse_dsn"` // optional event analytics
	} `yaml:"storage"`
	Server struct {
		Listen           string        `yaml:"listen"`
		SnapshotInterval time.Duration `yaml:"snapshot_interval"`
		EventHistory     int           `yaml:"event_history"`
		Devnet           bool          `yaml:"devnet"` // enables token mint and approve endpoints
	} `yaml:"server"`
	Keeper struct {
		Endpoint   string `yaml:"endpoint"`
		Cron       string `yaml:"cron"`
		Threshold  string `yaml:"threshold"` // whole tokens
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"keeper"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file yields a pure-default config.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// FromYAML decodes an inline config node and applies defaults. Environment
// overrides are not applied, so the result depends on the node alone.
func FromYAML(node *yaml.Node) (*Config, error) {
	cfg := &Config{}
	if node != nil && node.Kind != 0 {
		if err := node.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"FARM_LOG_LEVEL":        &c.Log.Level,
		"FARM_LOG_FORMAT":       &c.Log.Format,
		"FARM_POSTGRES_DSN":     &c.Storage.PostgresDSN,
		"FARM_CLICKHOUSE_DSN":   &c.Storage.ClickhouseDSN,
		"FARM_LISTEN":           &c.Server.Listen,
		"FARM_REWARD_PER_BLOCK": &c.Farm.RewardPerBlock,
		"FARM_KEEPER_ENDPOINT":  &c.Keeper.Endpoint,
		"FARM_KEEPER_CRON":      &c.Keeper.Cron,
		"FARM_SQLITE_PATH":      &c.Keeper.SQLitePath,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("FARM_USE_MEMORY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FARM_USE_MEMORY: %w", err)
		}
		c.Storage.UseMemory = b
	}
	if v := os.Getenv("FARM_FEE_BIPS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("FARM_FEE_BIPS: %w", err)
		}
		c.Farm.FeeBips = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Chain.BlockInterval == 0 {
		c.Chain.BlockInterval = 3 * time.Second
	}
	if c.Farm.RewardToken == "" {
		c.Farm.RewardToken = "RWD"
	}
	if len(c.Tokens) == 0 {
		c.Tokens = []TokenConfig{{
			Symbol:   c.Farm.RewardToken,
			Address:  "0x00000000000000000000000000000000000000e1",
			Decimals: 18,
		}}
	}
	for i := range c.Tokens {
		if c.Tokens[i].Decimals == 0 {
			c.Tokens[i].Decimals = 18
		}
	}
	if c.Farm.BlocksPerYear == 0 {
		c.Farm.BlocksPerYear = uint64(365 * 24 * time.Hour / c.Chain.BlockInterval)
	}
	if c.Automation.CooldownSeconds == 0 {
		c.Automation.CooldownSeconds = 3600
	}
	if c.Automation.LowWaterDays == 0 {
		c.Automation.LowWaterDays = 1
	}
	if c.Automation.BlocksPerDay == 0 {
		c.Automation.BlocksPerDay = uint64(24 * time.Hour / c.Chain.BlockInterval)
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.SnapshotInterval == 0 {
		c.Server.SnapshotInterval = 30 * time.Second
	}
	if c.Server.EventHistory == 0 {
		c.Server.EventHistory = 1024
	}
	if c.Keeper.Endpoint == "" {
		c.Keeper.Endpoint = "http://localhost:8080"
	}
	if c.Keeper.Cron == "" {
		c.Keeper.Cron = "0 */5 * * * *"
	}
	if c.Keeper.SQLitePath == "" {
		c.Keeper.SQLitePath = "data/keeper.db"
	}
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	symbols := make(map[string]bool, len(c.Tokens))
	for _, t := range c.Tokens {
		if t.Symbol == "" {
			return errors.New("tokens: symbol is required")
		}
		if symbols[t.Symbol] {
			return fmt.Errorf("tokens: duplicate symbol %s", t.Symbol)
		}
		symbols[t.Symbol] = true
		if _, err := ParseAddress(t.Address); err != nil {
			return fmt.Errorf("tokens.%s.address: %w", t.Symbol, err)
		}
		if _, err := TokenAmount(t.Price, 18); err != nil {
			return fmt.Errorf("tokens.%s.price: %w", t.Symbol, err)
		}
		if t.TransferFeeBips >= amount.BipsDenominator {
			return fmt.Errorf("tokens.%s.transfer_fee_bips must be below %d", t.Symbol, amount.BipsDenominator)
		}
	}

	if _, err := ParseAddress(c.Farm.Address); err != nil {
		return fmt.Errorf("farm.address: %w", err)
	}
	if _, err := ParseAddress(c.Farm.Admin); err != nil {
		return fmt.Errorf("farm.admin: %w", err)
	}
	for name, v := range map[string]string{
		"farm.pauser":          c.Farm.Pauser,
		"farm.fee_recipient":   c.Farm.FeeRecipient,
		"farm.auto_compounder": c.Farm.AutoCompounder,
		"dripper.owner":        c.Dripper.Owner,
	} {
		if _, err := OptionalAddress(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	reward, ok := c.Token(c.Farm.RewardToken)
	if !ok {
		return fmt.Errorf("farm.reward_token %q is not a configured token", c.Farm.RewardToken)
	}
	if c.Farm.FeeBips > maxFeeBips {
		return fmt.Errorf("farm.fee_bips must be at most %d", maxFeeBips)
	}
	if _, err := TokenAmount(c.Farm.RewardPerBlock, reward.Decimals); err != nil {
		return fmt.Errorf("farm.reward_per_block: %w", err)
	}

	staked := make(map[string]bool, len(c.Farm.Pools))
	for i, p := range c.Farm.Pools {
		if !symbols[p.StakeToken] {
			return fmt.Errorf("farm.pools[%d]: unknown stake token %q", i, p.StakeToken)
		}
		if staked[p.StakeToken] {
			return fmt.Errorf("farm.pools[%d]: duplicate stake token %q", i, p.StakeToken)
		}
		staked[p.StakeToken] = true
		if p.HarvestDelaySeconds < 0 || p.HarvestDelaySeconds > maxHarvestDelaySeconds {
			return fmt.Errorf("farm.pools[%d]: harvest_delay_seconds out of range", i)
		}
	}

	if c.Dripper.Address != "" {
		if _, err := ParseAddress(c.Dripper.Address); err != nil {
			return fmt.Errorf("dripper.address: %w", err)
		}
		if c.Dripper.WeeklyAmount != "" && c.Dripper.RatePerSecond != "" {
			return errors.New("dripper: set weekly_amount or rate_per_second, not both")
		}
		for name, v := range map[string]string{
			"dripper.weekly_amount": c.Dripper.WeeklyAmount,
			"dripper.max_per_call":  c.Dripper.MaxPerCall,
			"dripper.funding":       c.Dripper.Funding,
		} {
			if _, err := TokenAmount(v, reward.Decimals); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		if _, err := BaseAmount(c.Dripper.RatePerSecond); err != nil {
			return fmt.Errorf("dripper.rate_per_second: %w", err)
		}
		last := int64(0)
		for i, rc := range c.Dripper.Schedule {
			if rc.EffectiveAt <= last {
				return fmt.Errorf("dripper.schedule[%d]: effective_at must increase", i)
			}
			last = rc.EffectiveAt
			if _, err := BaseAmount(rc.RatePerSecond); err != nil {
				return fmt.Errorf("dripper.schedule[%d]: %w", i, err)
			}
		}
	}
	if c.Automation.Enabled && c.Dripper.Address == "" {
		return errors.New("automation.enabled requires dripper.address")
	}
	if _, err := TokenAmount(c.Automation.MinDrip, reward.Decimals); err != nil {
		return fmt.Errorf("automation.min_drip: %w", err)
	}
	if c.Automation.CooldownSeconds < 0 {
		return errors.New("automation.cooldown_seconds must not be negative")
	}

	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" {
		return errors.New("storage.postgres_dsn is required unless storage.use_memory is set")
	}
	if c.Server.SnapshotInterval < 0 {
		return errors.New("server.snapshot_interval must not be negative")
	}
	return nil
}

// Token returns the token configured under symbol.
func (c *Config) Token(symbol string) (TokenConfig, bool) {
	for _, t := range c.Tokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return TokenConfig{}, false
}

// RewardDecimals returns the decimals of the reward token, 18 if unknown.
func (c *Config) RewardDecimals() uint8 {
	if t, ok := c.Token(c.Farm.RewardToken); ok {
		return t.Decimals
	}
	return 18
}

// TokenAmount parses a whole-token decimal string. Empty means zero.
func TokenAmount(s string, decimals uint8) (sdkmath.Uint, error) {
	if s == "" {
		return amount.Zero(), nil
	}
	return amount.Parse(s, decimals)
}

// BaseAmount parses an integer base-unit string. Empty means zero.
func BaseAmount(s string) (sdkmath.Uint, error) {
	if s == "" {
		return amount.Zero(), nil
	}
	return amount.ParseBase(s)
}

// ParseAddress parses a required non-zero hex address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	a := common.HexToAddress(s)
	if a == (common.Address{}) {
		return common.Address{}, errors.New("zero address")
	}
	return a, nil
}

// OptionalAddress parses an address that may be empty.
func OptionalAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
