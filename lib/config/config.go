// Package config loads the simulator's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ftchann/uniswap-vault/lib/constants"
	"github.com/ftchann/uniswap-vault/lib/rebalance"
	"github.com/ftchann/uniswap-vault/lib/tickmath"
	"github.com/ftchann/uniswap-vault/lib/vault"

	"github.com/go-playground/validator/v10"
	ui "github.com/holiman/uint256"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel         = "info"
	DefaultDataPath         = "data/trans.json"
	DefaultReserveNumerator = 9500
	DefaultReserveDenom     = 10000
	DefaultTwapWindow       = time.Minute
	DefaultUpdateInterval   = 24 * time.Hour
	DefaultSnapshotInterval = time.Hour
	DefaultMetricsNamespace = "vault"
)

var ErrInvalid = errors.New("config: invalid")

type Token struct {
	Symbol   string `yaml:"symbol" validate:"required"`
	Address  string `yaml:"address" validate:"required,eth_addr"`
	Decimals int32  `yaml:"decimals" validate:"gte=0,lte=36"`
}

type Config struct {
	LogLevel    string `yaml:"log_level" validate:"oneof=trace debug info warn error disabled"`
	HistoryPath string `yaml:"history_path"`
	MetricsAddr string `yaml:"metrics_addr"`

	Pool struct {
		Token0       Token  `yaml:"token0"`
		Token1       Token  `yaml:"token1"`
		Fee          int    `yaml:"fee" validate:"oneof=100 500 3000 10000"`
		SqrtPriceX96 string `yaml:"sqrt_price_x96" validate:"required,numeric"`
	} `yaml:"pool"`

	Vault struct {
		Address            string `yaml:"address" validate:"required,eth_addr"`
		Governance         string `yaml:"governance" validate:"required,eth_addr"`
		Keeper             string `yaml:"keeper" validate:"required,eth_addr"`
		Router             string `yaml:"router" validate:"omitempty,eth_addr"`
		ReserveNumerator   uint64 `yaml:"reserve_numerator"`
		ReserveDenominator uint64 `yaml:"reserve_denominator" validate:"gtefield=ReserveNumerator"`
	} `yaml:"vault"`

	Strategy struct {
		BaseThreshold    int           `yaml:"base_threshold" validate:"gt=0"`
		LimitThreshold   int           `yaml:"limit_threshold" validate:"gt=0"`
		MaxTwapDeviation int           `yaml:"max_twap_deviation" validate:"gte=0"`
		TwapWindow       time.Duration `yaml:"twap_window"`
	} `yaml:"strategy"`

	Keeper struct {
		// Schedule is a cron expression used when the simulator keeps serving after the replay.
		Schedule string `yaml:"schedule"`
	} `yaml:"keeper"`

	Simulation struct {
		DataPath         string        `yaml:"data_path"`
		StartTime        int64         `yaml:"start_time" validate:"gte=0"`
		UpdateInterval   time.Duration `yaml:"update_interval"`
		SnapshotInterval time.Duration `yaml:"snapshot_interval"`
		Depositor        string        `yaml:"depositor" validate:"required,eth_addr"`
		Deposit0         string        `yaml:"deposit0" validate:"required,numeric"`
		Deposit1         string        `yaml:"deposit1" validate:"required,numeric"`
		ResultPath       string        `yaml:"result_path"`
	} `yaml:"simulation"`
}

// Load reads path, applies defaults and environment overrides, then validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Vault.ReserveNumerator == 0 && c.Vault.ReserveDenominator == 0 {
		c.Vault.ReserveNumerator = DefaultReserveNumerator
		c.Vault.ReserveDenominator = DefaultReserveDenom
	}
	if c.Strategy.TwapWindow == 0 {
		c.Strategy.TwapWindow = DefaultTwapWindow
	}
	if c.Simulation.DataPath == "" {
		c.Simulation.DataPath = DefaultDataPath
	}
	if c.Simulation.UpdateInterval == 0 {
		c.Simulation.UpdateInterval = DefaultUpdateInterval
	}
	if c.Simulation.SnapshotInterval == 0 {
		c.Simulation.SnapshotInterval = DefaultSnapshotInterval
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VAULT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("VAULT_HISTORY_PATH"); v != "" {
		c.HistoryPath = v
	}
	if v := os.Getenv("VAULT_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
}

// Validate runs the checks that span several fields.
func (c *Config) Validate() error {
	if err := c.RebalanceConfig().Validate(tickmath.MaxTick); err != nil {
		return err
	}
	if err := c.ReserveRatio().Validate(); err != nil {
		return err
	}
	if c.Pool.Token0.Address == c.Pool.Token1.Address {
		return fmt.Errorf("%w: pool tokens share address %s", ErrInvalid, c.Pool.Token0.Address)
	}
	if _, err := c.SqrtPriceX96(); err != nil {
		return err
	}
	if c.Keeper.Schedule != "" {
		if _, err := cron.ParseStandard(c.Keeper.Schedule); err != nil {
			return fmt.Errorf("%w: keeper schedule: %v", ErrInvalid, err)
		}
	}
	if c.Simulation.UpdateInterval < time.Second || c.Simulation.SnapshotInterval < time.Second {
		return fmt.Errorf("%w: simulation intervals must be at least one second", ErrInvalid)
	}
	return nil
}

// TickSpacing is derived from the pool fee tier.
func (c *Config) TickSpacing() int {
	return constants.TickSpaces[c.Pool.Fee]
}

func (c *Config) RebalanceConfig() rebalance.Config {
	return rebalance.Config{
		BaseThreshold:    c.Strategy.BaseThreshold,
		LimitThreshold:   c.Strategy.LimitThreshold,
		MaxTwapDeviation: c.Strategy.MaxTwapDeviation,
		TwapWindow:       c.Strategy.TwapWindow,
		TickSpacing:      c.TickSpacing(),
	}
}

func (c *Config) ReserveRatio() vault.Ratio {
	return vault.Ratio{Numerator: c.Vault.ReserveNumerator, Denominator: c.Vault.ReserveDenominator}
}

// Level parses LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	return zerolog.ParseLevel(c.LogLevel)
}

func (c *Config) SqrtPriceX96() (*ui.Int, error) {
	x, err := ui.FromDecimal(c.Pool.SqrtPriceX96)
	if err != nil {
		return nil, fmt.Errorf("%w: sqrt_price_x96: %v", ErrInvalid, err)
	}
	return x, nil
}

// Deposits returns the amounts the simulated depositor puts in.
func (c *Config) Deposits() (*ui.Int, *ui.Int, error) {
	amount0, err := ui.FromDecimal(c.Simulation.Deposit0)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: deposit0: %v", ErrInvalid, err)
	}
	amount1, err := ui.FromDecimal(c.Simulation.Deposit1)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: deposit1: %v", ErrInvalid, err)
	}
	return amount0, amount1, nil
}
