// Package rebalance derives the base and limit ranges a vault repositions into.
//
// A base range is placed symmetrically around the tick spacing bucket that holds
// the current price. The limit range sits directly next to that bucket, below it
// (bid) or above it (ask), and takes whatever the base range leaves unused.
package rebalance

import (
	"errors"
	"fmt"
	"time"

	"github.com/ftchann/uniswap-vault/lib/tickmath"
)

var (
	ErrTickTooExtreme        = errors.New("rebalance: tick too extreme")
	ErrTwapDeviationExceeded = errors.New("rebalance: twap deviation exceeded")
	ErrInvalidConfig         = errors.New("rebalance: invalid config")
)

// Range is a half open tick interval [TickLower, TickUpper). The zero value is an empty range.
type Range struct {
	TickLower int `json:"tick_lower"`
	TickUpper int `json:"tick_upper"`
}

func (r Range) IsZero() bool {
	return r.TickLower == 0 && r.TickUpper == 0
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.TickLower, r.TickUpper)
}

// Validate checks the range is ordered, aligned to spacing and inside [minTick, maxTick].
func (r Range) Validate(spacing, minTick, maxTick int) error {
	if r.TickLower >= r.TickUpper {
		return fmt.Errorf("range %s: lower not below upper", r)
	}
	if r.TickLower < minTick || r.TickUpper > maxTick {
		return fmt.Errorf("range %s: outside [%d, %d]", r, minTick, maxTick)
	}
	if r.TickLower%spacing != 0 || r.TickUpper%spacing != 0 {
		return fmt.Errorf("range %s: not a multiple of spacing %d", r, spacing)
	}
	return nil
}

type Config struct {
	BaseThreshold    int
	LimitThreshold   int
	MaxTwapDeviation int
	TwapWindow       time.Duration
	TickSpacing      int
}

func (c Config) maxThreshold() int {
	if c.BaseThreshold > c.LimitThreshold {
		return c.BaseThreshold
	}
	return c.LimitThreshold
}

// Validate checks the config once, when a vault is set up. maxTick is the
// largest tick the oracle can represent.
func (c Config) Validate(maxTick int) error {
	if c.TickSpacing <= 0 {
		return fmt.Errorf("%w: tick spacing %d must be positive", ErrInvalidConfig, c.TickSpacing)
	}
	if err := checkThreshold("base threshold", c.BaseThreshold, c.TickSpacing, maxTick); err != nil {
		return err
	}
	if err := checkThreshold("limit threshold", c.LimitThreshold, c.TickSpacing, maxTick); err != nil {
		return err
	}
	if c.MaxTwapDeviation < 0 {
		return fmt.Errorf("%w: max twap deviation %d must not be negative", ErrInvalidConfig, c.MaxTwapDeviation)
	}
	if c.TwapWindow < time.Second {
		return fmt.Errorf("%w: twap window %s must be at least one second", ErrInvalidConfig, c.TwapWindow)
	}
	return nil
}

func checkThreshold(name string, threshold, spacing, maxTick int) error {
	if threshold <= 0 {
		return fmt.Errorf("%w: %s %d must be positive", ErrInvalidConfig, name, threshold)
	}
	if threshold > maxTick {
		return fmt.Errorf("%w: %s %d above max tick %d", ErrInvalidConfig, name, threshold, maxTick)
	}
	if threshold%spacing != 0 {
		return fmt.Errorf("%w: %s %d not a multiple of tick spacing %d", ErrInvalidConfig, name, threshold, spacing)
	}
	return nil
}

// Ranges is the outcome of a successful decision.
type Ranges struct {
	Tick  int
	Twap  int
	Floor int
	Ceil  int
	Base  Range
	Bid   Range
	Ask   Range
}

// Plan decides the new ranges for the current tick, or fails if repositioning is unsafe.
func Plan(cfg Config, tick, twap, minTick, maxTick int) (Ranges, error) {
	guard := cfg.maxThreshold() + cfg.TickSpacing
	if tick <= minTick+guard || tick >= maxTick-guard {
		return Ranges{}, fmt.Errorf("%w: tick %d within %d of [%d, %d]", ErrTickTooExtreme, tick, guard, minTick, maxTick)
	}

	deviation := tick - twap
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > cfg.MaxTwapDeviation {
		return Ranges{}, fmt.Errorf("%w: |%d - %d| > %d", ErrTwapDeviationExceeded, tick, twap, cfg.MaxTwapDeviation)
	}

	floor := tickmath.Floor(tick, cfg.TickSpacing)
	ceil := floor + cfg.TickSpacing
	return Ranges{
		Tick:  tick,
		Twap:  twap,
		Floor: floor,
		Ceil:  ceil,
		Base:  Range{floor - cfg.BaseThreshold, ceil + cfg.BaseThreshold},
		Bid:   Range{floor - cfg.LimitThreshold, floor},
		Ask:   Range{ceil, ceil + cfg.LimitThreshold},
	}, nil
}
