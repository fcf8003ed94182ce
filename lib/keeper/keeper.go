// Package keeper triggers vault rebalances on a cron schedule.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ftchann/uniswap-vault/lib/rebalance"
	"github.com/ftchann/uniswap-vault/lib/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Rebalancer interface {
	Rebalance(caller common.Address) (*vault.RebalanceResult, error)
}

type Outcome string

const (
	OutcomeRebalanced Outcome = "rebalanced"
	// OutcomeSkipped means the market refused a rebalance this time, which is expected.
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

type Observer interface {
	ObserveKeeperRun(Outcome)
}

type Stats struct {
	Runs       int
	Rebalanced int
	Skipped    int
	Failed     int
}

type Keeper struct {
	cron     *cron.Cron
	target   Rebalancer
	caller   common.Address
	observer Observer

	mu    sync.Mutex
	stats Stats
	lg    zerolog.Logger
}

type Option func(*Keeper)

func WithLogger(lg zerolog.Logger) Option {
	return func(k *Keeper) { k.lg = lg }
}

func WithObserver(o Observer) Option {
	return func(k *Keeper) { k.observer = o }
}

// New returns a keeper calling target.Rebalance as caller, which must hold the keeper role.
func New(target Rebalancer, caller common.Address, opts ...Option) *Keeper {
	k := &Keeper{
		cron:   cron.New(),
		target: target,
		caller: caller,
		lg:     zerolog.New(os.Stdout).With().Str("Module", "Keeper").Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Schedule registers a rebalance for every activation of spec, a standard five field cron expression.
func (k *Keeper) Schedule(spec string) (cron.EntryID, error) {
	id, err := k.cron.AddFunc(spec, func() { k.RunOnce() })
	if err != nil {
		return 0, fmt.Errorf("register rebalance %q: %w", spec, err)
	}
	return id, nil
}

func (k *Keeper) RunOnce() Outcome {
	res, err := k.target.Rebalance(k.caller)

	outcome := OutcomeRebalanced
	switch {
	case err == nil:
		k.lg.Info().Str("Base", res.Ranges.Base.String()).Str("Limit", res.Limit.String()).Msg("Rebalanced")
	case errors.Is(err, rebalance.ErrTwapDeviationExceeded), errors.Is(err, rebalance.ErrTickTooExtreme):
		outcome = OutcomeSkipped
		k.lg.Warn().Err(err).Msg("Rebalance skipped")
	default:
		outcome = OutcomeFailed
		k.lg.Error().Err(err).Msg("Rebalance failed")
	}

	k.mu.Lock()
	k.stats.Runs++
	switch outcome {
	case OutcomeRebalanced:
		k.stats.Rebalanced++
	case OutcomeSkipped:
		k.stats.Skipped++
	case OutcomeFailed:
		k.stats.Failed++
	}
	k.mu.Unlock()

	if k.observer != nil {
		k.observer.ObserveKeeperRun(outcome)
	}
	return outcome
}

func (k *Keeper) Stats() Stats {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stats
}

func (k *Keeper) Start() {
	k.cron.Start()
	k.lg.Info().Int("Entries", len(k.cron.Entries())).Msg("Keeper started")
}

// Stop halts the schedule. The returned context is done once running jobs finish.
func (k *Keeper) Stop() context.Context {
	ctx := k.cron.Stop()
	k.lg.Info().Msg("Keeper stopped")
	return ctx
}
