package vault

import (
	"fmt"

	"github.com/ftchann/uniswap-vault/lib/access"
	la "github.com/ftchann/uniswap-vault/lib/liquidity_amounts"
	"github.com/ftchann/uniswap-vault/lib/rebalance"
	"github.com/ftchann/uniswap-vault/lib/tickmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

type RebalanceResult struct {
	Ranges         rebalance.Ranges
	Limit          rebalance.Range
	BaseLiquidity  *ui.Int
	LimitLiquidity *ui.Int
}

// Rebalance exits both ranges and redeploys the reserve adjusted idle balance
// around the current tick. Nothing is committed unless every step succeeds.
// On a failure after the old ranges were exited their capital is put back
// into them on a best effort basis.
// The limit range goes on whichever side, bid or ask, the leftover balances buy more liquidity in.
func (v *Vault) Rebalance(caller common.Address) (*RebalanceResult, error) {
	if err := v.roles.Require(caller, access.RoleKeeper, access.RoleStrategist, access.RoleGovernance); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.pause.RequireNotPaused(); err != nil {
		return nil, err
	}

	v.setPhase(PhaseValidating)
	defer v.setPhase(PhaseIdle)

	tick, err := v.oracle.CurrentTick()
	if err != nil {
		return nil, err
	}
	twap, err := v.oracle.TWAPTick(v.cfg.TwapWindow)
	if err != nil {
		return nil, err
	}
	minTick, maxTick := v.oracle.GlobalTickBounds()
	plan, err := rebalance.Plan(v.cfg, tick, twap, minTick, maxTick)
	if err != nil {
		v.lg.Warn().Err(err).Int("Tick", tick).Int("Twap", twap).Msg("Rebalance rejected")
		return nil, err
	}
	for _, r := range []rebalance.Range{plan.Base, plan.Bid, plan.Ask} {
		if err := r.Validate(v.cfg.TickSpacing, minTick, maxTick); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
		}
	}

	v.setPhase(PhaseRepositioning)
	oldBase, oldLimit := v.base, v.limit
	if err := v.exitRange(oldBase); err != nil {
		return nil, err
	}
	if err := v.exitRange(oldLimit); err != nil {
		v.restore(oldBase, oldLimit)
		return nil, err
	}

	sqrtPriceX96, err := v.oracle.SqrtPriceX96()
	if err != nil {
		v.restore(oldBase, oldLimit)
		return nil, err
	}
	available0, available1 := v.available()
	baseLiquidity, used0, used1, err := v.enterRange(plan.Base, sqrtPriceX96, available0, available1)
	if err != nil {
		v.restore(oldBase, oldLimit)
		return nil, err
	}

	left0, left1 := new(ui.Int).Sub(available0, used0), new(ui.Int).Sub(available1, used1)
	limit := plan.Ask
	if liquidityFor(plan.Bid, sqrtPriceX96, left0, left1).Gt(liquidityFor(plan.Ask, sqrtPriceX96, left0, left1)) {
		limit = plan.Bid
	}
	limitLiquidity, _, _, err := v.enterRange(limit, sqrtPriceX96, left0, left1)
	if err != nil {
		if exitErr := v.exitRange(plan.Base); exitErr != nil {
			v.lg.Error().Err(exitErr).Str("Range", plan.Base.String()).Msg("Unwinding new base range failed")
		}
		v.restore(oldBase, oldLimit)
		return nil, err
	}

	v.base, v.limit = plan.Base, limit
	v.lastRebalance = v.chain.Now()
	v.lastTick = tick

	v.lg.Info().
		Int("Tick", tick).
		Int("Twap", twap).
		Str("Base", plan.Base.String()).
		Str("Limit", limit.String()).
		Str("BaseLiquidity", baseLiquidity.Dec()).
		Str("LimitLiquidity", limitLiquidity.Dec()).
		Msg("Rebalance")
	v.emit(Event{
		Kind:    EventRebalance,
		Account: caller,
		Base:    plan.Base,
		Limit:   limit,
		Tick:    tick,
	})
	return &RebalanceResult{
		Ranges:         plan,
		Limit:          limit,
		BaseLiquidity:  baseLiquidity,
		LimitLiquidity: limitLiquidity,
	}, nil
}

func liquidityFor(r rebalance.Range, sqrtPriceX96, amount0, amount1 *ui.Int) *ui.Int {
	return la.GetLiquidityForAmounts(
		sqrtPriceX96,
		tickmath.GetSqrtRatioAtTick(r.TickLower),
		tickmath.GetSqrtRatioAtTick(r.TickUpper),
		amount0,
		amount1,
	)
}

// exitRange burns all liquidity in r and collects it with the fees owed.
func (v *Vault) exitRange(r rebalance.Range) error {
	if r.IsZero() {
		return nil
	}
	state, err := v.oracle.PositionState(r.TickLower, r.TickUpper)
	if err != nil {
		return fmt.Errorf("position %s: %w", r, err)
	}
	if state.Liquidity != nil && !state.Liquidity.IsZero() {
		if _, _, err := v.positions.Burn(r.TickLower, r.TickUpper, state.Liquidity); err != nil {
			return fmt.Errorf("burn %s: %w", r, err)
		}
	}
	if _, _, err := v.positions.Collect(r.TickLower, r.TickUpper); err != nil {
		return fmt.Errorf("collect %s: %w", r, err)
	}
	return nil
}

// enterRange mints the most liquidity amount0 and amount1 can fund in r.
func (v *Vault) enterRange(r rebalance.Range, sqrtPriceX96, amount0, amount1 *ui.Int) (liquidity, used0, used1 *ui.Int, err error) {
	liquidity = liquidityFor(r, sqrtPriceX96, amount0, amount1)
	if liquidity.IsZero() {
		return liquidity, ui.NewInt(0), ui.NewInt(0), nil
	}
	used0, used1, err = v.positions.Mint(r.TickLower, r.TickUpper, liquidity)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("mint %s: %w", r, err)
	}
	return liquidity, used0, used1, nil
}

// restore puts available capital back into the previous ranges after a
// failed rebalance. Errors are logged; the previous ranges stay recorded
// either way.
func (v *Vault) restore(base, limit rebalance.Range) {
	if base.IsZero() && limit.IsZero() {
		return
	}
	sqrtPriceX96, err := v.oracle.SqrtPriceX96()
	if err != nil {
		v.lg.Error().Err(err).Msg("Restoring ranges failed")
		return
	}
	left0, left1 := v.available()
	for _, r := range []rebalance.Range{base, limit} {
		if r.IsZero() {
			continue
		}
		_, used0, used1, err := v.enterRange(r, sqrtPriceX96, left0, left1)
		if err != nil {
			v.lg.Error().Err(err).Str("Range", r.String()).Msg("Restoring range failed")
			continue
		}
		left0.Sub(left0, used0)
		left1.Sub(left1, used1)
	}
}
