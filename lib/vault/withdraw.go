package vault

import (
	"fmt"

	"github.com/ftchann/uniswap-vault/lib/fullmath"
	"github.com/ftchann/uniswap-vault/lib/rebalance"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

type WithdrawResult struct {
	Shares *ui.Int
	// Owed is the caller's pro rata claim, Amount what was actually paid.
	Owed0   *ui.Int
	Owed1   *ui.Int
	Amount0 *ui.Int
	Amount1 *ui.Int
}

// Withdraw burns shares from caller and pays out their pro rata value. When
// idle balances fall short the vault first pulls the same fraction of
// liquidity out of both ranges and then asks the router for the rest. Whatever
// still cannot be sourced is not paid.
func (v *Vault) Withdraw(caller common.Address, shares *ui.Int) (*WithdrawResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.pause.RequireNotPaused(); err != nil {
		return nil, err
	}
	if shares.IsZero() {
		return nil, ErrZeroShares
	}
	block := v.chain.BlockNumber()
	if err := v.shares.checkUnlocked(caller, block); err != nil {
		return nil, err
	}
	if balance := v.shares.balanceOf(caller); balance.Lt(shares) {
		return nil, fmt.Errorf("%w: %s has %s, burns %s", ErrInsufficientShares, caller.Hex(), balance.Dec(), shares.Dec())
	}

	total0, total1, err := v.totalAmounts()
	if err != nil {
		return nil, err
	}
	supply := v.shares.totalSupply()
	owed0 := fullmath.MulDiv(total0, shares, supply)
	owed1 := fullmath.MulDiv(total1, shares, supply)

	v.shares.burn(caller, shares)
	undoLock := v.shares.lock(caller, block)
	rollback := func() {
		undoLock()
		v.shares.mint(caller, shares)
	}

	idle0, idle1 := v.idle()
	if idle0.Lt(owed0) || idle1.Lt(owed1) {
		if err := v.withdrawFromRanges(shares, supply); err != nil {
			rollback()
			return nil, err
		}
		idle0, idle1 = v.idle()
	}
	if v.router != nil {
		if idle0.Lt(owed0) {
			v.requestFromRouter(v.token0.Address(), new(ui.Int).Sub(owed0, idle0))
		}
		if idle1.Lt(owed1) {
			v.requestFromRouter(v.token1.Address(), new(ui.Int).Sub(owed1, idle1))
		}
		idle0, idle1 = v.idle()
	}

	amount0, amount1 := fullmath.Min(owed0, idle0), fullmath.Min(owed1, idle1)
	if err := v.pay(caller, amount0, amount1); err != nil {
		rollback()
		return nil, err
	}
	if amount0.Lt(owed0) || amount1.Lt(owed1) {
		v.lg.Warn().
			Str("Caller", caller.Hex()).
			Str("Owed0", owed0.Dec()).
			Str("Owed1", owed1.Dec()).
			Str("Paid0", amount0.Dec()).
			Str("Paid1", amount1.Dec()).
			Msg("Withdrawal paid short")
	}

	v.lg.Info().
		Str("Caller", caller.Hex()).
		Str("Shares", shares.Dec()).
		Str("Amount0", amount0.Dec()).
		Str("Amount1", amount1.Dec()).
		Msg("Withdraw")
	v.emit(Event{
		Kind:    EventWithdraw,
		Account: caller,
		Shares:  shares.Clone(),
		Amount0: amount0.Clone(),
		Amount1: amount1.Clone(),
	})
	return &WithdrawResult{Shares: shares.Clone(), Owed0: owed0, Owed1: owed1, Amount0: amount0, Amount1: amount1}, nil
}

// withdrawFromRanges burns shares/supply of the liquidity in each range and
// collects the proceeds together with any fees owed.
func (v *Vault) withdrawFromRanges(shares, supply *ui.Int) error {
	for _, r := range []rebalance.Range{v.base, v.limit} {
		if r.IsZero() {
			continue
		}
		state, err := v.oracle.PositionState(r.TickLower, r.TickUpper)
		if err != nil {
			return fmt.Errorf("position %s: %w", r, err)
		}
		liquidity := fullmath.MulDiv(state.Liquidity, shares, supply)
		if !liquidity.IsZero() {
			if _, _, err := v.positions.Burn(r.TickLower, r.TickUpper, liquidity); err != nil {
				return fmt.Errorf("burn %s: %w", r, err)
			}
		}
		if _, _, err := v.positions.Collect(r.TickLower, r.TickUpper); err != nil {
			return fmt.Errorf("collect %s: %w", r, err)
		}
	}
	return nil
}

// requestFromRouter treats a failing router as having delivered nothing.
func (v *Vault) requestFromRouter(asset common.Address, shortfall *ui.Int) {
	delivered, err := v.router.RequestWithdrawal(asset, shortfall)
	if err != nil {
		v.lg.Warn().Err(err).Str("Asset", asset.Hex()).Str("Shortfall", shortfall.Dec()).Msg("Router withdrawal failed")
		return
	}
	v.lg.Debug().Str("Asset", asset.Hex()).Str("Shortfall", shortfall.Dec()).Str("Delivered", delivered.Dec()).Msg("Router withdrawal")
}

func (v *Vault) pay(to common.Address, amount0, amount1 *ui.Int) error {
	if !amount0.IsZero() {
		if err := v.token0.Transfer(v.address, to, amount0); err != nil {
			return fmt.Errorf("pay asset0: %w", err)
		}
	}
	if !amount1.IsZero() {
		if err := v.token1.Transfer(v.address, to, amount1); err != nil {
			if !amount0.IsZero() {
				if undoErr := v.token0.Transfer(to, v.address, amount0); undoErr != nil {
					v.lg.Error().Err(undoErr).Str("To", to.Hex()).Msg("Reverting asset0 payment failed")
				}
			}
			return fmt.Errorf("pay asset1: %w", err)
		}
	}
	return nil
}
