package vault

import (
	"fmt"

	"github.com/ftchann/uniswap-vault/lib/constants"
	"github.com/ftchann/uniswap-vault/lib/fullmath"
	la "github.com/ftchann/uniswap-vault/lib/liquidity_amounts"
	"github.com/ftchann/uniswap-vault/lib/rebalance"
	"github.com/ftchann/uniswap-vault/lib/tickmath"

	ui "github.com/holiman/uint256"
)

func (v *Vault) idle() (*ui.Int, *ui.Int) {
	return v.token0.BalanceOf(v.address), v.token1.BalanceOf(v.address)
}

// balances is idle plus whatever the router reports it holds for the vault.
func (v *Vault) balances() (*ui.Int, *ui.Int) {
	balance0, balance1 := v.idle()
	if v.router != nil {
		balance0.Add(balance0, v.router.ReportedBalance(v.token0.Address()))
		balance1.Add(balance1, v.router.ReportedBalance(v.token1.Address()))
	}
	return balance0, balance1
}

// available is the share of idle capital a rebalance or earn may deploy.
func (v *Vault) available() (*ui.Int, *ui.Int) {
	idle0, idle1 := v.idle()
	return v.reserveRatio.Apply(idle0), v.reserveRatio.Apply(idle1)
}

// positionAmounts values the vault's liquidity in r at sqrtPriceX96, rounding
// down, plus everything already owed on the range.
func (v *Vault) positionAmounts(r rebalance.Range, sqrtPriceX96 *ui.Int) (*ui.Int, *ui.Int, error) {
	state, err := v.oracle.PositionState(r.TickLower, r.TickUpper)
	if err != nil {
		return nil, nil, fmt.Errorf("position %s: %w", r, err)
	}
	amount0, amount1 := la.GetAmountsForLiquidity(
		sqrtPriceX96,
		tickmath.GetSqrtRatioAtTick(r.TickLower),
		tickmath.GetSqrtRatioAtTick(r.TickUpper),
		state.Liquidity,
	)
	if state.TokensOwed0 != nil {
		amount0.Add(amount0, state.TokensOwed0)
	}
	if state.TokensOwed1 != nil {
		amount1.Add(amount1, state.TokensOwed1)
	}
	return amount0, amount1, nil
}

func (v *Vault) totalAmounts() (*ui.Int, *ui.Int, error) {
	total0, total1 := v.balances()
	if v.base.IsZero() && v.limit.IsZero() {
		return total0, total1, nil
	}
	sqrtPriceX96, err := v.oracle.SqrtPriceX96()
	if err != nil {
		return nil, nil, err
	}
	for _, r := range []rebalance.Range{v.base, v.limit} {
		if r.IsZero() {
			continue
		}
		amount0, amount1, err := v.positionAmounts(r, sqrtPriceX96)
		if err != nil {
			return nil, nil, err
		}
		total0.Add(total0, amount0)
		total1.Add(total1, amount1)
	}
	return total0, total1, nil
}

// TotalAmounts is the value backing all shares: idle and router balances plus
// both ranges valued at the current price.
func (v *Vault) TotalAmounts() (*ui.Int, *ui.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalAmounts()
}

func (v *Vault) Balance0() *ui.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	balance0, _ := v.balances()
	return balance0
}

func (v *Vault) Balance1() *ui.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, balance1 := v.balances()
	return balance1
}

// PricePerFullShare is the amount of each asset backing 1e18 shares. With no
// shares outstanding it reports 1e18 of each.
func (v *Vault) PricePerFullShare() (*ui.Int, *ui.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	supply := v.shares.totalSupply()
	if supply.IsZero() {
		return constants.E18.Clone(), constants.E18.Clone(), nil
	}
	total0, total1, err := v.totalAmounts()
	if err != nil {
		return nil, nil, err
	}
	return fullmath.MulDiv(total0, constants.E18, supply), fullmath.MulDiv(total1, constants.E18, supply), nil
}
