// Package amm binds an in-memory pool and its two asset ledgers to a single
// liquidity owner, so a vault can read the market and move its own liquidity.
package amm

import (
	"fmt"
	"time"

	"github.com/ftchann/uniswap-vault/lib/ledger"
	"github.com/ftchann/uniswap-vault/lib/pool"
	"github.com/ftchann/uniswap-vault/lib/tickmath"
	"github.com/ftchann/uniswap-vault/lib/vault"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

type Adapter struct {
	pool   *pool.Pool
	owner  common.Address
	token0 *ledger.Token
	token1 *ledger.Token
}

var (
	_ vault.Oracle          = (*Adapter)(nil)
	_ vault.PositionManager = (*Adapter)(nil)
)

func NewAdapter(p *pool.Pool, owner common.Address, token0, token1 *ledger.Token) *Adapter {
	return &Adapter{pool: p, owner: owner, token0: token0, token1: token1}
}

func (a *Adapter) SqrtPriceX96() (*ui.Int, error) {
	sqrtPriceX96, _ := a.pool.Slot0()
	return sqrtPriceX96, nil
}

func (a *Adapter) CurrentTick() (int, error) {
	_, tick := a.pool.Slot0()
	return tick, nil
}

// TWAPTick truncates window to whole seconds, the pool's time unit.
func (a *Adapter) TWAPTick(window time.Duration) (int, error) {
	return a.pool.TWAPTick(int64(window / time.Second))
}

func (a *Adapter) PositionState(tickLower, tickUpper int) (vault.PositionState, error) {
	liquidity, owed0, owed1 := a.pool.PositionInfo(a.owner, tickLower, tickUpper)
	return vault.PositionState{Liquidity: liquidity, TokensOwed0: owed0, TokensOwed1: owed1}, nil
}

func (a *Adapter) TickSpacing() int {
	return a.pool.TickSpacing
}

func (a *Adapter) GlobalTickBounds() (int, int) {
	return tickmath.MinTick, tickmath.MaxTick
}

// Mint adds liquidity owned by the adapter's owner and takes the cost out of
// the owner's ledger balances.
func (a *Adapter) Mint(tickLower, tickUpper int, liquidity *ui.Int) (*ui.Int, *ui.Int, error) {
	amount0, amount1, err := a.pool.MintAmounts(tickLower, tickUpper, liquidity)
	if err != nil {
		return nil, nil, err
	}
	if balance := a.token0.BalanceOf(a.owner); balance.Lt(amount0) {
		return nil, nil, fmt.Errorf("mint: %w: %s has %s, needs %s", ledger.ErrInsufficientBalance, a.token0.Symbol(), balance.Dec(), amount0.Dec())
	}
	if balance := a.token1.BalanceOf(a.owner); balance.Lt(amount1) {
		return nil, nil, fmt.Errorf("mint: %w: %s has %s, needs %s", ledger.ErrInsufficientBalance, a.token1.Symbol(), balance.Dec(), amount1.Dec())
	}
	amount0, amount1, err = a.pool.MintPosition(a.owner, tickLower, tickUpper, liquidity)
	if err != nil {
		return nil, nil, err
	}
	if err := a.token0.Burn(a.owner, amount0); err != nil {
		return nil, nil, err
	}
	if err := a.token1.Burn(a.owner, amount1); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Burn moves liquidity into tokens owed. Nothing reaches the owner until Collect.
func (a *Adapter) Burn(tickLower, tickUpper int, liquidity *ui.Int) (*ui.Int, *ui.Int, error) {
	return a.pool.BurnPosition(a.owner, tickLower, tickUpper, liquidity)
}

func (a *Adapter) Collect(tickLower, tickUpper int) (*ui.Int, *ui.Int, error) {
	amount0, amount1 := a.pool.CollectPosition(a.owner, tickLower, tickUpper)
	if err := a.token0.Mint(a.owner, amount0); err != nil {
		return nil, nil, err
	}
	if err := a.token1.Mint(a.owner, amount1); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}
