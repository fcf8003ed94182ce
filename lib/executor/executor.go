// Package executor replays pool history against a vault and records its value over time.
package executor

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ftchann/uniswap-vault/lib/chain"
	cons "github.com/ftchann/uniswap-vault/lib/constants"
	"github.com/ftchann/uniswap-vault/lib/keeper"
	"github.com/ftchann/uniswap-vault/lib/ledger"
	"github.com/ftchann/uniswap-vault/lib/pool"
	"github.com/ftchann/uniswap-vault/lib/prices"
	"github.com/ftchann/uniswap-vault/lib/result"
	ent "github.com/ftchann/uniswap-vault/lib/transaction"
	"github.com/ftchann/uniswap-vault/lib/vault"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

var ErrNoTransactions = errors.New("executor: no transactions")

// volatilityWindow is the number of snapshots the reported volatility spans.
const volatilityWindow = 24

type Execution struct {
	Pool   *pool.Pool
	Vault  *vault.Vault
	Keeper *keeper.Keeper
	Clock  *chain.Clock
	Token0 *ledger.Token
	Token1 *ledger.Token

	Depositor common.Address
	Deposit0  *ui.Int
	Deposit1  *ui.Int

	StartTime        int64
	UpdateInterval   int64
	SnapshotInterval int64
	Transactions     []ent.Transaction

	Snapshots []result.Snapshot
	window    *prices.Prices
	lg        zerolog.Logger
}

func CreateExecution(p *pool.Pool, v *vault.Vault, k *keeper.Keeper, clock *chain.Clock, token0, token1 *ledger.Token,
	depositor common.Address, deposit0, deposit1 *ui.Int,
	startTime int64, updateInterval, snapshotInterval time.Duration, transactions []ent.Transaction) *Execution {

	length := 0
	if n := len(transactions); n > 0 && snapshotInterval >= time.Second {
		length = int((transactions[n-1].Timestamp-startTime)/int64(snapshotInterval/time.Second)) + 2
	}
	if length < 0 {
		length = 0
	}
	return &Execution{
		Pool:             p,
		Vault:            v,
		Keeper:           k,
		Clock:            clock,
		Token0:           token0,
		Token1:           token1,
		Depositor:        depositor,
		Deposit0:         deposit0,
		Deposit1:         deposit1,
		StartTime:        startTime,
		UpdateInterval:   int64(updateInterval / time.Second),
		SnapshotInterval: int64(snapshotInterval / time.Second),
		Transactions:     transactions,
		Snapshots:        make([]result.Snapshot, 0, length),
		window:           prices.NewPrices(volatilityWindow),
		lg:               zerolog.New(os.Stdout).With().Str("Module", "Executor").Timestamp().Logger(),
	}
}

func (e *Execution) WithLogger(lg zerolog.Logger) *Execution {
	e.lg = lg
	return e
}

// Run replays every transaction. Once StartTime is reached the depositor
// enters the vault, the keeper rebalances every UpdateInterval and the vault
// is valued every SnapshotInterval. At the end all shares are withdrawn.
func (e *Execution) Run() (*result.Report, error) {
	if len(e.Transactions) == 0 {
		return nil, ErrNoTransactions
	}

	started := false
	nextUpdate := int64(math.MaxInt64)
	nextSnapshot := int64(math.MaxInt64)
	var shares *ui.Int

	for _, trans := range e.Transactions {
		e.Pool.Advance(trans.Timestamp)
		e.Clock.SetTime(time.Unix(trans.Timestamp, 0))

		// Start
		if !started && trans.Timestamp >= e.StartTime {
			var err error
			if shares, err = e.enter(); err != nil {
				return nil, err
			}
			e.Keeper.RunOnce()
			e.snapshot(trans.Timestamp)
			nextUpdate = trans.Timestamp + e.UpdateInterval
			nextSnapshot = trans.Timestamp + e.SnapshotInterval
			started = true
		}

		// Snapshot
		if trans.Timestamp >= nextSnapshot {
			e.snapshot(trans.Timestamp)
			nextSnapshot += e.SnapshotInterval
		}

		// Rebalance
		if trans.Timestamp >= nextUpdate {
			e.Keeper.RunOnce()
			nextUpdate += e.UpdateInterval
		}

		if err := e.apply(trans); err != nil {
			e.lg.Warn().Err(err).Str("ID", trans.ID).Str("Type", trans.Type).Msg("Transaction skipped")
		}
	}
	if !started {
		return nil, fmt.Errorf("executor: start time %d after the last transaction", e.StartTime)
	}

	last := e.Transactions[len(e.Transactions)-1].Timestamp
	e.Clock.Mine()
	withdrawn, err := e.Vault.Withdraw(e.Depositor, shares)
	if err != nil {
		return nil, fmt.Errorf("final withdraw: %w", err)
	}
	e.snapshot(last)

	stats := e.Keeper.Stats()
	return &result.Report{
		Token0:         e.Pool.Token0,
		Token1:         e.Pool.Token1,
		UpdateInterval: (time.Duration(e.UpdateInterval) * time.Second).String(),
		StartTime:      e.StartTime,
		EndTime:        last,
		Deposit0:       result.Amount(e.Deposit0, e.Token0.Decimals()).String(),
		Deposit1:       result.Amount(e.Deposit1, e.Token1.Decimals()).String(),
		Withdrawn0:     result.Amount(withdrawn.Amount0, e.Token0.Decimals()).String(),
		Withdrawn1:     result.Amount(withdrawn.Amount1, e.Token1.Decimals()).String(),
		Rebalances:     stats.Rebalanced,
		Skipped:        stats.Skipped,
		Failed:         stats.Failed,
		Snapshots:      e.Snapshots,
	}, nil
}

// enter funds the depositor and deposits on its behalf.
func (e *Execution) enter() (*ui.Int, error) {
	for _, f := range []struct {
		token  *ledger.Token
		amount *ui.Int
	}{{e.Token0, e.Deposit0}, {e.Token1, e.Deposit1}} {
		if err := f.token.Mint(e.Depositor, f.amount); err != nil {
			return nil, err
		}
		f.token.Approve(e.Depositor, e.Vault.Address(), f.amount)
	}
	res, err := e.Vault.Deposit(e.Depositor, e.Deposit0, e.Deposit1, nil)
	if err != nil {
		return nil, fmt.Errorf("initial deposit: %w", err)
	}
	return res.Shares, nil
}

func (e *Execution) apply(trans ent.Transaction) error {
	var err error
	switch trans.Type {
	case ent.TypeMint:
		_, _, err = e.Pool.Mint(trans.TickLower, trans.TickUpper, trans.Amount)
	case ent.TypeBurn:
		_, _, err = e.Pool.Burn(trans.TickLower, trans.TickUpper, trans.Amount)
	case ent.TypeSwap:
		if !trans.Amount0.IsZero() {
			_, _, err = e.Pool.ExactInputSwap(trans.Amount0, e.Pool.Token0, cons.Zero)
		} else if !trans.Amount1.IsZero() {
			_, _, err = e.Pool.ExactInputSwap(trans.Amount1, e.Pool.Token1, cons.Zero)
		}
	case ent.TypeFlash:
		e.Pool.Flash(trans.Amount0, trans.Amount1)
	}
	return err
}

func (e *Execution) snapshot(timestamp int64) {
	sqrtPriceX96, tick := e.Pool.Slot0()
	total0, total1, err := e.Vault.TotalAmounts()
	if err != nil {
		e.lg.Warn().Err(err).Int64("Timestamp", timestamp).Msg("Snapshot skipped")
		return
	}
	pps0, pps1, err := e.Vault.PricePerFullShare()
	if err != nil {
		e.lg.Warn().Err(err).Int64("Timestamp", timestamp).Msg("Snapshot skipped")
		return
	}
	d0, d1 := e.Token0.Decimals(), e.Token1.Decimals()
	price := result.Price(sqrtPriceX96, d0, d1)
	e.window.Add(price)
	amount0, amount1 := result.Amount(total0, d0), result.Amount(total1, d1)
	e.Snapshots = append(e.Snapshots, result.Snapshot{
		Timestamp: timestamp,
		Block:     e.Clock.BlockNumber(),
		Tick:      tick,
		Price:     price.String(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
		Value:     result.Value(amount0, amount1, price).String(),
		PPS0:      result.PPS(pps0, d0),
		PPS1:      result.PPS(pps1, d1),

		Volatility: e.window.Volatility().StringFixed(6),
	})
}
