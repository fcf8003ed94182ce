// Package result formats simulation output.
package result

import (
	"encoding/json"
	"io"

	cons "github.com/ftchann/uniswap-vault/lib/constants"

	ui "github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

type Snapshot struct {
	Timestamp int64  `json:"timestamp"`
	Block     uint64 `json:"block"`
	Tick      int    `json:"tick"`
	Price     string `json:"price"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	// Value is the position valued in asset1 at the snapshot price.
	Value string `json:"value"`
	PPS0  string `json:"pps0"`
	PPS1  string `json:"pps1"`
	// Volatility is the relative standard deviation of recent snapshot prices.
	Volatility string `json:"volatility"`
}

type Report struct {
	Token0         string     `json:"token0"`
	Token1         string     `json:"token1"`
	UpdateInterval string     `json:"update_interval"`
	StartTime      int64      `json:"start_time"`
	EndTime        int64      `json:"end_time"`
	Deposit0       string     `json:"deposit0"`
	Deposit1       string     `json:"deposit1"`
	Withdrawn0     string     `json:"withdrawn0"`
	Withdrawn1     string     `json:"withdrawn1"`
	Rebalances     int        `json:"rebalances"`
	Skipped        int        `json:"skipped"`
	Failed         int        `json:"failed"`
	Snapshots      []Snapshot `json:"snapshots"`
}

// Amount scales a raw token amount by its decimals.
func Amount(x *ui.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(x.ToBig(), -decimals)
}

// Price returns the price of one whole token0 in whole token1 at sqrtPriceX96.
func Price(sqrtPriceX96 *ui.Int, decimals0, decimals1 int32) decimal.Decimal {
	ratio := decimal.NewFromBigInt(sqrtPriceX96.ToBig(), 0).DivRound(decimal.NewFromBigInt(cons.Q96.ToBig(), 0), 36)
	return ratio.Mul(ratio).Shift(decimals0 - decimals1)
}

// Value converts amount0 at price and adds amount1, all in whole tokens.
func Value(amount0, amount1, price decimal.Decimal) decimal.Decimal {
	return amount0.Mul(price).Add(amount1)
}

// PPS formats a price per full share (1e18 shares) in whole tokens.
func PPS(x *ui.Int, decimals int32) string {
	return Amount(x, decimals).String()
}

func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
