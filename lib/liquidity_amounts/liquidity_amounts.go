package liquidity_amounts

import (
	cons "github.com/ftchann/uniswap-vault/lib/constants"
	"github.com/ftchann/uniswap-vault/lib/fullmath"
	sqrtmath "github.com/ftchann/uniswap-vault/lib/sqrtprice_math"

	ui "github.com/holiman/uint256"
)

func sorted(sqrtRatioAX96, sqrtRatioBX96 *ui.Int) (*ui.Int, *ui.Int) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		return sqrtRatioBX96, sqrtRatioAX96
	}
	return sqrtRatioAX96, sqrtRatioBX96
}

func GetLiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0 *ui.Int) *ui.Int {
	sqrtRatioAX96, sqrtRatioBX96 = sorted(sqrtRatioAX96, sqrtRatioBX96)
	intermediate := fullmath.MulDiv(sqrtRatioAX96, sqrtRatioBX96, cons.Q96)
	return fullmath.MulDiv(amount0, intermediate, new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}

func GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1 *ui.Int) *ui.Int {
	sqrtRatioAX96, sqrtRatioBX96 = sorted(sqrtRatioAX96, sqrtRatioBX96)
	return fullmath.MulDiv(amount1, cons.Q96, new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}

// GetLiquidityForAmounts returns the largest liquidity the two amounts can back
// in the range at the given price. Minting the result never needs more than the amounts.
func GetLiquidityForAmounts(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, amount0, amount1 *ui.Int) *ui.Int {
	sqrtRatioAX96, sqrtRatioBX96 = sorted(sqrtRatioAX96, sqrtRatioBX96)
	if sqrtRatioX96.Cmp(sqrtRatioAX96) <= 0 {
		return GetLiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0)
	}
	if sqrtRatioX96.Cmp(sqrtRatioBX96) < 0 {
		liquidity0 := GetLiquidityForAmount0(sqrtRatioX96, sqrtRatioBX96, amount0)
		liquidity1 := GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioX96, amount1)
		return fullmath.Min(liquidity0, liquidity1)
	}
	return GetLiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1)
}

// GetAmountsForLiquidity returns the token amounts held by liquidity in the range
// at the given price, rounded down.
func GetAmountsForLiquidity(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int) (amount0, amount1 *ui.Int) {
	sqrtRatioAX96, sqrtRatioBX96 = sorted(sqrtRatioAX96, sqrtRatioBX96)
	amount0, amount1 = new(ui.Int), new(ui.Int)
	if liquidity.IsZero() {
		return
	}
	if sqrtRatioX96.Cmp(sqrtRatioAX96) <= 0 {
		amount0 = sqrtmath.GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, false)
	} else if sqrtRatioX96.Cmp(sqrtRatioBX96) < 0 {
		amount0 = sqrtmath.GetAmount0Delta(sqrtRatioX96, sqrtRatioBX96, liquidity, false)
		amount1 = sqrtmath.GetAmount1Delta(sqrtRatioAX96, sqrtRatioX96, liquidity, false)
	} else {
		amount1 = sqrtmath.GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, false)
	}
	return
}
