package sqrtprice_math

import (
	cons "github.com/ftchann/uniswap-vault/lib/constants"
	fm "github.com/ftchann/uniswap-vault/lib/fullmath"

	ui "github.com/holiman/uint256"
)

var MaxUint160 = new(ui.Int).Sub(new(ui.Int).Lsh(cons.One, 160), cons.One)

// GetAmount0Delta returns liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB) in token0 units.
func GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int, roundUp bool) *ui.Int {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	numerator1 := new(ui.Int).Lsh(liquidity, 96)
	numerator2 := new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		return fm.DivRoundingUp(fm.MulDivRoundingUp(numerator1, numerator2, sqrtRatioBX96), sqrtRatioAX96)
	}

	res := fm.MulDiv(numerator1, numerator2, sqrtRatioBX96)
	res.Div(res, sqrtRatioAX96)
	return res
}

// GetAmount1Delta returns liquidity * (sqrtB - sqrtA) in token1 units.
func GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int, roundUp bool) *ui.Int {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	diff := new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return fm.MulDivRoundingUp(liquidity, diff, cons.Q96)
	}
	return fm.MulDiv(liquidity, diff, cons.Q96)
}

func GetNextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *ui.Int, zeroForOne bool) *ui.Int {
	if zeroForOne {
		return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn)
	}
	return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn)
}

// only the exact input direction is needed, adding token0 moves the price down
func getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *ui.Int) *ui.Int {
	if amount.IsZero() {
		return sqrtPX96.Clone()
	}

	numerator1 := new(ui.Int).Lsh(liquidity, 96)
	product, overflow := new(ui.Int).MulOverflow(amount, sqrtPX96)
	if !overflow {
		denominator, overflow := new(ui.Int).AddOverflow(numerator1, product)
		if !overflow {
			return fm.MulDivRoundingUp(numerator1, sqrtPX96, denominator)
		}
	}
	return fm.DivRoundingUp(numerator1, new(ui.Int).Add(new(ui.Int).Div(numerator1, sqrtPX96), amount))
}

// adding token1 moves the price up
func getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *ui.Int) *ui.Int {
	var quotient *ui.Int
	if amount.Cmp(MaxUint160) <= 0 {
		quotient = new(ui.Int).Div(new(ui.Int).Lsh(amount, 96), liquidity)
	} else {
		quotient = fm.MulDiv(amount, cons.Q96, liquidity)
	}
	return new(ui.Int).Add(sqrtPX96, quotient)
}
