package swapmath

import (
	fm "github.com/ftchann/uniswap-vault/lib/fullmath"
	sqrtmath "github.com/ftchann/uniswap-vault/lib/sqrtprice_math"

	ui "github.com/holiman/uint256"
)

var MaxFee = ui.NewInt(1_000_000)

// ComputeSwapStep computes one exact input step of a swap towards sqrtRatioTargetX96.
// The direction follows from the two prices.
func ComputeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining *ui.Int, feePips int) (sqrtRatioNextX96, amountIn, amountOut, feeAmount *ui.Int) {
	zeroForOne := sqrtRatioCurrentX96.Cmp(sqrtRatioTargetX96) >= 0
	fee := ui.NewInt(uint64(feePips))
	feeComplement := new(ui.Int).Sub(MaxFee, fee)

	amountRemainingLessFee := fm.MulDiv(amountRemaining, feeComplement, MaxFee)
	if zeroForOne {
		amountIn = sqrtmath.GetAmount0Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
	} else {
		amountIn = sqrtmath.GetAmount1Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
	}
	if amountRemainingLessFee.Cmp(amountIn) >= 0 {
		sqrtRatioNextX96 = sqrtRatioTargetX96.Clone()
	} else {
		sqrtRatioNextX96 = sqrtmath.GetNextSqrtPriceFromInput(sqrtRatioCurrentX96, liquidity, amountRemainingLessFee, zeroForOne)
	}

	max := sqrtRatioTargetX96.Eq(sqrtRatioNextX96)

	if zeroForOne {
		if !max {
			amountIn = sqrtmath.GetAmount0Delta(sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true)
		}
		amountOut = sqrtmath.GetAmount1Delta(sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false)
	} else {
		if !max {
			amountIn = sqrtmath.GetAmount1Delta(sqrtRatioCurrentX96, sqrtRatioNextX96, liquidity, true)
		}
		amountOut = sqrtmath.GetAmount0Delta(sqrtRatioCurrentX96, sqrtRatioNextX96, liquidity, false)
	}

	if !max {
		// we didn't reach the target, so take the remainder of the maximum input as fee
		feeAmount = new(ui.Int).Sub(amountRemaining, amountIn)
	} else {
		feeAmount = fm.MulDivRoundingUp(amountIn, fee, feeComplement)
	}
	return
}
