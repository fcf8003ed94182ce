package vault

import (
	"fmt"

	"github.com/ftchann/uniswap-vault/lib/fullmath"

	ui "github.com/holiman/uint256"
)

// CalcSharesAndAmounts returns the shares minted for a deposit and the amounts
// actually taken. Required amounts round up and shares round down, so existing
// holders never lose value to rounding.
func CalcSharesAndAmounts(amount0Desired, amount1Desired, total0, total1, totalSupply *ui.Int) (shares, amount0, amount1 *ui.Int, err error) {
	if amount0Desired.IsZero() && amount1Desired.IsZero() {
		return nil, nil, nil, ErrZeroDeposit
	}

	switch {
	case totalSupply.IsZero():
		// the first depositor sets the exchange rate
		shares = fullmath.Max(amount0Desired, amount1Desired)
		amount0, amount1 = amount0Desired.Clone(), amount1Desired.Clone()

	case total0.IsZero() && total1.IsZero():
		return nil, nil, nil, fmt.Errorf("%w: supply %s backed by zero value", ErrInvariantViolation, totalSupply.Dec())

	case total0.IsZero():
		if amount1Desired.IsZero() {
			return nil, nil, nil, fmt.Errorf("%w: vault holds only asset1", ErrIncompatibleDepositRatio)
		}
		shares, err = fullmath.MulDivChecked(amount1Desired, totalSupply, total1)
		if err != nil {
			return nil, nil, nil, err
		}
		amount0, amount1 = ui.NewInt(0), amount1Desired.Clone()

	case total1.IsZero():
		if amount0Desired.IsZero() {
			return nil, nil, nil, fmt.Errorf("%w: vault holds only asset0", ErrIncompatibleDepositRatio)
		}
		shares, err = fullmath.MulDivChecked(amount0Desired, totalSupply, total0)
		if err != nil {
			return nil, nil, nil, err
		}
		amount0, amount1 = amount0Desired.Clone(), ui.NewInt(0)

	default:
		cross0, overflow0 := new(ui.Int).MulOverflow(amount0Desired, total1)
		cross1, overflow1 := new(ui.Int).MulOverflow(amount1Desired, total0)
		if overflow0 || overflow1 {
			return nil, nil, nil, fmt.Errorf("deposit cross product: %w", fullmath.ErrOverflow)
		}
		cross := fullmath.Min(cross0, cross1)
		if cross.IsZero() {
			return nil, nil, nil, ErrIncompatibleDepositRatio
		}
		amount0 = fullmath.DivRoundingUp(cross, total1)
		amount1 = fullmath.DivRoundingUp(cross, total0)
		// floor(floor(a/b)/c) == floor(a/(b*c)), and b*c may not fit 256 bits
		shares, err = fullmath.MulDivChecked(cross, totalSupply, total0)
		if err != nil {
			return nil, nil, nil, err
		}
		shares.Div(shares, total1)
	}

	if shares.IsZero() {
		return nil, nil, nil, ErrZeroShares
	}
	return shares, amount0, amount1, nil
}
