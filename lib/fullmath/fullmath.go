package fullmath

import (
	"errors"

	cons "github.com/ftchann/uniswap-vault/lib/constants"

	ui "github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("fullmath: result overflows 256 bits")
	ErrDivisionByZero = errors.New("fullmath: division by zero")
)

// MulDivChecked computes floor(a*b/denominator) with a 512 bit intermediate.
func MulDivChecked(a, b, denominator *ui.Int) (*ui.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}
	result, overflow := new(ui.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

func MulDiv(a, b, denominator *ui.Int) *ui.Int {
	result, err := MulDivChecked(a, b, denominator)
	if err != nil {
		panic("mulDiv: " + err.Error())
	}
	return result
}

func MulDivRoundingUp(a, b, denominator *ui.Int) *ui.Int {
	if a.IsZero() || b.IsZero() {
		return ui.NewInt(0)
	}
	result := MulDiv(a, b, denominator)
	rem := new(ui.Int).MulMod(a, b, denominator)
	if !rem.IsZero() {
		result.Add(result, cons.One)
	}
	return result
}

// DivRoundingUp returns ceil(a/b).
func DivRoundingUp(a, b *ui.Int) *ui.Int {
	if b.IsZero() {
		panic("divRoundingUp: division by zero")
	}
	quotient := new(ui.Int).Div(a, b)
	if !new(ui.Int).Mod(a, b).IsZero() {
		quotient.Add(quotient, cons.One)
	}
	return quotient
}

func Min(a, b *ui.Int) *ui.Int {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}

func Max(a, b *ui.Int) *ui.Int {
	if a.Gt(b) {
		return a.Clone()
	}
	return b.Clone()
}
