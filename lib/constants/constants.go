package constants

import (
	ui "github.com/holiman/uint256"
)

var (
	Zero       = new(ui.Int)
	One        = new(ui.Int).SetOne()
	MaxUint256 = new(ui.Int).SetAllOne()
	MaxUint128 = new(ui.Int).Sub(new(ui.Int).Lsh(One, 128), One)
	// used in liquidity amount math
	Q96  = new(ui.Int).Lsh(One, 96)
	Q128 = new(ui.Int).Lsh(One, 128)
	Q192 = new(ui.Int).Lsh(One, 192)
	E6   = new(ui.Int).Exp(ui.NewInt(10), ui.NewInt(6))
	// E18 is the unit of a full share in price-per-share figures.
	E18 = new(ui.Int).Exp(ui.NewInt(10), ui.NewInt(18))
)

// TickSpaces maps a pool fee in hundredths of a bip to its tick spacing.
var TickSpaces = map[int]int{
	100:   1,
	500:   10,
	3000:  60,
	10000: 200,
}
