package tickmath

import (
	"errors"

	cons "github.com/ftchann/uniswap-vault/lib/constants"
	"github.com/ftchann/uniswap-vault/lib/invariant"

	ui "github.com/holiman/uint256"
)

const (
	MinTick int = -887272  // The minimum tick that can be used on any pool.
	MaxTick int = -MinTick // The maximum tick that can be used on any pool.
)

var (
	ErrTickOutOfBounds = errors.New("tickmath: tick out of bounds")
	ErrInvalidSpacing  = errors.New("tickmath: tick spacing must be positive")
)

var (
	Q32          = ui.NewInt(1 << 32)
	MinSqrtRatio = ui.NewInt(4295128739) // The sqrt ratio corresponding to the minimum tick that could be used on any pool.
	// The sqrt ratio corresponding to the maximum tick that could be used on any pool.
	MaxSqrtRatio = ui.MustFromDecimal("1461446703485210103287273052203988822378723970342")
)

// sqrt(1.0001)^-(2^i) as Q128.128, for bit i+1 of the absolute tick.
var magic = []*ui.Int{
	ui.MustFromHex("0xfff97272373d413259a46990580e213a"),
	ui.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	ui.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	ui.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	ui.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	ui.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	ui.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	ui.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	ui.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	ui.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	ui.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	ui.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	ui.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	ui.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	ui.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	ui.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	ui.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	ui.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	ui.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

var (
	oddTickRatio  = ui.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	evenTickRatio = new(ui.Int).Lsh(cons.One, 128)
)

// Floor returns the largest multiple of spacing that is <= tick.
func Floor(tick, spacing int) int {
	compressed := tick / spacing
	if tick < 0 && tick%spacing != 0 {
		compressed--
	}
	return compressed * spacing
}

// Ceil returns the smallest multiple of spacing that is >= tick.
func Ceil(tick, spacing int) int {
	floor := Floor(tick, spacing)
	if floor == tick {
		return tick
	}
	return floor + spacing
}

// CheckTick reports whether tick is representable and aligned to spacing.
func CheckTick(tick, spacing int) error {
	if spacing <= 0 {
		return ErrInvalidSpacing
	}
	if tick < MinTick || tick > MaxTick || tick%spacing != 0 {
		return ErrTickOutOfBounds
	}
	return nil
}

// GetSqrtRatioAtTick
// Returns the sqrt ratio as a Q64.96 for the given tick. The sqrt ratio is computed as sqrt(1.0001)^tick
// @param tick the tick for which to compute the sqrt ratio
func GetSqrtRatioAtTick(tick int) *ui.Int {
	absTick := tick
	if tick < 0 {
		absTick = -tick
	}
	invariant.Invariant(absTick <= MaxTick, "tick out of range")

	var ratio *ui.Int
	if absTick&0x1 != 0 {
		ratio = oddTickRatio.Clone()
	} else {
		ratio = evenTickRatio.Clone()
	}
	for i, m := range magic {
		if absTick&(1<<(i+1)) != 0 {
			ratio = mulShift(ratio, m)
		}
	}
	if tick > 0 {
		ratio = new(ui.Int).Div(cons.MaxUint256, ratio)
	}

	// back to Q96, rounding up
	if new(ui.Int).Mod(ratio, Q32).IsZero() {
		return new(ui.Int).Div(ratio, Q32)
	}
	return new(ui.Int).Add(new(ui.Int).Div(ratio, Q32), cons.One)
}

// GetTickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= sqrtRatioX96.
func GetTickAtSqrtRatio(sqrtRatioX96 *ui.Int) int {
	invariant.Invariant(sqrtRatioX96.Cmp(MinSqrtRatio) >= 0 && sqrtRatioX96.Cmp(MaxSqrtRatio) < 0, "sqrtRatioX96 must be between MinSqrtRatio and MaxSqrtRatio")
	l := MinTick
	r := MaxTick
	var mid int
	for l < r {
		mid = l + (r-l+1)/2
		if GetSqrtRatioAtTick(mid).Cmp(sqrtRatioX96) > 0 {
			r = mid - 1
		} else {
			l = mid
		}
	}
	return l
}

func mulShift(val, mulBy *ui.Int) *ui.Int {
	return new(ui.Int).Rsh(new(ui.Int).Mul(val, mulBy), 128)
}
