package tickdata

import (
	"sort"

	"github.com/ftchann/uniswap-vault/lib/tickmath"

	ui "github.com/holiman/uint256"
)

// Tick holds the per tick state of a pool. LiquidityNet is a two's complement signed value.
type Tick struct {
	Index                 int
	LiquidityGross        *ui.Int
	LiquidityNet          *ui.Int
	FeeGrowthOutside0X128 *ui.Int
	FeeGrowthOutside1X128 *ui.Int
}

// TickData keeps the initialized ticks of a pool sorted by index.
type TickData struct {
	ticks       []Tick
	tickSpacing int
}

func NewTickData(tickSpacing int) *TickData {
	return &TickData{
		ticks:       nil,
		tickSpacing: tickSpacing,
	}
}

func (t *TickData) Len() int {
	return len(t.ticks)
}

func (t *TickData) search(index int) (int, bool) {
	i := sort.Search(len(t.ticks), func(i int) bool { return t.ticks[i].Index >= index })
	return i, i < len(t.ticks) && t.ticks[i].Index == index
}

// GetTick returns the tick at index. Uninitialized ticks read as zero.
func (t *TickData) GetTick(index int) (Tick, bool) {
	i, found := t.search(index)
	if !found {
		return Tick{
			Index:                 index,
			LiquidityGross:        new(ui.Int),
			LiquidityNet:          new(ui.Int),
			FeeGrowthOutside0X128: new(ui.Int),
			FeeGrowthOutside1X128: new(ui.Int),
		}, false
	}
	return t.ticks[i], true
}

// UpdateTick applies liquidityDelta to the tick and reports whether it flipped
// between initialized and uninitialized. A flipped tick that ends with zero gross
// liquidity must be removed with Clear once fees have been read.
func (t *TickData) UpdateTick(index, tickCurrent int, liquidityDelta, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *ui.Int, upper bool) bool {
	i, found := t.search(index)
	if !found {
		tick := Tick{
			Index:                 index,
			LiquidityGross:        new(ui.Int),
			LiquidityNet:          new(ui.Int),
			FeeGrowthOutside0X128: new(ui.Int),
			FeeGrowthOutside1X128: new(ui.Int),
		}
		// by convention all growth before a tick was initialized happened below it
		if index <= tickCurrent {
			tick.FeeGrowthOutside0X128.Set(feeGrowthGlobal0X128)
			tick.FeeGrowthOutside1X128.Set(feeGrowthGlobal1X128)
		}
		t.ticks = append(t.ticks, Tick{})
		copy(t.ticks[i+1:], t.ticks[i:])
		t.ticks[i] = tick
	}

	tick := t.ticks[i]
	wasZero := tick.LiquidityGross.IsZero()
	tick.LiquidityGross.Add(tick.LiquidityGross, liquidityDelta)
	if upper {
		tick.LiquidityNet.Sub(tick.LiquidityNet, liquidityDelta)
	} else {
		tick.LiquidityNet.Add(tick.LiquidityNet, liquidityDelta)
	}
	return wasZero != tick.LiquidityGross.IsZero()
}

func (t *TickData) Clear(index int) {
	i, found := t.search(index)
	if !found {
		return
	}
	t.ticks = append(t.ticks[:i], t.ticks[i+1:]...)
}

// Cross flips the outside fee growth of the tick and returns its net liquidity.
func (t *TickData) Cross(index int, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *ui.Int) *ui.Int {
	i, found := t.search(index)
	if !found {
		return new(ui.Int)
	}
	tick := t.ticks[i]
	tick.FeeGrowthOutside0X128.Sub(feeGrowthGlobal0X128, tick.FeeGrowthOutside0X128)
	tick.FeeGrowthOutside1X128.Sub(feeGrowthGlobal1X128, tick.FeeGrowthOutside1X128)
	return tick.LiquidityNet.Clone()
}

// GetFeeGrowthInside returns the fee growth per unit of liquidity inside [lower, upper).
// All arithmetic wraps modulo 2^256.
func (t *TickData) GetFeeGrowthInside(tickLower, tickUpper, tickCurrent int, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *ui.Int) (*ui.Int, *ui.Int) {
	lower, _ := t.GetTick(tickLower)
	upper, _ := t.GetTick(tickUpper)

	var below0, below1 *ui.Int
	if tickCurrent >= tickLower {
		below0, below1 = lower.FeeGrowthOutside0X128, lower.FeeGrowthOutside1X128
	} else {
		below0 = new(ui.Int).Sub(feeGrowthGlobal0X128, lower.FeeGrowthOutside0X128)
		below1 = new(ui.Int).Sub(feeGrowthGlobal1X128, lower.FeeGrowthOutside1X128)
	}

	var above0, above1 *ui.Int
	if tickCurrent < tickUpper {
		above0, above1 = upper.FeeGrowthOutside0X128, upper.FeeGrowthOutside1X128
	} else {
		above0 = new(ui.Int).Sub(feeGrowthGlobal0X128, upper.FeeGrowthOutside0X128)
		above1 = new(ui.Int).Sub(feeGrowthGlobal1X128, upper.FeeGrowthOutside1X128)
	}

	inside0 := new(ui.Int).Sub(feeGrowthGlobal0X128, below0)
	inside0.Sub(inside0, above0)
	inside1 := new(ui.Int).Sub(feeGrowthGlobal1X128, below1)
	inside1.Sub(inside1, above1)
	return inside0, inside1
}

// NextInitializedTick returns the next initialized tick at or below tick when lte is set,
// otherwise strictly above it. Without one it returns the global bound and false.
func (t *TickData) NextInitializedTick(tick int, lte bool) (int, bool) {
	if lte {
		i, found := t.search(tick)
		if found {
			return tick, true
		}
		if i == 0 {
			return tickmath.MinTick, false
		}
		return t.ticks[i-1].Index, true
	}
	i, found := t.search(tick)
	if found {
		i++
	}
	if i >= len(t.ticks) {
		return tickmath.MaxTick, false
	}
	return t.ticks[i].Index, true
}
