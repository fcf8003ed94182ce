package pool

import (
	"errors"
	"fmt"
	"sync"

	cons "github.com/ftchann/uniswap-vault/lib/constants"
	"github.com/ftchann/uniswap-vault/lib/fullmath"
	"github.com/ftchann/uniswap-vault/lib/position"
	"github.com/ftchann/uniswap-vault/lib/sqrtprice_math"
	"github.com/ftchann/uniswap-vault/lib/swapmath"
	td "github.com/ftchann/uniswap-vault/lib/tickdata"
	"github.com/ftchann/uniswap-vault/lib/tickmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// DefaultCardinality is the number of tick accumulator samples kept for TWAP queries.
const DefaultCardinality = 1024

var (
	ErrUnknownFee            = errors.New("pool: unknown fee tier")
	ErrInvalidTickRange      = errors.New("pool: invalid tick range")
	ErrZeroLiquidity         = errors.New("pool: liquidity must be positive")
	ErrInsufficientLiquidity = errors.New("pool: position has insufficient liquidity")
	ErrPriceLimit            = errors.New("pool: invalid sqrt price limit")
	ErrUnknownToken          = errors.New("pool: unknown token")
)

type stepComputations struct {
	sqrtPriceStartX96 *ui.Int
	tickNext          int
	initialized       bool
	sqrtPriceNextX96  *ui.Int
	amountIn          *ui.Int
	amountOut         *ui.Int
	feeAmount         *ui.Int
}

type swapState struct {
	amountRemaining     *ui.Int
	amountOut           *ui.Int
	sqrtPriceX96        *ui.Int
	tick                int
	feeGrowthGlobalX128 *ui.Int
	liquidity           *ui.Int
}

// Pool is an in-memory concentrated liquidity pool. It supports replaying
// anonymous liquidity from history next to owner-keyed positions that accrue fees.
type Pool struct {
	mu sync.Mutex

	Token0               string
	Token1               string
	Fee                  int
	SqrtRatioX96         *ui.Int
	Liquidity            *ui.Int
	FeeGrowthGlobal0X128 *ui.Int
	FeeGrowthGlobal1X128 *ui.Int
	TickSpacing          int
	TickCurrent          int
	TickData             *td.TickData
	Positions            map[position.Key]*position.Info

	observations *Observations
	now          int64
}

func NewPool(token0, token1 string, fee int, sqrtRatioX96 *ui.Int, timestamp int64) (*Pool, error) {
	tickSpacing, ok := cons.TickSpaces[fee]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFee, fee)
	}
	if sqrtRatioX96.Cmp(tickmath.MinSqrtRatio) < 0 || sqrtRatioX96.Cmp(tickmath.MaxSqrtRatio) >= 0 {
		return nil, fmt.Errorf("%w: initial price %s", ErrPriceLimit, sqrtRatioX96.Dec())
	}
	return &Pool{
		Token0:               token0,
		Token1:               token1,
		Fee:                  fee,
		SqrtRatioX96:         sqrtRatioX96.Clone(),
		Liquidity:            ui.NewInt(0),
		FeeGrowthGlobal0X128: ui.NewInt(0),
		FeeGrowthGlobal1X128: ui.NewInt(0),
		TickSpacing:          tickSpacing,
		TickCurrent:          tickmath.GetTickAtSqrtRatio(sqrtRatioX96),
		TickData:             td.NewTickData(tickSpacing),
		Positions:            make(map[position.Key]*position.Info),
		observations:         NewObservations(DefaultCardinality, timestamp),
		now:                  timestamp,
	}, nil
}

// Advance moves the pool clock forward. Going backwards is ignored.
func (p *Pool) Advance(timestamp int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if timestamp > p.now {
		p.now = timestamp
	}
}

func (p *Pool) Now() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

// Slot0 returns the current sqrt price and tick.
func (p *Pool) Slot0() (*ui.Int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SqrtRatioX96.Clone(), p.TickCurrent
}

// TWAPTick returns the mean tick over the last window seconds.
func (p *Pool) TWAPTick(window int64) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.observations.TWAP(p.now, window, p.TickCurrent)
}

func (p *Pool) checkTicks(tickLower, tickUpper int) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidTickRange, tickLower, tickUpper)
	}
	if err := tickmath.CheckTick(tickLower, p.TickSpacing); err != nil {
		return fmt.Errorf("%w: lower %d: %v", ErrInvalidTickRange, tickLower, err)
	}
	if err := tickmath.CheckTick(tickUpper, p.TickSpacing); err != nil {
		return fmt.Errorf("%w: upper %d: %v", ErrInvalidTickRange, tickUpper, err)
	}
	return nil
}

// amountsForLiquidity returns what liquidity in the range is worth at the current price.
// Minting rounds up, burning rounds down.
func (p *Pool) amountsForLiquidity(tickLower, tickUpper int, liquidity *ui.Int, roundUp bool) (amount0, amount1 *ui.Int) {
	sqrtLower := tickmath.GetSqrtRatioAtTick(tickLower)
	sqrtUpper := tickmath.GetSqrtRatioAtTick(tickUpper)
	amount0, amount1 = ui.NewInt(0), ui.NewInt(0)
	if p.TickCurrent < tickLower {
		amount0 = sqrtprice_math.GetAmount0Delta(sqrtLower, sqrtUpper, liquidity, roundUp)
	} else if p.TickCurrent < tickUpper {
		amount0 = sqrtprice_math.GetAmount0Delta(p.SqrtRatioX96, sqrtUpper, liquidity, roundUp)
		amount1 = sqrtprice_math.GetAmount1Delta(sqrtLower, p.SqrtRatioX96, liquidity, roundUp)
	} else {
		amount1 = sqrtprice_math.GetAmount1Delta(sqrtLower, sqrtUpper, liquidity, roundUp)
	}
	return
}

// modifyPosition applies a signed liquidity delta to the range. Owner-keyed positions
// are credited with the fees accrued inside the range before the delta is applied.
func (p *Pool) modifyPosition(key *position.Key, tickLower, tickUpper int, liquidityDelta *ui.Int) {
	flippedLower := p.TickData.UpdateTick(tickLower, p.TickCurrent, liquidityDelta, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128, false)
	flippedUpper := p.TickData.UpdateTick(tickUpper, p.TickCurrent, liquidityDelta, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128, true)

	if key != nil {
		inside0, inside1 := p.TickData.GetFeeGrowthInside(tickLower, tickUpper, p.TickCurrent, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128)
		pos, ok := p.Positions[*key]
		if !ok {
			pos = position.NewPosition()
			p.Positions[*key] = pos
		}
		pos.Update(liquidityDelta, inside0, inside1)
	}

	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			p.TickData.Clear(tickLower)
		}
		if flippedUpper {
			p.TickData.Clear(tickUpper)
		}
	}

	if p.TickCurrent >= tickLower && p.TickCurrent < tickUpper {
		p.Liquidity.Add(p.Liquidity, liquidityDelta)
	}
}

// Mint adds anonymous liquidity, as replayed from pool history.
func (p *Pool) Mint(tickLower, tickUpper int, amount *ui.Int) (amount0, amount1 *ui.Int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err = p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	if amount.IsZero() {
		return nil, nil, ErrZeroLiquidity
	}
	amount0, amount1 = p.amountsForLiquidity(tickLower, tickUpper, amount, true)
	p.modifyPosition(nil, tickLower, tickUpper, amount)
	return amount0, amount1, nil
}

// Burn removes anonymous liquidity, as replayed from pool history.
func (p *Pool) Burn(tickLower, tickUpper int, amount *ui.Int) (amount0, amount1 *ui.Int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err = p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	if amount.IsZero() {
		return nil, nil, ErrZeroLiquidity
	}
	amount0, amount1 = p.amountsForLiquidity(tickLower, tickUpper, amount, false)
	p.modifyPosition(nil, tickLower, tickUpper, new(ui.Int).Neg(amount))
	return amount0, amount1, nil
}

// MintAmounts returns what minting liquidity into the range costs at the current price.
func (p *Pool) MintAmounts(tickLower, tickUpper int, liquidity *ui.Int) (amount0, amount1 *ui.Int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err = p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	amount0, amount1 = p.amountsForLiquidity(tickLower, tickUpper, liquidity, true)
	return amount0, amount1, nil
}

// MintPosition adds liquidity to the owner's position and returns the amounts owed to the pool.
func (p *Pool) MintPosition(owner common.Address, tickLower, tickUpper int, liquidity *ui.Int) (amount0, amount1 *ui.Int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err = p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	if liquidity.IsZero() {
		return nil, nil, ErrZeroLiquidity
	}
	amount0, amount1 = p.amountsForLiquidity(tickLower, tickUpper, liquidity, true)
	p.modifyPosition(&position.Key{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}, tickLower, tickUpper, liquidity)
	return amount0, amount1, nil
}

// BurnPosition removes liquidity from the owner's position. The released amounts are
// credited to the position's owed tokens and paid out by CollectPosition.
func (p *Pool) BurnPosition(owner common.Address, tickLower, tickUpper int, liquidity *ui.Int) (amount0, amount1 *ui.Int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err = p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	key := position.Key{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}
	pos, ok := p.Positions[key]
	if !ok || pos.Liquidity.Lt(liquidity) {
		return nil, nil, fmt.Errorf("%w: [%d, %d)", ErrInsufficientLiquidity, tickLower, tickUpper)
	}
	amount0, amount1 = p.amountsForLiquidity(tickLower, tickUpper, liquidity, false)
	if liquidity.IsZero() {
		// poke, only settles fees
		inside0, inside1 := p.TickData.GetFeeGrowthInside(tickLower, tickUpper, p.TickCurrent, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128)
		pos.Update(liquidity, inside0, inside1)
		return amount0, amount1, nil
	}
	p.modifyPosition(&key, tickLower, tickUpper, new(ui.Int).Neg(liquidity))
	pos.TokensOwed0.Add(pos.TokensOwed0, amount0)
	pos.TokensOwed1.Add(pos.TokensOwed1, amount1)
	return amount0, amount1, nil
}

// CollectPosition pays out everything owed to the position. Unknown positions owe nothing.
func (p *Pool) CollectPosition(owner common.Address, tickLower, tickUpper int) (amount0, amount1 *ui.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := position.Key{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}
	pos, ok := p.Positions[key]
	if !ok {
		return ui.NewInt(0), ui.NewInt(0)
	}
	amount0, amount1 = pos.TokensOwed0.Clone(), pos.TokensOwed1.Clone()
	pos.TokensOwed0.Clear()
	pos.TokensOwed1.Clear()
	if pos.Liquidity.IsZero() {
		delete(p.Positions, key)
	}
	return amount0, amount1
}

// PositionInfo returns the position's liquidity and its owed tokens including fees
// accrued since the last update, without settling them.
func (p *Pool) PositionInfo(owner common.Address, tickLower, tickUpper int) (liquidity, owed0, owed1 *ui.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.Positions[position.Key{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}]
	if !ok {
		return ui.NewInt(0), ui.NewInt(0), ui.NewInt(0)
	}
	owed0, owed1 = pos.TokensOwed0.Clone(), pos.TokensOwed1.Clone()
	if !pos.Liquidity.IsZero() {
		inside0, inside1 := p.TickData.GetFeeGrowthInside(tickLower, tickUpper, p.TickCurrent, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128)
		accrued0, accrued1 := pos.Accrued(inside0, inside1)
		owed0.Add(owed0, accrued0)
		owed1.Add(owed1, accrued1)
	}
	return pos.Liquidity.Clone(), owed0, owed1
}

// Flash credits the flash loan fee on the borrowed amounts to in-range liquidity.
func (p *Pool) Flash(amount0, amount1 *ui.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Liquidity.IsZero() {
		return
	}
	fee0 := fullmath.MulDivRoundingUp(amount0, ui.NewInt(uint64(p.Fee)), cons.E6)
	fee1 := fullmath.MulDivRoundingUp(amount1, ui.NewInt(uint64(p.Fee)), cons.E6)

	p.FeeGrowthGlobal0X128.Add(p.FeeGrowthGlobal0X128, fullmath.MulDiv(fee0, cons.Q128, p.Liquidity))
	p.FeeGrowthGlobal1X128.Add(p.FeeGrowthGlobal1X128, fullmath.MulDiv(fee1, cons.Q128, p.Liquidity))
}

// ExactInputSwap sells amountIn of token. A zero sqrtPriceLimitX96 means no limit.
// It returns the input consumed including fees and the output paid.
func (p *Pool) ExactInputSwap(amountIn *ui.Int, token string, sqrtPriceLimitX96 *ui.Int) (*ui.Int, *ui.Int, error) {
	var zeroForOne bool
	switch token {
	case p.Token0:
		zeroForOne = true
	case p.Token1:
		zeroForOne = false
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.swap(zeroForOne, amountIn, sqrtPriceLimitX96)
}

func (p *Pool) swap(zeroForOne bool, amountIn *ui.Int, sqrtPriceLimitX96In *ui.Int) (*ui.Int, *ui.Int, error) {
	if amountIn.IsZero() {
		return ui.NewInt(0), ui.NewInt(0), nil
	}
	sqrtPriceLimitX96 := sqrtPriceLimitX96In.Clone()
	if sqrtPriceLimitX96.IsZero() {
		if zeroForOne {
			sqrtPriceLimitX96.Add(tickmath.MinSqrtRatio, cons.One)
		} else {
			sqrtPriceLimitX96.Sub(tickmath.MaxSqrtRatio, cons.One)
		}
	}
	if zeroForOne {
		if sqrtPriceLimitX96.Cmp(p.SqrtRatioX96) >= 0 || sqrtPriceLimitX96.Cmp(tickmath.MinSqrtRatio) <= 0 {
			return nil, nil, ErrPriceLimit
		}
	} else {
		if sqrtPriceLimitX96.Cmp(p.SqrtRatioX96) <= 0 || sqrtPriceLimitX96.Cmp(tickmath.MaxSqrtRatio) >= 0 {
			return nil, nil, ErrPriceLimit
		}
	}

	p.observations.Write(p.now, p.TickCurrent)

	var feeGrowthGlobalX128 *ui.Int
	if zeroForOne {
		feeGrowthGlobalX128 = p.FeeGrowthGlobal0X128.Clone()
	} else {
		feeGrowthGlobalX128 = p.FeeGrowthGlobal1X128.Clone()
	}
	state := swapState{
		amountRemaining:     amountIn.Clone(),
		amountOut:           ui.NewInt(0),
		sqrtPriceX96:        p.SqrtRatioX96.Clone(),
		tick:                p.TickCurrent,
		feeGrowthGlobalX128: feeGrowthGlobalX128,
		liquidity:           p.Liquidity.Clone(),
	}

	for !state.amountRemaining.IsZero() && !state.sqrtPriceX96.Eq(sqrtPriceLimitX96) {
		var step stepComputations
		step.sqrtPriceStartX96 = state.sqrtPriceX96
		step.tickNext, step.initialized = p.TickData.NextInitializedTick(state.tick, zeroForOne)

		if step.tickNext < tickmath.MinTick {
			step.tickNext = tickmath.MinTick
		} else if step.tickNext > tickmath.MaxTick {
			step.tickNext = tickmath.MaxTick
		}

		step.sqrtPriceNextX96 = tickmath.GetSqrtRatioAtTick(step.tickNext)
		targetValue := step.sqrtPriceNextX96
		if zeroForOne && step.sqrtPriceNextX96.Lt(sqrtPriceLimitX96) {
			targetValue = sqrtPriceLimitX96
		} else if !zeroForOne && step.sqrtPriceNextX96.Gt(sqrtPriceLimitX96) {
			targetValue = sqrtPriceLimitX96
		}

		state.sqrtPriceX96, step.amountIn, step.amountOut, step.feeAmount =
			swapmath.ComputeSwapStep(state.sqrtPriceX96, targetValue, state.liquidity, state.amountRemaining, p.Fee)

		state.amountRemaining.Sub(state.amountRemaining, new(ui.Int).Add(step.amountIn, step.feeAmount))
		state.amountOut.Add(state.amountOut, step.amountOut)

		if !state.liquidity.IsZero() {
			fee := fullmath.MulDiv(step.feeAmount, cons.Q128, state.liquidity)
			state.feeGrowthGlobalX128.Add(state.feeGrowthGlobalX128, fee)
		}

		if state.sqrtPriceX96.Eq(step.sqrtPriceNextX96) {
			if step.initialized {
				feeGrowthGlobal0X128, feeGrowthGlobal1X128 := p.FeeGrowthGlobal0X128, state.feeGrowthGlobalX128
				if zeroForOne {
					feeGrowthGlobal0X128, feeGrowthGlobal1X128 = state.feeGrowthGlobalX128, p.FeeGrowthGlobal1X128
				}
				liquidityNet := p.TickData.Cross(step.tickNext, feeGrowthGlobal0X128, feeGrowthGlobal1X128)
				if zeroForOne {
					state.liquidity.Sub(state.liquidity, liquidityNet)
				} else {
					state.liquidity.Add(state.liquidity, liquidityNet)
				}
			}
			if zeroForOne {
				state.tick = step.tickNext - 1
			} else {
				state.tick = step.tickNext
			}
		} else if !state.sqrtPriceX96.Eq(step.sqrtPriceStartX96) {
			state.tick = tickmath.GetTickAtSqrtRatio(state.sqrtPriceX96)
		}
	}

	p.TickCurrent = state.tick
	p.Liquidity = state.liquidity
	p.SqrtRatioX96 = state.sqrtPriceX96
	if zeroForOne {
		p.FeeGrowthGlobal0X128 = state.feeGrowthGlobalX128
	} else {
		p.FeeGrowthGlobal1X128 = state.feeGrowthGlobalX128
	}

	return new(ui.Int).Sub(amountIn, state.amountRemaining), state.amountOut, nil
}
