package vault_test

import (
	"testing"
	"time"

	"github.com/ftchann/uniswap-vault/lib/access"
	"github.com/ftchann/uniswap-vault/lib/amm"
	"github.com/ftchann/uniswap-vault/lib/chain"
	cons "github.com/ftchann/uniswap-vault/lib/constants"
	"github.com/ftchann/uniswap-vault/lib/ledger"
	"github.com/ftchann/uniswap-vault/lib/pool"
	"github.com/ftchann/uniswap-vault/lib/rebalance"
	"github.com/ftchann/uniswap-vault/lib/router"
	"github.com/ftchann/uniswap-vault/lib/tickmath"
	"github.com/ftchann/uniswap-vault/lib/vault"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	vaultAddr  = common.HexToAddress("0x7a11700000000000000000000000000000000001")
	routerAddr = common.HexToAddress("0x7a11700000000000000000000000000000000002")
	gov        = common.HexToAddress("0x9000000000000000000000000000000000000001")
	keeper     = common.HexToAddress("0x9000000000000000000000000000000000000002")
	alice      = common.HexToAddress("0x9000000000000000000000000000000000000003")
	bob        = common.HexToAddress("0x9000000000000000000000000000000000000004")
)

const start = 1_620_000_000

type market struct {
	pool   *pool.Pool
	token0 *ledger.Token
	token1 *ledger.Token
	clock  *chain.Clock
	router *router.Controller
	v      *vault.Vault
}

func newMarket(t *testing.T) *market {
	t.Helper()
	p, err := pool.NewPool("USDC", "WETH", 3000, cons.Q96, start)
	require.NoError(t, err)
	p.Advance(start + 120)

	m := &market{
		pool:   p,
		token0: ledger.NewToken(common.HexToAddress("0x10"), "USDC", 18),
		token1: ledger.NewToken(common.HexToAddress("0x11"), "WETH", 18),
		clock:  chain.NewClock(1, time.Unix(start+120, 0)),
	}
	m.router = router.NewController(routerAddr, vaultAddr, m.token0, m.token1)
	m.v, err = vault.New(vault.Config{
		Address:    vaultAddr,
		Governance: gov,
		Token0:     m.token0,
		Token1:     m.token1,
		Oracle:     amm.NewAdapter(p, vaultAddr, m.token0, m.token1),
		Positions:  amm.NewAdapter(p, vaultAddr, m.token0, m.token1),
		Chain:      m.clock,
		Rebalance: rebalance.Config{
			BaseThreshold:    3600,
			LimitThreshold:   1200,
			MaxTwapDeviation: 100,
			TwapWindow:       time.Minute,
			TickSpacing:      60,
		},
	}, vault.WithLogger(zerolog.Nop()), vault.WithRouter(m.router))
	require.NoError(t, err)
	require.NoError(t, m.v.Unpause(gov))
	require.NoError(t, m.v.Roles().Grant(gov, access.RoleKeeper, keeper))

	for _, token := range []*ledger.Token{m.token0, m.token1} {
		require.NoError(t, token.Mint(alice, cons.E18))
		token.Approve(alice, vaultAddr, cons.MaxUint256)
	}
	return m
}

// atLeast asserts x >= y - y/1000.
func atLeast(t *testing.T, y, x *ui.Int, msg string) {
	t.Helper()
	floor := new(ui.Int).Sub(y, new(ui.Int).Div(y, ui.NewInt(1000)))
	assert.False(t, x.Lt(floor), "%s: %s < %s", msg, x.Dec(), floor.Dec())
}

func TestRebalanceDeploysBaseAndLimit(t *testing.T) {
	m := newMarket(t)

	_, err := m.v.Deposit(alice, cons.E18, cons.E18, nil)
	require.NoError(t, err)

	res, err := m.v.Rebalance(keeper)
	require.NoError(t, err)
	assert.Equal(t, rebalance.Range{TickLower: -3600, TickUpper: 3660}, res.Ranges.Base)
	// the base range is wider above the price, so asset1 is left over for the bid
	assert.Equal(t, res.Ranges.Bid, res.Limit)
	assert.False(t, res.BaseLiquidity.IsZero())
	assert.False(t, res.LimitLiquidity.IsZero())

	state := m.v.State()
	assert.Equal(t, res.Ranges.Base, state.Base)
	assert.Equal(t, res.Limit, state.Limit)
	assert.Equal(t, 0, state.LastTick)
	assert.Equal(t, m.clock.Now(), state.LastRebalance)
	// 5% of each asset stays idle
	atLeast(t, new(ui.Int).Div(cons.E18, ui.NewInt(20)), state.Idle0, "idle0")

	total0, total1, err := m.v.TotalAmounts()
	require.NoError(t, err)
	assert.False(t, total0.Gt(cons.E18))
	assert.False(t, total1.Gt(cons.E18))
	atLeast(t, cons.E18, total0, "total0")
	atLeast(t, cons.E18, total1, "total1")
}

func TestWithdrawSourcesFromRanges(t *testing.T) {
	m := newMarket(t)
	_, err := m.v.Deposit(alice, cons.E18, cons.E18, nil)
	require.NoError(t, err)
	_, err = m.v.Rebalance(keeper)
	require.NoError(t, err)
	m.clock.Mine()

	half := new(ui.Int).Div(cons.E18, ui.NewInt(2))
	res, err := m.v.Withdraw(alice, half)
	require.NoError(t, err)
	assert.True(t, res.Amount0.Eq(res.Owed0), "paid in full")
	assert.True(t, res.Amount1.Eq(res.Owed1), "paid in full")
	atLeast(t, half, res.Amount0, "amount0")

	m.clock.Mine()
	res, err = m.v.Withdraw(alice, half)
	require.NoError(t, err)
	assert.True(t, m.v.TotalSupply().IsZero())
	assert.False(t, m.token0.BalanceOf(alice).Gt(cons.E18), "no value created")
	assert.False(t, m.token1.BalanceOf(alice).Gt(cons.E18), "no value created")
	atLeast(t, cons.E18, m.token0.BalanceOf(alice), "alice asset0")

	state := m.v.State()
	liquidity, _, _ := m.pool.PositionInfo(vaultAddr, state.Base.TickLower, state.Base.TickUpper)
	assert.True(t, liquidity.IsZero())
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	m := newMarket(t)
	_, err := m.v.Deposit(alice, cons.E18, cons.E18, nil)
	require.NoError(t, err)
	_, err = m.v.Rebalance(keeper)
	require.NoError(t, err)

	desired := ui.NewInt(123_456_789_012_345)
	for _, token := range []*ledger.Token{m.token0, m.token1} {
		require.NoError(t, token.Mint(bob, desired))
		token.Approve(bob, vaultAddr, cons.MaxUint256)
	}
	dep, err := m.v.Deposit(bob, desired, desired, nil)
	require.NoError(t, err)
	assert.False(t, dep.Amount0.Gt(desired))
	assert.False(t, dep.Amount1.Gt(desired))

	m.clock.Mine()
	res, err := m.v.Withdraw(bob, dep.Shares)
	require.NoError(t, err)
	assert.True(t, m.v.BalanceOf(bob).IsZero())
	assert.False(t, res.Amount0.Gt(dep.Amount0), "%s > %s", res.Amount0.Dec(), dep.Amount0.Dec())
	assert.False(t, res.Amount1.Gt(dep.Amount1), "%s > %s", res.Amount1.Dec(), dep.Amount1.Dec())
	assert.False(t, m.token0.BalanceOf(bob).Gt(desired))
	assert.False(t, m.token1.BalanceOf(bob).Gt(desired))
}

func TestRebalanceFollowsPrice(t *testing.T) {
	m := newMarket(t)
	_, err := m.v.Deposit(alice, cons.E18, cons.E18, nil)
	require.NoError(t, err)
	first, err := m.v.Rebalance(keeper)
	require.NoError(t, err)

	_, _, err = m.pool.ExactInputSwap(new(ui.Int).Div(cons.E18, ui.NewInt(10)), "USDC", cons.Zero)
	require.NoError(t, err)
	_, tick := m.pool.Slot0()
	require.Less(t, tick, -100)

	// the twap has not caught up with the swap yet
	m.pool.Advance(start + 150)
	_, err = m.v.Rebalance(keeper)
	assert.ErrorIs(t, err, rebalance.ErrTwapDeviationExceeded)
	assert.Equal(t, first.Ranges.Base, m.v.State().Base)

	m.pool.Advance(start + 300)
	m.clock.Advance(3 * time.Minute)
	second, err := m.v.Rebalance(keeper)
	require.NoError(t, err)
	floor := tickmath.Floor(tick, 60)
	assert.Equal(t, rebalance.Range{TickLower: floor - 3600, TickUpper: floor + 60 + 3600}, second.Ranges.Base)
	assert.Equal(t, tick, m.v.State().LastTick)

	liquidity, _, _ := m.pool.PositionInfo(vaultAddr, first.Ranges.Base.TickLower, first.Ranges.Base.TickUpper)
	assert.True(t, liquidity.IsZero(), "old base exited")
	liquidity, _, _ = m.pool.PositionInfo(vaultAddr, second.Ranges.Base.TickLower, second.Ranges.Base.TickUpper)
	assert.True(t, liquidity.Eq(second.BaseLiquidity))
}

func TestEarnAndRouterLoss(t *testing.T) {
	m := newMarket(t)
	_, err := m.v.Deposit(alice, cons.E18, cons.E18, nil)
	require.NoError(t, err)

	amount0, _, err := m.v.Earn(keeper)
	require.NoError(t, err)
	assert.True(t, m.router.ReportedBalance(m.token0.Address()).Eq(amount0))

	loss := new(ui.Int).Div(amount0, ui.NewInt(2))
	require.NoError(t, m.router.RecordLoss(m.token0.Address(), loss))
	total0, _, err := m.v.TotalAmounts()
	require.NoError(t, err)
	assert.True(t, total0.Eq(new(ui.Int).Sub(cons.E18, loss)))

	m.router.SetFrozen(true)
	m.clock.Mine()
	res, err := m.v.Withdraw(alice, cons.E18)
	require.NoError(t, err)
	assert.True(t, res.Amount0.Lt(res.Owed0), "frozen router pays short")
	assert.True(t, res.Amount0.Eq(new(ui.Int).Sub(cons.E18, amount0)))
}
