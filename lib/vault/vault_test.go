package vault

import (
	"errors"
	"testing"
	"time"

	"github.com/ftchann/uniswap-vault/lib/access"
	"github.com/ftchann/uniswap-vault/lib/chain"
	"github.com/ftchann/uniswap-vault/lib/constants"
	"github.com/ftchann/uniswap-vault/lib/fullmath"
	"github.com/ftchann/uniswap-vault/lib/ledger"
	"github.com/ftchann/uniswap-vault/lib/rebalance"
	"github.com/ftchann/uniswap-vault/lib/tickmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	vaultAddr  = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	routerAddr = common.HexToAddress("0xaaaa000000000000000000000000000000000002")
	gov        = common.HexToAddress("0xbbbb000000000000000000000000000000000001")
	keeper     = common.HexToAddress("0xbbbb000000000000000000000000000000000002")
	alice      = common.HexToAddress("0xcccc000000000000000000000000000000000001")
	bob        = common.HexToAddress("0xcccc000000000000000000000000000000000002")
	carol      = common.HexToAddress("0xcccc000000000000000000000000000000000003")
)

type fakeOracle struct {
	sqrtPriceX96 *ui.Int
	tick         int
	twap         int
	liquidity    *ui.Int
	err          error
}

func (o *fakeOracle) SqrtPriceX96() (*ui.Int, error)      { return o.sqrtPriceX96.Clone(), o.err }
func (o *fakeOracle) CurrentTick() (int, error)           { return o.tick, o.err }
func (o *fakeOracle) TWAPTick(time.Duration) (int, error) { return o.twap, o.err }
func (o *fakeOracle) TickSpacing() int                    { return 60 }
func (o *fakeOracle) GlobalTickBounds() (int, int)        { return tickmath.MinTick, tickmath.MaxTick }

func (o *fakeOracle) PositionState(int, int) (PositionState, error) {
	liquidity := ui.NewInt(0)
	if o.liquidity != nil {
		liquidity = o.liquidity.Clone()
	}
	return PositionState{Liquidity: liquidity, TokensOwed0: ui.NewInt(0), TokensOwed1: ui.NewInt(0)}, o.err
}

type fakePositions struct {
	err   error
	mints int
}

func (p *fakePositions) Mint(int, int, *ui.Int) (*ui.Int, *ui.Int, error) {
	p.mints++
	return nil, nil, p.err
}

func (p *fakePositions) Burn(int, int, *ui.Int) (*ui.Int, *ui.Int, error) {
	return ui.NewInt(0), ui.NewInt(0), p.err
}

func (p *fakePositions) Collect(int, int) (*ui.Int, *ui.Int, error) {
	return ui.NewInt(0), ui.NewInt(0), p.err
}

type fakeRouter struct {
	tokens map[common.Address]*ledger.Token
	err    error
}

func (r *fakeRouter) Address() common.Address { return routerAddr }

func (r *fakeRouter) ReportedBalance(asset common.Address) *ui.Int {
	return r.tokens[asset].BalanceOf(routerAddr)
}

func (r *fakeRouter) RequestWithdrawal(asset common.Address, amount *ui.Int) (*ui.Int, error) {
	if r.err != nil {
		return nil, r.err
	}
	token := r.tokens[asset]
	delivered := fullmath.Min(amount, token.BalanceOf(routerAddr))
	return delivered, token.Transfer(routerAddr, vaultAddr, delivered)
}

func (r *fakeRouter) DepositExcess(common.Address, *ui.Int) error { return nil }

type allowList map[common.Address]bool

func (a allowList) IsAuthorized(account common.Address, _ *ui.Int, _ [][32]byte) bool {
	return a[account]
}

type recordingSink struct {
	events []Event
	err    error
}

func (s *recordingSink) Record(e Event) error {
	s.events = append(s.events, e)
	return s.err
}

type testEnv struct {
	v         *Vault
	token0    *ledger.Token
	token1    *ledger.Token
	clock     *chain.Clock
	oracle    *fakeOracle
	positions *fakePositions
}

func testRebalanceConfig() rebalance.Config {
	return rebalance.Config{
		BaseThreshold:    3600,
		LimitThreshold:   1200,
		MaxTwapDeviation: 100,
		TwapWindow:       time.Minute,
		TickSpacing:      60,
	}
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		token0:    ledger.NewToken(common.HexToAddress("0x0000000000000000000000000000000000000010"), "USDC", 6),
		token1:    ledger.NewToken(common.HexToAddress("0x0000000000000000000000000000000000000011"), "WETH", 18),
		clock:     chain.NewClock(1, time.Unix(1_620_000_000, 0)),
		oracle:    &fakeOracle{sqrtPriceX96: constants.Q96},
		positions: &fakePositions{},
	}
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	v, err := New(Config{
		Address:    vaultAddr,
		Governance: gov,
		Token0:     env.token0,
		Token1:     env.token1,
		Oracle:     env.oracle,
		Positions:  env.positions,
		Chain:      env.clock,
		Rebalance:  testRebalanceConfig(),
	}, opts...)
	require.NoError(t, err)
	require.NoError(t, v.Unpause(gov))
	require.NoError(t, v.Roles().Grant(gov, access.RoleKeeper, keeper))
	env.v = v

	for _, acct := range []common.Address{alice, bob, carol} {
		for _, token := range []*ledger.Token{env.token0, env.token1} {
			require.NoError(t, token.Mint(acct, ui.NewInt(1_000_000)))
			token.Approve(acct, vaultAddr, constants.MaxUint256)
		}
	}
	return env
}

func (env *testEnv) router() *fakeRouter {
	return &fakeRouter{tokens: map[common.Address]*ledger.Token{
		env.token0.Address(): env.token0,
		env.token1.Address(): env.token1,
	}}
}

func TestNewValidatesConfig(t *testing.T) {
	base := Config{
		Address:    vaultAddr,
		Governance: gov,
		Token0:     ledger.NewToken(common.HexToAddress("0x10"), "A", 18),
		Token1:     ledger.NewToken(common.HexToAddress("0x11"), "B", 18),
		Oracle:     &fakeOracle{sqrtPriceX96: constants.Q96},
		Positions:  &fakePositions{},
		Chain:      chain.NewClock(1, time.Unix(0, 0)),
		Rebalance:  testRebalanceConfig(),
	}

	v, err := New(base, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, DefaultReserveRatio, v.State().ReserveRatio)
	assert.True(t, v.State().Paused, "starts paused")

	cfg := base
	cfg.Oracle = nil
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	cfg = base
	cfg.Rebalance.TickSpacing = 10
	_, err = New(cfg)
	assert.ErrorIs(t, err, rebalance.ErrInvalidConfig)

	cfg = base
	cfg.Rebalance.LimitThreshold = 1210
	_, err = New(cfg)
	assert.ErrorIs(t, err, rebalance.ErrInvalidConfig)

	cfg = base
	cfg.ReserveRatio = Ratio{Numerator: 3, Denominator: 2}
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidRatio)

	cfg = base
	cfg.Governance = common.Address{}
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrZeroAddress)
}

func TestDeposit(t *testing.T) {
	sink := &recordingSink{}
	env := newTestEnv(t, WithEventSink(sink))

	res, err := env.v.Deposit(alice, u(1000), u(2000), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), res.Shares.Uint64())
	assert.Equal(t, uint64(999_000), env.token0.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(998_000), env.token1.BalanceOf(alice).Uint64())

	res, err = env.v.Deposit(bob, u(100), u(150), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), res.Shares.Uint64())
	assert.Equal(t, uint64(75), res.Amount0.Uint64())
	assert.Equal(t, uint64(150), res.Amount1.Uint64())

	assert.Equal(t, uint64(2150), env.v.TotalSupply().Uint64())
	total0, total1, err := env.v.TotalAmounts()
	require.NoError(t, err)
	assert.Equal(t, uint64(1075), total0.Uint64())
	assert.Equal(t, uint64(2150), total1.Uint64())

	require.Len(t, sink.events, 2)
	assert.Equal(t, EventDeposit, sink.events[1].Kind)
	assert.Equal(t, bob, sink.events[1].Recipient)
	assert.Equal(t, uint64(2150), sink.events[1].TotalSupply.Uint64())
	assert.NotEqual(t, sink.events[0].ID, sink.events[1].ID)
}

func TestDepositPreconditions(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.v.DepositFor(alice, common.Address{}, u(1), u(1), nil)
	assert.ErrorIs(t, err, ErrZeroAddress)

	_, err = env.v.Deposit(alice, u(0), u(0), nil)
	assert.ErrorIs(t, err, ErrZeroDeposit)

	require.NoError(t, env.v.Pause(gov))
	_, err = env.v.Deposit(alice, u(1), u(1), nil)
	assert.ErrorIs(t, err, access.ErrPaused)
	require.NoError(t, env.v.Unpause(gov))

	require.NoError(t, env.v.SetAuthorizer(gov, allowList{bob: true}))
	_, err = env.v.Deposit(alice, u(1), u(1), nil)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = env.v.DepositFor(alice, bob, u(1), u(1), nil)
	assert.NoError(t, err, "authorization is checked on the recipient")

	assert.ErrorIs(t, env.v.SetAuthorizer(alice, nil), access.ErrUnauthorized)
	assert.True(t, env.v.TotalSupply().Eq(u(1)))
}

func TestDepositPullFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.token1.Burn(carol, u(1_000_000)))

	_, err := env.v.Deposit(carol, u(500), u(500), nil)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	assert.True(t, env.v.TotalSupply().IsZero())
	assert.Equal(t, uint64(1_000_000), env.token0.BalanceOf(carol).Uint64(), "asset0 refunded")
	assert.True(t, env.token0.BalanceOf(vaultAddr).IsZero())
	assert.False(t, env.v.Account(carol).Locked(env.clock.BlockNumber()))
}

func TestBlockLock(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.v.Deposit(alice, u(1000), u(1000), nil)
	require.NoError(t, err)
	assert.True(t, env.v.Account(alice).Locked(env.clock.BlockNumber()))

	_, err = env.v.Withdraw(alice, u(10))
	assert.ErrorIs(t, err, ErrAccountBlockLocked)
	assert.ErrorIs(t, env.v.Transfer(alice, bob, u(10)), ErrAccountBlockLocked)

	// a second deposit in the same block is allowed and keeps the lock
	_, err = env.v.Deposit(alice, u(10), u(10), nil)
	require.NoError(t, err)

	env.clock.Mine()
	_, err = env.v.Withdraw(alice, u(10))
	require.NoError(t, err)
	_, err = env.v.Withdraw(alice, u(10))
	assert.ErrorIs(t, err, ErrAccountBlockLocked, "withdrawals lock too")
}

func TestDepositForLocksRecipient(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.v.DepositFor(bob, alice, u(100), u(100), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), env.v.BalanceOf(alice).Uint64())
	assert.True(t, env.v.BalanceOf(bob).IsZero())

	_, err = env.v.Withdraw(alice, u(100))
	assert.ErrorIs(t, err, ErrAccountBlockLocked)
}

func TestWithdraw(t *testing.T) {
	sink := &recordingSink{}
	env := newTestEnv(t, WithEventSink(sink))

	_, err := env.v.Deposit(alice, u(1000), u(2000), nil)
	require.NoError(t, err)
	env.clock.Mine()

	_, err = env.v.Withdraw(alice, u(0))
	assert.ErrorIs(t, err, ErrZeroShares)
	_, err = env.v.Withdraw(alice, u(2001))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	res, err := env.v.Withdraw(alice, u(500))
	require.NoError(t, err)
	assert.Equal(t, uint64(250), res.Amount0.Uint64())
	assert.Equal(t, uint64(500), res.Amount1.Uint64())
	assert.True(t, res.Owed0.Eq(res.Amount0))
	assert.Equal(t, uint64(1500), env.v.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(999_250), env.token0.BalanceOf(alice).Uint64())
	assert.Equal(t, EventWithdraw, sink.events[len(sink.events)-1].Kind)
}

func TestWithdrawFromRouter(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.v.SetRouter(gov, env.router()))

	_, err := env.v.Deposit(alice, u(1000), u(2000), nil)
	require.NoError(t, err)
	amount0, amount1, err := env.v.Earn(keeper)
	require.NoError(t, err)
	assert.Equal(t, uint64(950), amount0.Uint64())
	assert.Equal(t, uint64(1900), amount1.Uint64())
	assert.Equal(t, uint64(1000), env.v.Balance0().Uint64(), "router balance is reported")
	assert.Equal(t, uint64(2000), env.v.Balance1().Uint64())

	env.clock.Mine()
	res, err := env.v.Withdraw(alice, u(1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(500), res.Amount0.Uint64())
	assert.Equal(t, uint64(1000), res.Amount1.Uint64())
	assert.Equal(t, uint64(500), env.token0.BalanceOf(routerAddr).Uint64())
}

func TestWithdrawPaysShortWhenRouterFails(t *testing.T) {
	env := newTestEnv(t)
	router := env.router()
	require.NoError(t, env.v.SetRouter(gov, router))

	_, err := env.v.Deposit(alice, u(1000), u(2000), nil)
	require.NoError(t, err)
	_, _, err = env.v.Earn(keeper)
	require.NoError(t, err)
	router.err = errors.New("strategy frozen")

	env.clock.Mine()
	res, err := env.v.Withdraw(alice, u(1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(500), res.Owed0.Uint64())
	assert.Equal(t, uint64(1000), res.Owed1.Uint64())
	assert.Equal(t, uint64(50), res.Amount0.Uint64())
	assert.Equal(t, uint64(100), res.Amount1.Uint64())
	assert.Equal(t, uint64(1000), env.v.BalanceOf(alice).Uint64(), "shares are burned regardless")
}

func TestWithdrawRangeFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.v.Deposit(alice, u(1000), u(1000), nil)
	require.NoError(t, err)
	// pretend a range is held so withdrawals try to source from it
	env.v.base = rebalance.Range{TickLower: -60, TickUpper: 60}
	env.oracle.liquidity = u(1_000_000)
	env.positions.err = errors.New("pool halted")

	env.clock.Mine()
	block := env.clock.BlockNumber()
	_, err = env.v.Withdraw(alice, u(500))
	assert.Error(t, err)
	assert.Equal(t, uint64(1000), env.v.BalanceOf(alice).Uint64())
	assert.False(t, env.v.Account(alice).Locked(block))
}

func TestTransfer(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.v.Deposit(alice, u(1000), u(1000), nil)
	require.NoError(t, err)
	env.clock.Mine()

	assert.ErrorIs(t, env.v.Transfer(alice, common.Address{}, u(1)), ErrZeroAddress)
	assert.ErrorIs(t, env.v.Transfer(alice, bob, u(1001)), ErrInsufficientShares)

	require.NoError(t, env.v.Transfer(alice, bob, u(400)))
	assert.Equal(t, uint64(600), env.v.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(400), env.v.BalanceOf(bob).Uint64())
	assert.Equal(t, uint64(1000), env.v.TotalSupply().Uint64())

	// transfers check the lock but do not set it
	assert.False(t, env.v.Account(alice).Locked(env.clock.BlockNumber()))
	require.NoError(t, env.v.Transfer(alice, bob, u(10)))
	_, err = env.v.Withdraw(alice, u(1))
	assert.NoError(t, err)
	_, err = env.v.Withdraw(bob, u(400))
	assert.NoError(t, err, "the recipient is not locked")

	// the withdrawal locked alice for the rest of the block
	assert.ErrorIs(t, env.v.Transfer(alice, bob, u(1)), ErrAccountBlockLocked)
}

func TestDepositIncompatibleRatioChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.v.Deposit(alice, u(1000), u(0), nil)
	require.NoError(t, err)
	env.clock.Mine()
	block := env.clock.BlockNumber()

	_, err = env.v.Deposit(carol, u(0), u(500), nil)
	assert.ErrorIs(t, err, ErrIncompatibleDepositRatio)

	assert.Equal(t, uint64(1000), env.v.TotalSupply().Uint64())
	assert.True(t, env.v.BalanceOf(carol).IsZero())
	assert.Equal(t, uint64(1_000_000), env.token1.BalanceOf(carol).Uint64())
	assert.True(t, env.token1.BalanceOf(vaultAddr).IsZero())
	assert.Equal(t, uint64(1000), env.token0.BalanceOf(vaultAddr).Uint64())
	assert.False(t, env.v.Account(carol).Locked(block))
	assert.False(t, env.v.Account(alice).Locked(block))
}

func TestPricePerFullShare(t *testing.T) {
	env := newTestEnv(t)

	pps0, pps1, err := env.v.PricePerFullShare()
	require.NoError(t, err)
	assert.True(t, pps0.Eq(constants.E18))
	assert.True(t, pps1.Eq(constants.E18))

	_, err = env.v.Deposit(alice, u(1000), u(2000), nil)
	require.NoError(t, err)
	pps0, pps1, err = env.v.PricePerFullShare()
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", pps0.Dec())
	assert.Equal(t, "1000000000000000000", pps1.Dec())
}

func TestRebalanceRejected(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.v.Deposit(alice, u(1000), u(1000), nil)
	require.NoError(t, err)

	_, err = env.v.Rebalance(alice)
	assert.ErrorIs(t, err, access.ErrUnauthorized)

	env.oracle.tick, env.oracle.twap = 1000, 0
	_, err = env.v.Rebalance(keeper)
	assert.ErrorIs(t, err, rebalance.ErrTwapDeviationExceeded)

	env.oracle.tick, env.oracle.twap = tickmath.MaxTick-100, tickmath.MaxTick-100
	_, err = env.v.Rebalance(keeper)
	assert.ErrorIs(t, err, rebalance.ErrTickTooExtreme)

	state := env.v.State()
	assert.True(t, state.Base.IsZero())
	assert.True(t, state.Limit.IsZero())
	assert.True(t, state.LastRebalance.IsZero())
	assert.Equal(t, PhaseIdle, env.v.Phase())
	assert.Zero(t, env.positions.mints)

	require.NoError(t, env.v.Pause(gov))
	_, err = env.v.Rebalance(keeper)
	assert.ErrorIs(t, err, access.ErrPaused)
}

func TestRebalanceMintFailureKeepsRanges(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.v.Deposit(alice, u(1_000_000), u(1_000_000), nil)
	require.NoError(t, err)
	env.positions.err = errors.New("mint reverted")

	_, err = env.v.Rebalance(keeper)
	assert.Error(t, err)
	assert.Equal(t, 1, env.positions.mints)

	state := env.v.State()
	assert.True(t, state.Base.IsZero())
	assert.True(t, state.Limit.IsZero())
	assert.Equal(t, uint64(1_000_000), state.Idle0.Uint64())
	assert.Equal(t, PhaseIdle, state.Phase)
}

func TestEarn(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.v.Earn(keeper)
	assert.ErrorIs(t, err, ErrNoRouter)

	require.NoError(t, env.v.SetRouter(gov, env.router()))
	_, _, err = env.v.Earn(alice)
	assert.ErrorIs(t, err, access.ErrUnauthorized)

	require.NoError(t, env.v.SetReserveRatio(gov, Ratio{Numerator: 1, Denominator: 2}))
	assert.ErrorIs(t, env.v.SetReserveRatio(gov, Ratio{}), ErrInvalidRatio)
	_, err = env.v.Deposit(alice, u(1000), u(1000), nil)
	require.NoError(t, err)
	amount0, amount1, err := env.v.Earn(keeper)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), amount0.Uint64())
	assert.Equal(t, uint64(500), amount1.Uint64())
	assert.Equal(t, uint64(500), env.token1.BalanceOf(vaultAddr).Uint64())
}

func TestFailingSinkDoesNotFailOperation(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	env := newTestEnv(t, WithEventSink(sink))

	_, err := env.v.Deposit(alice, u(10), u(10), nil)
	require.NoError(t, err)
	assert.Len(t, sink.events, 1)
}
