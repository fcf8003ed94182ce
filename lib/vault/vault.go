// Package vault pools two assets from many depositors, issues proportional
// shares and keeps the pooled capital deployed as concentrated liquidity in a
// base range and a limit range.
package vault

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ftchann/uniswap-vault/lib/access"
	"github.com/ftchann/uniswap-vault/lib/fullmath"
	"github.com/ftchann/uniswap-vault/lib/rebalance"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// Oracle reads the market the vault provides liquidity to.
type Oracle interface {
	SqrtPriceX96() (*ui.Int, error)
	CurrentTick() (int, error)
	TWAPTick(window time.Duration) (int, error)
	PositionState(tickLower, tickUpper int) (PositionState, error)
	TickSpacing() int
	GlobalTickBounds() (minTick, maxTick int)
}

// PositionManager moves the vault's own liquidity in and out of ranges.
// Collect transfers everything owed on a range back to the vault.
type PositionManager interface {
	Mint(tickLower, tickUpper int, liquidity *ui.Int) (amount0, amount1 *ui.Int, err error)
	Burn(tickLower, tickUpper int, liquidity *ui.Int) (amount0, amount1 *ui.Int, err error)
	Collect(tickLower, tickUpper int) (amount0, amount1 *ui.Int, err error)
}

// CapitalRouter deploys idle assets elsewhere and returns them on request.
type CapitalRouter interface {
	Address() common.Address
	ReportedBalance(asset common.Address) *ui.Int
	// RequestWithdrawal moves up to amount of asset back to the vault and
	// reports how much was delivered.
	RequestWithdrawal(asset common.Address, amount *ui.Int) (*ui.Int, error)
	DepositExcess(asset common.Address, amount *ui.Int) error
}

// Authorizer gates deposits.
type Authorizer interface {
	IsAuthorized(account common.Address, shares *ui.Int, proof [][32]byte) bool
}

// AssetLedger is a fungible token the vault holds.
type AssetLedger interface {
	Address() common.Address
	BalanceOf(account common.Address) *ui.Int
	Transfer(from, to common.Address, amount *ui.Int) error
	TransferFrom(spender, from, to common.Address, amount *ui.Int) error
}

type Chain interface {
	BlockNumber() uint64
	Now() time.Time
}

type PositionState struct {
	Liquidity   *ui.Int
	TokensOwed0 *ui.Int
	TokensOwed1 *ui.Int
}

// Ratio is a fraction in [0, 1].
type Ratio struct {
	Numerator   uint64 `json:"numerator" yaml:"numerator"`
	Denominator uint64 `json:"denominator" yaml:"denominator"`
}

var DefaultReserveRatio = Ratio{Numerator: 9500, Denominator: 10000}

func (r Ratio) Validate() error {
	if r.Denominator == 0 || r.Numerator > r.Denominator {
		return fmt.Errorf("%w: %d/%d", ErrInvalidRatio, r.Numerator, r.Denominator)
	}
	return nil
}

// Apply returns floor(x * r).
func (r Ratio) Apply(x *ui.Int) *ui.Int {
	return fullmath.MulDiv(x, ui.NewInt(r.Numerator), ui.NewInt(r.Denominator))
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.Numerator, r.Denominator)
}

type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseRepositioning
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseRepositioning:
		return "repositioning"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

type Config struct {
	// Address is the account the vault holds its assets under.
	Address      common.Address
	Governance   common.Address
	Token0       AssetLedger
	Token1       AssetLedger
	Oracle       Oracle
	Positions    PositionManager
	Chain        Chain
	Rebalance    rebalance.Config
	ReserveRatio Ratio
}

type Vault struct {
	mu sync.Mutex

	address   common.Address
	token0    AssetLedger
	token1    AssetLedger
	oracle    Oracle
	positions PositionManager
	chain     Chain

	router     CapitalRouter
	authorizer Authorizer
	roles      *access.Roles
	pause      *access.Pause

	cfg          rebalance.Config
	reserveRatio Ratio

	shares *shareLedger

	base          rebalance.Range
	limit         rebalance.Range
	lastRebalance time.Time
	lastTick      int
	phase         atomic.Int32

	sinks []EventSink
	lg    zerolog.Logger
}

type Option func(*Vault)

func WithLogger(lg zerolog.Logger) Option {
	return func(v *Vault) { v.lg = lg }
}

func WithEventSink(sinks ...EventSink) Option {
	return func(v *Vault) { v.sinks = append(v.sinks, sinks...) }
}

func WithRouter(router CapitalRouter) Option {
	return func(v *Vault) { v.router = router }
}

func WithAuthorizer(authorizer Authorizer) Option {
	return func(v *Vault) { v.authorizer = authorizer }
}

// New returns a paused vault. Governance must unpause it before deposits are accepted.
// A zero ReserveRatio selects DefaultReserveRatio.
func New(cfg Config, opts ...Option) (*Vault, error) {
	switch {
	case cfg.Token0 == nil, cfg.Token1 == nil:
		return nil, fmt.Errorf("%w: asset ledger", ErrMissingCollaborator)
	case cfg.Oracle == nil:
		return nil, fmt.Errorf("%w: oracle", ErrMissingCollaborator)
	case cfg.Positions == nil:
		return nil, fmt.Errorf("%w: position manager", ErrMissingCollaborator)
	case cfg.Chain == nil:
		return nil, fmt.Errorf("%w: chain", ErrMissingCollaborator)
	}
	if cfg.Address == (common.Address{}) || cfg.Governance == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	if cfg.Rebalance.TickSpacing != cfg.Oracle.TickSpacing() {
		return nil, fmt.Errorf("%w: tick spacing %d, pool uses %d", rebalance.ErrInvalidConfig, cfg.Rebalance.TickSpacing, cfg.Oracle.TickSpacing())
	}
	_, maxTick := cfg.Oracle.GlobalTickBounds()
	if err := cfg.Rebalance.Validate(maxTick); err != nil {
		return nil, err
	}
	if cfg.ReserveRatio == (Ratio{}) {
		cfg.ReserveRatio = DefaultReserveRatio
	}
	if err := cfg.ReserveRatio.Validate(); err != nil {
		return nil, err
	}

	roles := access.NewRoles(cfg.Governance)
	v := &Vault{
		address:      cfg.Address,
		token0:       cfg.Token0,
		token1:       cfg.Token1,
		oracle:       cfg.Oracle,
		positions:    cfg.Positions,
		chain:        cfg.Chain,
		roles:        roles,
		pause:        access.NewPause(roles),
		cfg:          cfg.Rebalance,
		reserveRatio: cfg.ReserveRatio,
		shares:       newShareLedger(),
		lg:           zerolog.New(os.Stdout).With().Str("Module", "Vault").Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Vault) Address() common.Address { return v.address }

func (v *Vault) Roles() *access.Roles { return v.roles }

func (v *Vault) Phase() Phase { return Phase(v.phase.Load()) }

func (v *Vault) setPhase(p Phase) { v.phase.Store(int32(p)) }

// State is a point in time copy of the vault's bookkeeping.
type State struct {
	TotalSupply   *ui.Int
	Idle0         *ui.Int
	Idle1         *ui.Int
	ReserveRatio  Ratio
	Base          rebalance.Range
	Limit         rebalance.Range
	LastRebalance time.Time
	LastTick      int
	Paused        bool
	Phase         Phase
}

func (v *Vault) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	idle0, idle1 := v.idle()
	return State{
		TotalSupply:   v.shares.totalSupply(),
		Idle0:         idle0,
		Idle1:         idle1,
		ReserveRatio:  v.reserveRatio,
		Base:          v.base,
		Limit:         v.limit,
		LastRebalance: v.lastRebalance,
		LastTick:      v.lastTick,
		Paused:        v.pause.Paused(),
		Phase:         v.Phase(),
	}
}

func (v *Vault) Pause(caller common.Address) error {
	if err := v.pause.Pause(caller); err != nil {
		return err
	}
	v.lg.Info().Str("Caller", caller.Hex()).Msg("Vault paused")
	return nil
}

func (v *Vault) Unpause(caller common.Address) error {
	if err := v.pause.Unpause(caller); err != nil {
		return err
	}
	v.lg.Info().Str("Caller", caller.Hex()).Msg("Vault unpaused")
	return nil
}

func (v *Vault) SetRouter(caller common.Address, router CapitalRouter) error {
	if err := v.roles.Require(caller, access.RoleGovernance); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.router = router
	return nil
}

// SetAuthorizer replaces the deposit gate. A nil authorizer admits every depositor.
func (v *Vault) SetAuthorizer(caller common.Address, authorizer Authorizer) error {
	if err := v.roles.Require(caller, access.RoleGovernance); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.authorizer = authorizer
	return nil
}

func (v *Vault) SetReserveRatio(caller common.Address, ratio Ratio) error {
	if err := v.roles.Require(caller, access.RoleGovernance); err != nil {
		return err
	}
	if err := ratio.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reserveRatio = ratio
	return nil
}
