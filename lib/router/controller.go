// Package router holds capital a vault has handed off for deployment elsewhere.
package router

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ftchann/uniswap-vault/lib/fullmath"
	"github.com/ftchann/uniswap-vault/lib/ledger"
	"github.com/ftchann/uniswap-vault/lib/vault"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownAsset = errors.New("router: unknown asset")
	ErrFrozen       = errors.New("router: withdrawals frozen")
)

// Controller is an in-memory router. It keeps deposited assets under its own
// address and reports exactly what it holds.
type Controller struct {
	mu      sync.Mutex
	address common.Address
	vault   common.Address
	tokens  map[common.Address]*ledger.Token
	frozen  bool
	lg      zerolog.Logger
}

var _ vault.CapitalRouter = (*Controller)(nil)

func NewController(address, vaultAddress common.Address, tokens ...*ledger.Token) *Controller {
	c := &Controller{
		address: address,
		vault:   vaultAddress,
		tokens:  make(map[common.Address]*ledger.Token, len(tokens)),
		lg:      zerolog.New(os.Stdout).With().Str("Module", "Router").Timestamp().Logger(),
	}
	for _, t := range tokens {
		c.tokens[t.Address()] = t
	}
	return c
}

func (c *Controller) Address() common.Address { return c.address }

func (c *Controller) ReportedBalance(asset common.Address) *ui.Int {
	token, ok := c.tokens[asset]
	if !ok {
		return ui.NewInt(0)
	}
	return token.BalanceOf(c.address)
}

// RequestWithdrawal sends up to amount of asset back to the vault.
func (c *Controller) RequestWithdrawal(asset common.Address, amount *ui.Int) (*ui.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return nil, ErrFrozen
	}
	token, ok := c.tokens[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset.Hex())
	}
	delivered := fullmath.Min(amount, token.BalanceOf(c.address))
	if delivered.IsZero() {
		return delivered, nil
	}
	if err := token.Transfer(c.address, c.vault, delivered); err != nil {
		return nil, err
	}
	c.lg.Debug().Str("Asset", token.Symbol()).Str("Requested", amount.Dec()).Str("Delivered", delivered.Dec()).Msg("Withdrawal")
	return delivered, nil
}

// DepositExcess acknowledges assets the vault already transferred to the controller.
func (c *Controller) DepositExcess(asset common.Address, amount *ui.Int) error {
	token, ok := c.tokens[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset.Hex())
	}
	c.lg.Debug().Str("Asset", token.Symbol()).Str("Amount", amount.Dec()).Msg("Deposit")
	return nil
}

// RecordLoss destroys amount of the assets held, as a failed downstream strategy would.
func (c *Controller) RecordLoss(asset common.Address, amount *ui.Int) error {
	token, ok := c.tokens[asset]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAsset, asset.Hex())
	}
	if err := token.Burn(c.address, amount); err != nil {
		return err
	}
	c.lg.Warn().Str("Asset", token.Symbol()).Str("Amount", amount.Dec()).Msg("Loss recorded")
	return nil
}

// SetFrozen makes every withdrawal request fail while frozen is set.
func (c *Controller) SetFrozen(frozen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = frozen
}
