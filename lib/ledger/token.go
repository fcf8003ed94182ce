package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("ledger: insufficient balance")
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
	ErrZeroAddress           = errors.New("ledger: zero address")
)

// Token is an in-memory fungible asset ledger. Every call either applies fully or not at all.
type Token struct {
	mu         sync.Mutex
	address    common.Address
	symbol     string
	decimals   int32
	supply     *ui.Int
	balances   map[common.Address]*ui.Int
	allowances map[common.Address]map[common.Address]*ui.Int
}

func NewToken(address common.Address, symbol string, decimals int32) *Token {
	return &Token{
		address:    address,
		symbol:     symbol,
		decimals:   decimals,
		supply:     ui.NewInt(0),
		balances:   make(map[common.Address]*ui.Int),
		allowances: make(map[common.Address]map[common.Address]*ui.Int),
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() int32         { return t.decimals }

func (t *Token) TotalSupply() *ui.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.supply.Clone()
}

func (t *Token) BalanceOf(account common.Address) *ui.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balanceOf(account).Clone()
}

func (t *Token) balanceOf(account common.Address) *ui.Int {
	balance, ok := t.balances[account]
	if !ok {
		balance = ui.NewInt(0)
		t.balances[account] = balance
	}
	return balance
}

func (t *Token) Allowance(owner, spender common.Address) *ui.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if allowed, ok := t.allowances[owner][spender]; ok {
		return allowed.Clone()
	}
	return ui.NewInt(0)
}

func (t *Token) Approve(owner, spender common.Address, amount *ui.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*ui.Int)
	}
	t.allowances[owner][spender] = amount.Clone()
}

// Mint creates amount out of thin air for to.
func (t *Token) Mint(to common.Address, amount *ui.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	balance := t.balanceOf(to)
	balance.Add(balance, amount)
	t.supply.Add(t.supply, amount)
	return nil
}

// Burn destroys amount held by from.
func (t *Token) Burn(from common.Address, amount *ui.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	balance := t.balanceOf(from)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, t.symbol, balance.Dec(), amount.Dec())
	}
	balance.Sub(balance, amount)
	t.supply.Sub(t.supply, amount)
	return nil
}

func (t *Token) Transfer(from, to common.Address, amount *ui.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transfer(from, to, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, consuming allowance.
// An owner moving its own funds needs no allowance.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *ui.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var allowed *ui.Int
	if spender != from {
		allowed = t.allowances[from][spender]
		if allowed == nil || allowed.Lt(amount) {
			return fmt.Errorf("%w: %s from %s", ErrInsufficientAllowance, t.symbol, from.Hex())
		}
	}
	if err := t.transfer(from, to, amount); err != nil {
		return err
	}
	if allowed != nil {
		allowed.Sub(allowed, amount)
	}
	return nil
}

func (t *Token) transfer(from, to common.Address, amount *ui.Int) error {
	fromBalance := t.balanceOf(from)
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, t.symbol, fromBalance.Dec(), amount.Dec())
	}
	fromBalance.Sub(fromBalance, amount)
	toBalance := t.balanceOf(to)
	toBalance.Add(toBalance, amount)
	return nil
}
