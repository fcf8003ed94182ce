package vault

import (
	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// ShareAccount is one holder's claim on the vault. LastActionBlock is only
// meaningful once the account has deposited, withdrawn or transferred.
type ShareAccount struct {
	Owner           common.Address
	Shares          *ui.Int
	LastActionBlock uint64
	acted           bool
}

type shareLedger struct {
	supply   *ui.Int
	accounts map[common.Address]*ShareAccount
}

func newShareLedger() *shareLedger {
	return &shareLedger{
		supply:   ui.NewInt(0),
		accounts: make(map[common.Address]*ShareAccount),
	}
}

func (l *shareLedger) account(owner common.Address) *ShareAccount {
	acct, ok := l.accounts[owner]
	if !ok {
		acct = &ShareAccount{Owner: owner, Shares: ui.NewInt(0)}
		l.accounts[owner] = acct
	}
	return acct
}

func (l *shareLedger) totalSupply() *ui.Int {
	return l.supply.Clone()
}

func (l *shareLedger) balanceOf(owner common.Address) *ui.Int {
	if acct, ok := l.accounts[owner]; ok {
		return acct.Shares.Clone()
	}
	return ui.NewInt(0)
}

func (l *shareLedger) mint(owner common.Address, shares *ui.Int) {
	acct := l.account(owner)
	acct.Shares.Add(acct.Shares, shares)
	l.supply.Add(l.supply, shares)
}

// burn assumes the caller checked the balance.
func (l *shareLedger) burn(owner common.Address, shares *ui.Int) {
	acct := l.account(owner)
	acct.Shares.Sub(acct.Shares, shares)
	l.supply.Sub(l.supply, shares)
}

func (l *shareLedger) move(from, to common.Address, shares *ui.Int) {
	src, dst := l.account(from), l.account(to)
	src.Shares.Sub(src.Shares, shares)
	dst.Shares.Add(dst.Shares, shares)
}

func (v *Vault) BalanceOf(owner common.Address) *ui.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shares.balanceOf(owner)
}

func (v *Vault) TotalSupply() *ui.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shares.totalSupply()
}

// Account returns a copy of owner's share account.
func (v *Vault) Account(owner common.Address) ShareAccount {
	v.mu.Lock()
	defer v.mu.Unlock()
	acct, ok := v.shares.accounts[owner]
	if !ok {
		return ShareAccount{Owner: owner, Shares: ui.NewInt(0)}
	}
	cp := *acct
	cp.Shares = acct.Shares.Clone()
	return cp
}
