package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Locked reports whether owner already acted in block or later.
func (a ShareAccount) Locked(block uint64) bool {
	return a.acted && a.LastActionBlock >= block
}

func (l *shareLedger) checkUnlocked(owner common.Address, block uint64) error {
	acct, ok := l.accounts[owner]
	if ok && acct.Locked(block) {
		return fmt.Errorf("%w: %s acted in block %d", ErrAccountBlockLocked, owner.Hex(), acct.LastActionBlock)
	}
	return nil
}

// lock stamps owner with block and returns a func restoring the previous stamp.
func (l *shareLedger) lock(owner common.Address, block uint64) (undo func()) {
	acct := l.account(owner)
	prevBlock, prevActed := acct.LastActionBlock, acct.acted
	acct.LastActionBlock, acct.acted = block, true
	return func() {
		acct.LastActionBlock, acct.acted = prevBlock, prevActed
	}
}
