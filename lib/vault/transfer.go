package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// Transfer moves shares between holders. A sender locked by a deposit or
// withdrawal in the current block is rejected; the transfer itself does not lock.
func (v *Vault) Transfer(from, to common.Address, shares *ui.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	block := v.chain.BlockNumber()
	if err := v.shares.checkUnlocked(from, block); err != nil {
		return err
	}
	if balance := v.shares.balanceOf(from); balance.Lt(shares) {
		return fmt.Errorf("%w: %s has %s, sends %s", ErrInsufficientShares, from.Hex(), balance.Dec(), shares.Dec())
	}

	v.shares.move(from, to, shares)

	v.lg.Debug().Str("From", from.Hex()).Str("To", to.Hex()).Str("Shares", shares.Dec()).Msg("Transfer")
	v.emit(Event{
		Kind:      EventTransfer,
		Account:   from,
		Recipient: to,
		Shares:    shares.Clone(),
	})
	return nil
}
