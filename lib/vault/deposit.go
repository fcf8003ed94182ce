package vault

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

type DepositResult struct {
	Shares  *ui.Int
	Amount0 *ui.Int
	Amount1 *ui.Int
}

// Deposit mints shares to caller. See DepositFor.
func (v *Vault) Deposit(caller common.Address, amount0Desired, amount1Desired *ui.Int, proof [][32]byte) (*DepositResult, error) {
	return v.DepositFor(caller, caller, amount0Desired, amount1Desired, proof)
}

// DepositFor pulls at most the desired amounts from caller and mints the
// resulting shares to recipient. The vault must be allowed to spend caller's
// assets. Shares are minted before the assets are pulled and both are undone
// if a pull fails.
func (v *Vault) DepositFor(caller, recipient common.Address, amount0Desired, amount1Desired *ui.Int, proof [][32]byte) (*DepositResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.pause.RequireNotPaused(); err != nil {
		return nil, err
	}
	if recipient == (common.Address{}) {
		return nil, ErrZeroAddress
	}

	total0, total1, err := v.totalAmounts()
	if err != nil {
		return nil, err
	}
	shares, amount0, amount1, err := CalcSharesAndAmounts(amount0Desired, amount1Desired, total0, total1, v.shares.totalSupply())
	if err != nil {
		return nil, err
	}
	if v.authorizer != nil && !v.authorizer.IsAuthorized(recipient, shares, proof) {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorized, recipient.Hex())
	}

	v.shares.mint(recipient, shares)
	undoLock := v.shares.lock(recipient, v.chain.BlockNumber())
	if err := v.pull(caller, amount0, amount1); err != nil {
		undoLock()
		v.shares.burn(recipient, shares)
		return nil, err
	}

	v.lg.Info().
		Str("Caller", caller.Hex()).
		Str("Recipient", recipient.Hex()).
		Str("Shares", shares.Dec()).
		Str("Amount0", amount0.Dec()).
		Str("Amount1", amount1.Dec()).
		Msg("Deposit")
	v.emit(Event{
		Kind:      EventDeposit,
		Account:   caller,
		Recipient: recipient,
		Shares:    shares.Clone(),
		Amount0:   amount0.Clone(),
		Amount1:   amount1.Clone(),
	})
	return &DepositResult{Shares: shares, Amount0: amount0, Amount1: amount1}, nil
}

// pull takes both amounts from caller, refunding the first if the second fails.
func (v *Vault) pull(caller common.Address, amount0, amount1 *ui.Int) error {
	if !amount0.IsZero() {
		if err := v.token0.TransferFrom(v.address, caller, v.address, amount0); err != nil {
			return fmt.Errorf("pull asset0: %w", err)
		}
	}
	if !amount1.IsZero() {
		if err := v.token1.TransferFrom(v.address, caller, v.address, amount1); err != nil {
			if !amount0.IsZero() {
				if refundErr := v.token0.Transfer(v.address, caller, amount0); refundErr != nil {
					v.lg.Error().Err(refundErr).Str("Caller", caller.Hex()).Str("Amount0", amount0.Dec()).Msg("Refund failed")
				}
			}
			return fmt.Errorf("pull asset1: %w", err)
		}
	}
	return nil
}
