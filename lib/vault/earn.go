package vault

import (
	"fmt"

	"github.com/ftchann/uniswap-vault/lib/access"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// Earn hands the reserve adjusted idle balances to the router.
func (v *Vault) Earn(caller common.Address) (amount0, amount1 *ui.Int, err error) {
	if err := v.roles.Require(caller, access.RoleKeeper, access.RoleStrategist, access.RoleGovernance); err != nil {
		return nil, nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.pause.RequireNotPaused(); err != nil {
		return nil, nil, err
	}
	if v.router == nil {
		return nil, nil, ErrNoRouter
	}

	amount0, amount1 = v.available()
	if err := v.sendToRouter(v.token0, amount0); err != nil {
		return nil, nil, err
	}
	if err := v.sendToRouter(v.token1, amount1); err != nil {
		// asset0 already sits with the router and is accounted there
		return amount0, ui.NewInt(0), err
	}

	v.lg.Info().Str("Amount0", amount0.Dec()).Str("Amount1", amount1.Dec()).Msg("Earn")
	v.emit(Event{
		Kind:    EventEarn,
		Account: caller,
		Amount0: amount0.Clone(),
		Amount1: amount1.Clone(),
	})
	return amount0, amount1, nil
}

func (v *Vault) sendToRouter(token AssetLedger, amount *ui.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := token.Transfer(v.address, v.router.Address(), amount); err != nil {
		return fmt.Errorf("earn %s: %w", token.Address().Hex(), err)
	}
	if err := v.router.DepositExcess(token.Address(), amount); err != nil {
		return fmt.Errorf("earn %s: %w", token.Address().Hex(), err)
	}
	return nil
}
