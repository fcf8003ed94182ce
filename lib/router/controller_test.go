package router

import (
	"testing"

	"github.com/ftchann/uniswap-vault/lib/ledger"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	routerAddr = common.HexToAddress("0xa4")
	vaultAddr  = common.HexToAddress("0xa1")
)

func setup(t *testing.T) (*Controller, *ledger.Token) {
	t.Helper()
	token := ledger.NewToken(common.HexToAddress("0x10"), "USDC", 6)
	require.NoError(t, token.Mint(routerAddr, ui.NewInt(500)))
	return NewController(routerAddr, vaultAddr, token), token
}

func TestRequestWithdrawal(t *testing.T) {
	c, token := setup(t)
	assert.Equal(t, uint64(500), c.ReportedBalance(token.Address()).Uint64())

	delivered, err := c.RequestWithdrawal(token.Address(), ui.NewInt(200))
	require.NoError(t, err)
	assert.Equal(t, uint64(200), delivered.Uint64())
	assert.Equal(t, uint64(200), token.BalanceOf(vaultAddr).Uint64())

	// only what is held is delivered
	delivered, err = c.RequestWithdrawal(token.Address(), ui.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(300), delivered.Uint64())
	assert.True(t, c.ReportedBalance(token.Address()).IsZero())

	delivered, err = c.RequestWithdrawal(token.Address(), ui.NewInt(1))
	require.NoError(t, err)
	assert.True(t, delivered.IsZero())
}

func TestRequestWithdrawalErrors(t *testing.T) {
	c, token := setup(t)

	_, err := c.RequestWithdrawal(common.HexToAddress("0x99"), ui.NewInt(1))
	assert.ErrorIs(t, err, ErrUnknownAsset)
	assert.True(t, c.ReportedBalance(common.HexToAddress("0x99")).IsZero())

	c.SetFrozen(true)
	_, err = c.RequestWithdrawal(token.Address(), ui.NewInt(1))
	assert.ErrorIs(t, err, ErrFrozen)
	c.SetFrozen(false)
	_, err = c.RequestWithdrawal(token.Address(), ui.NewInt(1))
	assert.NoError(t, err)
}

func TestRecordLoss(t *testing.T) {
	c, token := setup(t)
	require.NoError(t, c.DepositExcess(token.Address(), ui.NewInt(500)))
	require.NoError(t, c.RecordLoss(token.Address(), ui.NewInt(100)))
	assert.Equal(t, uint64(400), c.ReportedBalance(token.Address()).Uint64())

	assert.ErrorIs(t, c.RecordLoss(token.Address(), ui.NewInt(1000)), ledger.ErrInsufficientBalance)
	assert.ErrorIs(t, c.DepositExcess(common.HexToAddress("0x99"), ui.NewInt(1)), ErrUnknownAsset)
}
