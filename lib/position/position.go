package position

import (
	cons "github.com/ftchann/uniswap-vault/lib/constants"
	"github.com/ftchann/uniswap-vault/lib/fullmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// Key identifies a position by owner and range.
type Key struct {
	Owner     common.Address
	TickLower int
	TickUpper int
}

type Info struct {
	Liquidity                *ui.Int
	FeeGrowthInside0LastX128 *ui.Int
	FeeGrowthInside1LastX128 *ui.Int
	TokensOwed0              *ui.Int
	TokensOwed1              *ui.Int
}

func NewPosition() *Info {
	return &Info{
		Liquidity:                ui.NewInt(0),
		FeeGrowthInside0LastX128: ui.NewInt(0),
		FeeGrowthInside1LastX128: ui.NewInt(0),
		TokensOwed0:              ui.NewInt(0),
		TokensOwed1:              ui.NewInt(0),
	}
}

func (i *Info) Clone() *Info {
	return &Info{
		Liquidity:                i.Liquidity.Clone(),
		FeeGrowthInside0LastX128: i.FeeGrowthInside0LastX128.Clone(),
		FeeGrowthInside1LastX128: i.FeeGrowthInside1LastX128.Clone(),
		TokensOwed0:              i.TokensOwed0.Clone(),
		TokensOwed1:              i.TokensOwed1.Clone(),
	}
}

// Accrued returns the fees earned since the last update at the given growth inside.
func (i *Info) Accrued(feeGrowthInside0X128, feeGrowthInside1X128 *ui.Int) (*ui.Int, *ui.Int) {
	delta0 := new(ui.Int).Sub(feeGrowthInside0X128, i.FeeGrowthInside0LastX128)
	delta1 := new(ui.Int).Sub(feeGrowthInside1X128, i.FeeGrowthInside1LastX128)
	return fullmath.MulDiv(delta0, i.Liquidity, cons.Q128), fullmath.MulDiv(delta1, i.Liquidity, cons.Q128)
}

// Update credits accrued fees and applies the signed liquidityDelta.
func (i *Info) Update(liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128 *ui.Int) {
	owed0, owed1 := i.Accrued(feeGrowthInside0X128, feeGrowthInside1X128)
	i.Liquidity = new(ui.Int).Add(i.Liquidity, liquidityDelta)
	i.FeeGrowthInside0LastX128 = feeGrowthInside0X128.Clone()
	i.FeeGrowthInside1LastX128 = feeGrowthInside1X128.Clone()
	i.TokensOwed0.Add(i.TokensOwed0, owed0)
	i.TokensOwed1.Add(i.TokensOwed1, owed1)
}
