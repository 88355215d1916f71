package reserve

import (
	"math/big"
)

// FeeScale is the implicit denominator of the deposit fee rate: a rate of
// 0.05e18 means 5%.
var FeeScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// QuoteBaseToWrapped prices a deposit against the current pool snapshot.
// The fee is floor(baseAmount * feeRate / 1e18); the wrapped amount is the
// depositor's pro-rata share of the pool for their net contribution:
// floor((baseAmount - fee) * totalWrappedSupply / totalBaseBalance).
//
// When the pool has no outstanding wrapped supply the first depositor mints
// 1:1 against the gross amount. The fee is still computed and reported in
// that branch but is not deducted from the output; callers relying on the
// bootstrap path must account for that.
func QuoteBaseToWrapped(state *State, baseAmount *big.Int) *Quote {
	fee := new(big.Int).Mul(baseAmount, state.DepositFeeRate)
	fee.Div(fee, FeeScale)

	if state.TotalWrappedSupply.Sign() == 0 {
		return &Quote{
			OutputAmount: new(big.Int).Set(baseAmount),
			FeeAmount:    fee,
		}
	}

	// baseAmount >= fee always holds: fee is a floor of a <=1 fraction of it.
	net := new(big.Int).Sub(baseAmount, fee)
	out := net.Mul(net, state.TotalWrappedSupply)
	out.Div(out, state.TotalBaseBalance)

	return &Quote{OutputAmount: out, FeeAmount: fee}
}

// QuoteWrappedToBase prices a redemption: the redeemer's pro-rata share of
// the reserve, floor(wrappedAmount * totalBaseBalance / totalWrappedSupply).
// No fee is charged on redemption. Fails with ErrInsufficientReserveSupply
// when there is no outstanding supply to redeem against.
func QuoteWrappedToBase(state *State, wrappedAmount *big.Int) (*big.Int, error) {
	if state.TotalWrappedSupply.Sign() == 0 {
		return nil, ErrInsufficientReserveSupply
	}

	out := new(big.Int).Mul(wrappedAmount, state.TotalBaseBalance)
	out.Div(out, state.TotalWrappedSupply)
	return out, nil
}
