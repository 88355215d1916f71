package reserve

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rate of 5% in 1e18 fixed point
func fivePercent() *big.Int {
	rate := new(big.Int).Div(FeeScale, big.NewInt(20))
	return rate
}

func state(base, supply int64, rate *big.Int) *State {
	return &State{
		TotalBaseBalance:   big.NewInt(base),
		TotalWrappedSupply: big.NewInt(supply),
		DepositFeeRate:     rate,
	}
}

func TestQuoteBaseToWrapped_Concrete(t *testing.T) {
	// 1000 base backing 900 wrapped, 5% fee, deposit 100:
	// fee = 5, wrapped = floor(95 * 900 / 1000) = 85
	q := QuoteBaseToWrapped(state(1000, 900, fivePercent()), big.NewInt(100))

	assert.Equal(t, int64(5), q.FeeAmount.Int64())
	assert.Equal(t, int64(85), q.OutputAmount.Int64())
}

func TestQuoteBaseToWrapped_Bootstrap(t *testing.T) {
	// Empty pool: first depositor mints 1:1 on the gross amount. The fee is
	// reported but not deducted in this branch.
	q := QuoteBaseToWrapped(state(0, 0, fivePercent()), big.NewInt(50))

	assert.Equal(t, int64(50), q.OutputAmount.Int64())
	assert.Equal(t, int64(2), q.FeeAmount.Int64())
}

func TestQuoteBaseToWrapped_BootstrapIgnoresBaseBalance(t *testing.T) {
	// Zero supply with a nonzero base balance (e.g. donated reserve) still
	// takes the bootstrap branch.
	q := QuoteBaseToWrapped(state(777, 0, fivePercent()), big.NewInt(50))

	assert.Equal(t, int64(50), q.OutputAmount.Int64())
	assert.Equal(t, int64(2), q.FeeAmount.Int64())
}

func TestQuoteBaseToWrapped_ZeroFeeRate(t *testing.T) {
	q := QuoteBaseToWrapped(state(1000, 900, new(big.Int)), big.NewInt(100))

	assert.Zero(t, q.FeeAmount.Sign())
	assert.Equal(t, int64(90), q.OutputAmount.Int64())
}

func TestQuoteBaseToWrapped_ZeroAmount(t *testing.T) {
	// The pure function is total: a zero deposit prices to zero, callers
	// reject it before getting here.
	q := QuoteBaseToWrapped(state(1000, 900, fivePercent()), new(big.Int))

	assert.Zero(t, q.OutputAmount.Sign())
	assert.Zero(t, q.FeeAmount.Sign())
}

func TestQuoteBaseToWrapped_MonotonicInAmount(t *testing.T) {
	s := state(1000, 900, fivePercent())

	prev := new(big.Int).Neg(big.NewInt(1))
	for amount := int64(1); amount <= 5000; amount += 7 {
		q := QuoteBaseToWrapped(s, big.NewInt(amount))
		assert.GreaterOrEqual(t, q.OutputAmount.Cmp(prev), 0,
			"output decreased at amount %d", amount)
		prev = q.OutputAmount
	}
}

func TestQuoteBaseToWrapped_MonotonicInReserve(t *testing.T) {
	amount := big.NewInt(500)

	prev := (*big.Int)(nil)
	for base := int64(100); base <= 10000; base += 97 {
		q := QuoteBaseToWrapped(state(base, 900, fivePercent()), amount)
		if prev != nil {
			assert.LessOrEqual(t, q.OutputAmount.Cmp(prev), 0,
				"output increased as reserve grew to %d", base)
		}
		prev = q.OutputAmount
	}
}

func TestQuoteWrappedToBase_Concrete(t *testing.T) {
	out, err := QuoteWrappedToBase(state(1000, 900, fivePercent()), big.NewInt(90))
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.Int64())
}

func TestQuoteWrappedToBase_ZeroSupply(t *testing.T) {
	out, err := QuoteWrappedToBase(state(1000, 0, fivePercent()), big.NewInt(10))
	require.ErrorIs(t, err, ErrInsufficientReserveSupply)
	assert.Nil(t, out)
}

func TestRoundTrip_FeeNeverRecovered(t *testing.T) {
	// Deposit x into the pool, then redeem the minted amount against the
	// post-deposit pool. The redeemed base must never exceed x.
	for _, rate := range []*big.Int{new(big.Int), fivePercent()} {
		for x := int64(1); x <= 2000; x += 13 {
			base, supply := int64(1000), int64(900)

			q := QuoteBaseToWrapped(state(base, supply, rate), big.NewInt(x))
			// The full deposit lands in the pool; the fee is taken in shares.
			after := state(base+x, supply+q.OutputAmount.Int64(), rate)

			out, err := QuoteWrappedToBase(after, q.OutputAmount)
			require.NoError(t, err)
			assert.LessOrEqual(t, out.Int64(), x,
				"rate=%s x=%d minted=%s redeemed=%s", rate, x, q.OutputAmount, out)
		}
	}
}

func TestRoundTrip_ExactAtZeroFee(t *testing.T) {
	// Proportional amounts survive a zero-fee round trip exactly.
	q := QuoteBaseToWrapped(state(1000, 900, new(big.Int)), big.NewInt(100))
	require.Equal(t, int64(90), q.OutputAmount.Int64())

	out, err := QuoteWrappedToBase(state(1100, 990, new(big.Int)), q.OutputAmount)
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.Int64())
}

func TestQuoteBaseToWrapped_LargeAmounts(t *testing.T) {
	// Values beyond uint64 must not overflow or lose precision.
	big1e30, _ := new(big.Int).SetString("1000000000000000000000000000000", 10)
	big9e29, _ := new(big.Int).SetString("900000000000000000000000000000", 10)
	x, _ := new(big.Int).SetString("100000000000000000000000000000", 10)

	s := &State{
		TotalBaseBalance:   big1e30,
		TotalWrappedSupply: big9e29,
		DepositFeeRate:     fivePercent(),
	}
	q := QuoteBaseToWrapped(s, x)

	wantFee, _ := new(big.Int).SetString("5000000000000000000000000000", 10)
	wantOut, _ := new(big.Int).SetString("85500000000000000000000000000", 10)
	assert.Zero(t, q.FeeAmount.Cmp(wantFee))
	assert.Zero(t, q.OutputAmount.Cmp(wantOut))
}
