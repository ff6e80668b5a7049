package decode

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/solarb/internal/types"
)

func raydiumAccount(reserveA, reserveB uint64) []byte {
	data := make([]byte, raydiumMinLen)
	binary.LittleEndian.PutUint64(data[raydiumBaseReserveOff:], reserveA)
	binary.LittleEndian.PutUint64(data[raydiumQuoteReserveOff:], reserveB)
	return data
}

func whirlpoolAccount(tickSpacing uint16, liquidity uint64, sqrtPrice float64, tick int32) []byte {
	data := make([]byte, whirlpoolMinLen)
	binary.LittleEndian.PutUint16(data[whirlpoolTickSpacingOff:], tickSpacing)
	binary.LittleEndian.PutUint64(data[whirlpoolLiquidityOff:], liquidity)

	// split sqrtPrice into Q64.64 limbs: integer part high, fraction low
	hi := math.Floor(sqrtPrice)
	lo := (sqrtPrice - hi) * twoPow64
	binary.LittleEndian.PutUint64(data[whirlpoolSqrtPriceOff:], uint64(lo))
	binary.LittleEndian.PutUint64(data[whirlpoolSqrtPriceOff+8:], uint64(hi))

	binary.LittleEndian.PutUint32(data[whirlpoolTickIndexOff:], uint32(tick))
	return data
}

func TestRaydiumReserves(t *testing.T) {
	res, err := AccountReserves(types.VenueRaydium, raydiumAccount(1_500_000_000, 30_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), res.ReserveA)
	assert.Equal(t, uint64(30_000_000), res.ReserveB)
}

func TestRaydiumReserves_TooShort(t *testing.T) {
	_, err := AccountReserves(types.VenueRaydium, make([]byte, raydiumMinLen-1))
	assert.ErrorIs(t, err, ErrTooShort)

	_, err = AccountReserves(types.VenueRaydium, nil)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestWhirlpoolReserves_TooShort(t *testing.T) {
	_, err := AccountReserves(types.VenueOrca, make([]byte, whirlpoolMinLen-1))
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestWhirlpoolReserves_AtLowerBound(t *testing.T) {
	// sqrtPrice = 1.0 in Q64.64, tick 0, spacing 64: the price sits exactly on
	// the lower bound, so all in-range value is token A.
	const liquidity = 1_000_000_000_000
	data := whirlpoolAccount(64, liquidity, 1.0, 0)

	res, err := AccountReserves(types.VenueOrca, data)
	require.NoError(t, err)

	sqrtUpper := math.Pow(1.0001, 32) // 1.0001^(64/2)
	wantA := liquidity * (sqrtUpper - 1) / sqrtUpper
	assert.InEpsilon(t, wantA, float64(res.ReserveA), 1e-6)
	assert.Zero(t, res.ReserveB)
}

func TestWhirlpoolReserves_MidRange(t *testing.T) {
	// tick 32 with spacing 64 puts the price inside [0, 64); both sides hold value.
	sqrtP := math.Pow(1.0001, 16) // sqrt(1.0001^32)
	const liquidity = 1_000_000_000_000
	data := whirlpoolAccount(64, liquidity, sqrtP, 32)

	res, err := AccountReserves(types.VenueOrca, data)
	require.NoError(t, err)
	assert.NotZero(t, res.ReserveA)
	assert.NotZero(t, res.ReserveB)
}

func TestWhirlpoolReserves_NegativeTick(t *testing.T) {
	// Negative ticks must floor toward the lower bound, not truncate toward zero.
	sqrtP := math.Pow(1.0001, -50.0)
	data := whirlpoolAccount(64, 1_000_000_000_000, sqrtP, -100)

	res, err := AccountReserves(types.VenueOrca, data)
	require.NoError(t, err)
	// price in (-128, -64): both amounts positive
	assert.NotZero(t, res.ReserveA)
	assert.NotZero(t, res.ReserveB)
}

func TestWhirlpoolReserves_ZeroLiquidity(t *testing.T) {
	data := whirlpoolAccount(64, 0, 1.0, 0)
	res, err := AccountReserves(types.VenueOrca, data)
	require.NoError(t, err)
	assert.Zero(t, res.ReserveA)
	assert.Zero(t, res.ReserveB)
}

func TestUnknownVenue(t *testing.T) {
	_, err := AccountReserves(types.Venue("serum"), make([]byte, 1024))
	assert.ErrorIs(t, err, ErrUnknownVenue)
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, int32(0), floorDiv(32, 64))
	assert.Equal(t, int32(1), floorDiv(64, 64))
	assert.Equal(t, int32(-1), floorDiv(-1, 64))
	assert.Equal(t, int32(-2), floorDiv(-100, 64))
	assert.Equal(t, int32(-2), floorDiv(-128, 64))
}
