package decode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Orca Whirlpool account layout (fields the monitor reads):
//
//	0    [8]  anchor discriminator
//	41   u16  tick spacing (little-endian)
//	49   u128 liquidity
//	65   u128 sqrt price, Q64.64 fixed point
//	81   i32  current tick index
//	101  [32] token mint A
//	181  [32] token mint B
const (
	whirlpoolTickSpacingOff = 41
	whirlpoolLiquidityOff   = 49
	whirlpoolSqrtPriceOff   = 65
	whirlpoolTickIndexOff   = 81
	whirlpoolMinLen         = 213
)

// twoPow64 is the Q64.64 scaling factor.
const twoPow64 = 18446744073709551616.0

func whirlpoolReserves(data []byte) (Reserves, error) {
	if len(data) < whirlpoolMinLen {
		return Reserves{}, fmt.Errorf("%w: whirlpool needs %d bytes, got %d", ErrTooShort, whirlpoolMinLen, len(data))
	}

	tickSpacing := binary.LittleEndian.Uint16(data[whirlpoolTickSpacingOff:])
	liquidity := u128Float(data[whirlpoolLiquidityOff:])
	sqrtPriceX64 := u128Float(data[whirlpoolSqrtPriceOff:])
	tick := int32(binary.LittleEndian.Uint32(data[whirlpoolTickIndexOff:]))

	if tickSpacing == 0 || liquidity == 0 || sqrtPriceX64 == 0 {
		return Reserves{}, nil
	}

	a, b := activeRangeReserves(sqrtPriceX64/twoPow64, liquidity, tick, int32(tickSpacing))
	return Reserves{ReserveA: a, ReserveB: b}, nil
}

// activeRangeReserves derives the token amounts backing the active tick range
// from the pool's sqrt price and in-range liquidity. With the price clamped to
// the range [sqrtLower, sqrtUpper]:
//
//	amountA = L * (sqrtUpper - sqrtP) / (sqrtP * sqrtUpper)
//	amountB = L * (sqrtP - sqrtLower)
//
// These are the virtual reserves of the active range only, which is what the
// price comparison needs; liquidity parked in inactive ticks is ignored.
func activeRangeReserves(sqrtP, liquidity float64, tick, spacing int32) (uint64, uint64) {
	lowerTick := floorDiv(tick, spacing) * spacing
	upperTick := lowerTick + spacing

	// sqrt(1.0001^t) = 1.0001^(t/2)
	sqrtLower := math.Pow(1.0001, float64(lowerTick)/2)
	sqrtUpper := math.Pow(1.0001, float64(upperTick)/2)

	if sqrtP < sqrtLower {
		sqrtP = sqrtLower
	}
	if sqrtP > sqrtUpper {
		sqrtP = sqrtUpper
	}

	amountA := liquidity * (sqrtUpper - sqrtP) / (sqrtP * sqrtUpper)
	amountB := liquidity * (sqrtP - sqrtLower)

	return clampUint64(amountA), clampUint64(amountB)
}

// u128Float reads a little-endian u128 as float64. Precision loss beyond 53
// bits is acceptable: the result only feeds a floating price comparison.
func u128Float(data []byte) float64 {
	lo := binary.LittleEndian.Uint64(data)
	hi := binary.LittleEndian.Uint64(data[8:])
	return float64(hi)*twoPow64 + float64(lo)
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func clampUint64(v float64) uint64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}
