package decode

import (
	"encoding/binary"
	"fmt"
)

// Raydium AMM pool account layout (fields the monitor reads):
//
//	0   u64  discriminator
//	8   [32] base mint
//	40  [32] quote mint
//	72  u64  base reserve  (little-endian)
//	80  u64  quote reserve (little-endian)
const (
	raydiumBaseReserveOff  = 72
	raydiumQuoteReserveOff = 80
	raydiumMinLen          = 88
)

func raydiumReserves(data []byte) (Reserves, error) {
	if len(data) < raydiumMinLen {
		return Reserves{}, fmt.Errorf("%w: raydium needs %d bytes, got %d", ErrTooShort, raydiumMinLen, len(data))
	}
	return Reserves{
		ReserveA: binary.LittleEndian.Uint64(data[raydiumBaseReserveOff:]),
		ReserveB: binary.LittleEndian.Uint64(data[raydiumQuoteReserveOff:]),
	}, nil
}
