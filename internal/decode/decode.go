// Package decode turns raw DEX account bytes into reserve quantities.
// Decoders are pure and stateless; malformed buffers come back as errors,
// never as panics, and the caller's registry is left untouched.
package decode

import (
	"errors"
	"fmt"

	"github.com/you/solarb/internal/types"
)

var (
	ErrTooShort     = errors.New("account data shorter than venue layout")
	ErrUnknownVenue = errors.New("no decoder for venue")
)

// Reserves is a decoded (reserveA, reserveB) pair.
type Reserves struct {
	ReserveA uint64
	ReserveB uint64
}

// AccountReserves dispatches on the venue tag and decodes data into reserve
// quantities. Buffer length is validated before any offset is read.
func AccountReserves(venue types.Venue, data []byte) (Reserves, error) {
	switch venue {
	case types.VenueRaydium:
		return raydiumReserves(data)
	case types.VenueOrca:
		return whirlpoolReserves(data)
	default:
		return Reserves{}, fmt.Errorf("%w: %s", ErrUnknownVenue, venue)
	}
}
