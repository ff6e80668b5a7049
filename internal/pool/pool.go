package pool

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/you/solarb/internal/types"
)

// Pool is the tracked on-chain state of one liquidity pool. Reserves are the
// only mutable fields and always change together under mu, so a concurrent
// reader never sees one fresh reserve paired with the other's stale value.
type Pool struct {
	Address   string
	Venue     types.Venue
	TokenA    string
	TokenB    string
	DecimalsA int
	DecimalsB int
	FeeRate   float64

	mu         sync.Mutex
	reserveA   uint64
	reserveB   uint64
	lastUpdate time.Time
}

func New(address string, venue types.Venue, tokenA, tokenB string, decimalsA, decimalsB int, feeRate float64) *Pool {
	return &Pool{
		Address:   address,
		Venue:     venue,
		TokenA:    tokenA,
		TokenB:    tokenB,
		DecimalsA: decimalsA,
		DecimalsB: decimalsB,
		FeeRate:   feeRate,
	}
}

// UpdateReserves replaces both reserves as one atomic unit and refreshes the
// update timestamp. Zero reserves are a valid (uninitialized) state.
func (p *Pool) UpdateReserves(reserveA, reserveB uint64) {
	p.mu.Lock()
	p.reserveA = reserveA
	p.reserveB = reserveB
	p.lastUpdate = time.Now()
	p.mu.Unlock()
}

// Reserves returns a consistent snapshot of both reserves.
func (p *Pool) Reserves() (reserveA, reserveB uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserveA, p.reserveB
}

func (p *Pool) LastUpdate() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUpdate
}

// PriceAB is the price of token A denominated in token B, adjusted for
// decimals. Zero when reserveA is zero.
func (p *Pool) PriceAB() float64 {
	ra, rb := p.Reserves()
	if ra == 0 {
		return 0
	}
	return (float64(rb) / math.Pow10(p.DecimalsB)) / (float64(ra) / math.Pow10(p.DecimalsA))
}

// PriceBA is the reciprocal quote. Zero when reserveB is zero.
func (p *Pool) PriceBA() float64 {
	ra, rb := p.Reserves()
	if rb == 0 {
		return 0
	}
	return (float64(ra) / math.Pow10(p.DecimalsA)) / (float64(rb) / math.Pow10(p.DecimalsB))
}

// LiquidityUSD is a crude liquidity proxy used only for ranking; real USD
// valuation would need an external price source.
func (p *Pool) LiquidityUSD() float64 {
	ra, rb := p.Reserves()
	return float64(ra) + float64(rb)
}

func (p *Pool) Pair() types.PairKey {
	return types.NormalizePair(p.TokenA, p.TokenB)
}

func (p *Pool) String() string {
	return fmt.Sprintf("Pool(%s, %s, price_ab=%.6f)", p.Venue, p.Pair(), p.PriceAB())
}
