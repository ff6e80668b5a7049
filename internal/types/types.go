package types

import (
	"fmt"
	"time"
)

// Venue identifies a DEX whose pool accounts share one binary layout.
type Venue string

const (
	VenueRaydium Venue = "raydium"
	VenueOrca    Venue = "orca"
)

// PairKey is a token pair in canonical order, so pools quoting the same
// pair in opposite token order land in the same bucket.
type PairKey struct {
	TokenX string // lexicographically smaller mint
	TokenY string
}

func NormalizePair(tokenA, tokenB string) PairKey {
	if tokenB < tokenA {
		tokenA, tokenB = tokenB, tokenA
	}
	return PairKey{TokenX: tokenA, TokenY: tokenB}
}

func (k PairKey) String() string {
	return shortAddr(k.TokenX) + "/" + shortAddr(k.TokenY)
}

// Quote is one venue's price for a pair, rebuilt from the registry each
// analysis cycle. Never mutated after creation.
type Quote struct {
	Venue       Venue
	Pair        PairKey
	Price       float64
	Liquidity   float64
	FeeRate     float64
	Timestamp   time.Time
	PoolAddress string
}

// Divergence is the price gap between the cheapest and the dearest venue
// quoting one pair.
type Divergence struct {
	Pair      PairKey
	BuyVenue  Venue
	SellVenue Venue
	BuyPrice  float64
	SellPrice float64
	BuyPool   string
	SellPool  string
	DiffPct   float64
	NumVenues int
}

// Opportunity is a divergence paired with an estimated net profit after fees.
type Opportunity struct {
	Pair           PairKey
	BuyVenue       Venue
	SellVenue      Venue
	BuyPrice       float64
	SellPrice      float64
	BuyPool        string
	SellPool       string
	DiffPct        float64
	ProfitEstimate float64
	Liquidity      float64
	Ts             time.Time
}

func (o Opportunity) String() string {
	return fmt.Sprintf("Opportunity(%s, %s->%s, diff=%.2f%%, profit=$%.2f)",
		o.Pair, o.BuyVenue, o.SellVenue, o.DiffPct, o.ProfitEstimate)
}

// Stats is a process-lifetime aggregate over detected opportunities.
type Stats struct {
	TotalOpportunities int
	ValidOpportunities int
	AvgProfit          float64
	MaxProfit          float64
	Best               *Opportunity
}

func shortAddr(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8] + "..."
}
