// Package analyzer derives per-venue prices from the pool registry and finds
// cross-venue divergences.
package analyzer

import (
	"sort"
	"sync"

	"github.com/you/solarb/internal/pool"
	"github.com/you/solarb/internal/types"
	"go.uber.org/zap"
)

type Analyzer struct {
	registry *pool.Registry
	log      *zap.Logger

	mu    sync.RWMutex
	cache map[types.PairKey]map[types.Venue]types.Quote
}

func New(registry *pool.Registry, log *zap.Logger) *Analyzer {
	return &Analyzer{
		registry: registry,
		log:      log,
		cache:    make(map[types.PairKey]map[types.Venue]types.Quote),
	}
}

// Refresh rebuilds the full quote cache from the registry's current snapshot.
// The cache is replaced wholesale; a full scan is cheap relative to the
// evaluation interval.
func (a *Analyzer) Refresh() {
	fresh := make(map[types.PairKey]map[types.Venue]types.Quote)
	for _, p := range a.registry.All() {
		q := types.Quote{
			Venue:       p.Venue,
			Pair:        p.Pair(),
			Price:       p.PriceAB(),
			Liquidity:   p.LiquidityUSD(),
			FeeRate:     p.FeeRate,
			Timestamp:   p.LastUpdate(),
			PoolAddress: p.Address,
		}
		byVenue := fresh[q.Pair]
		if byVenue == nil {
			byVenue = make(map[types.Venue]types.Quote)
			fresh[q.Pair] = byVenue
		}
		byVenue[p.Venue] = q
	}

	a.mu.Lock()
	a.cache = fresh
	a.mu.Unlock()
}

// Price returns the cached quote for a pair on one venue.
func (a *Analyzer) Price(tokenA, tokenB string, venue types.Venue) (types.Quote, bool) {
	pair := types.NormalizePair(tokenA, tokenB)
	a.mu.RLock()
	defer a.mu.RUnlock()
	q, ok := a.cache[pair][venue]
	return q, ok
}

// PricesForPair returns every venue's cached quote for a pair.
func (a *Analyzer) PricesForPair(tokenA, tokenB string) map[types.Venue]types.Quote {
	pair := types.NormalizePair(tokenA, tokenB)
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[types.Venue]types.Quote, len(a.cache[pair]))
	for v, q := range a.cache[pair] {
		out[v] = q
	}
	return out
}

// AveragePrice is the unweighted mean across venues quoting the pair.
func (a *Analyzer) AveragePrice(tokenA, tokenB string) (float64, bool) {
	quotes := a.PricesForPair(tokenA, tokenB)
	if len(quotes) == 0 {
		return 0, false
	}
	var sum float64
	for _, q := range quotes {
		sum += q.Price
	}
	return sum / float64(len(quotes)), true
}

// FindDivergences scans every cached pair with at least two quotes and
// reports the gap between the cheapest and dearest venue, sorted by
// percentage descending. Pairs with a zero minimum price or a non-positive
// gap are excluded entirely, not reported as zero.
func (a *Analyzer) FindDivergences() []types.Divergence {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []types.Divergence
	for pair, byVenue := range a.cache {
		if len(byVenue) < 2 {
			continue
		}

		var (
			low, high types.Quote
			first     = true
		)
		for _, q := range byVenue {
			if first {
				low, high = q, q
				first = false
				continue
			}
			if q.Price < low.Price {
				low = q
			}
			if q.Price > high.Price {
				high = q
			}
		}

		if low.Price <= 0 {
			continue
		}
		diffPct := (high.Price - low.Price) / low.Price * 100
		if diffPct <= 0 {
			continue
		}

		out = append(out, types.Divergence{
			Pair:      pair,
			BuyVenue:  low.Venue,
			SellVenue: high.Venue,
			BuyPrice:  low.Price,
			SellPrice: high.Price,
			BuyPool:   low.PoolAddress,
			SellPool:  high.PoolAddress,
			DiffPct:   diffPct,
			NumVenues: len(byVenue),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DiffPct > out[j].DiffPct
	})
	return out
}

// HighestDivergence returns the largest divergence at or above minThreshold.
func (a *Analyzer) HighestDivergence(minThreshold float64) (types.Divergence, bool) {
	for _, d := range a.FindDivergences() {
		if d.DiffPct >= minThreshold {
			return d, true
		}
	}
	return types.Divergence{}, false
}

// ClearCache drops every cached quote.
func (a *Analyzer) ClearCache() {
	a.mu.Lock()
	a.cache = make(map[types.PairKey]map[types.Venue]types.Quote)
	a.mu.Unlock()
	a.log.Info("price cache cleared")
}
