package pool

import (
	"sync"

	"github.com/you/solarb/internal/types"
	"go.uber.org/zap"
)

// Registry owns the authoritative set of tracked pools, indexed by address
// and by normalized token pair. The websocket receive loop mutates it while
// the analyzer reads it, so all index access goes through mu.
type Registry struct {
	log *zap.Logger

	mu        sync.RWMutex
	pools     map[string]*Pool
	pairPools map[types.PairKey]map[types.Venue]*Pool
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		log:       log,
		pools:     make(map[string]*Pool),
		pairPools: make(map[types.PairKey]map[types.Venue]*Pool),
	}
}

// AddPool inserts a pool by address and indexes it under its normalized pair.
// An existing entry at the same address is overwritten; last write wins.
func (r *Registry) AddPool(p *Pool) {
	r.mu.Lock()
	r.pools[p.Address] = p

	pair := p.Pair()
	byVenue := r.pairPools[pair]
	if byVenue == nil {
		byVenue = make(map[types.Venue]*Pool)
		r.pairPools[pair] = byVenue
	}
	byVenue[p.Venue] = p
	r.mu.Unlock()

	r.log.Info("added pool",
		zap.String("address", p.Address),
		zap.String("venue", string(p.Venue)),
		zap.String("pair", pair.String()),
	)
}

// GetPool returns the pool at address, or nil.
func (r *Registry) GetPool(address string) *Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pools[address]
}

// UpdateReserves is the single mutation path for reserves. Unknown addresses
// are a logged no-op.
func (r *Registry) UpdateReserves(address string, reserveA, reserveB uint64) {
	p := r.GetPool(address)
	if p == nil {
		r.log.Warn("reserve update for untracked pool", zap.String("address", address))
		return
	}
	oldPrice := p.PriceAB()
	p.UpdateReserves(reserveA, reserveB)
	r.log.Debug("updated pool reserves",
		zap.String("venue", string(p.Venue)),
		zap.String("address", address),
		zap.Float64("old_price", oldPrice),
		zap.Float64("new_price", p.PriceAB()),
	)
}

// PoolsForPair returns the venue->pool mapping for a normalized pair.
func (r *Registry) PoolsForPair(tokenA, tokenB string) map[types.Venue]*Pool {
	pair := types.NormalizePair(tokenA, tokenB)
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[types.Venue]*Pool, len(r.pairPools[pair]))
	for v, p := range r.pairPools[pair] {
		out[v] = p
	}
	return out
}

// All returns every tracked pool.
func (r *Registry) All() []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	return out
}

// PoolsByVenue returns the pools tracked for one venue.
func (r *Registry) PoolsByVenue(venue types.Venue) []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Pool
	for _, p := range r.pools {
		if p.Venue == venue {
			out = append(out, p)
		}
	}
	return out
}

// PairsWithMultipleVenues lists pairs quoted by at least two venues, the
// precondition for any divergence computation.
func (r *Registry) PairsWithMultipleVenues() []types.PairKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.PairKey
	for pair, byVenue := range r.pairPools {
		if len(byVenue) > 1 {
			out = append(out, pair)
		}
	}
	return out
}

// Clear drops every tracked pool and index.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.pools = make(map[string]*Pool)
	r.pairPools = make(map[types.PairKey]map[types.Venue]*Pool)
	r.mu.Unlock()
	r.log.Info("cleared all pools")
}
