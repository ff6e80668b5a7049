// Package detector filters price divergences against the profit threshold,
// estimates net profit after fees, and keeps running statistics.
package detector

import (
	"sort"
	"sync"
	"time"

	"github.com/you/solarb/internal/analyzer"
	"github.com/you/solarb/internal/config"
	"github.com/you/solarb/internal/types"
	"go.uber.org/zap"
)

type Detector struct {
	cfg      *config.Config
	analyzer *analyzer.Analyzer
	log      *zap.Logger

	mu    sync.Mutex
	stats types.Stats
}

func New(cfg *config.Config, a *analyzer.Analyzer, log *zap.Logger) *Detector {
	return &Detector{cfg: cfg, analyzer: a, log: log}
}

// Detect returns every opportunity whose divergence is at or above the
// configured minimum profit threshold, ranked by estimated profit descending.
// Every detected divergence updates the running statistics; "valid" in the
// statistics means the fee-adjusted profit estimate is positive.
func (d *Detector) Detect() []types.Opportunity {
	return d.DetectAbove(d.cfg.Monitoring.MinProfitThreshold)
}

// DetectAbove is Detect with an explicit threshold (%), inclusive.
func (d *Detector) DetectAbove(minThreshold float64) []types.Opportunity {
	diffs := d.analyzer.FindDivergences()
	var out []types.Opportunity

	for _, diff := range diffs {
		if diff.DiffPct < minThreshold {
			continue
		}

		profit := EstimateProfit(diff.BuyPrice, diff.SellPrice, d.cfg.Arbitrage.TradeSize, d.cfg.Arbitrage.FeeRate)
		opp := types.Opportunity{
			Pair:           diff.Pair,
			BuyVenue:       diff.BuyVenue,
			SellVenue:      diff.SellVenue,
			BuyPrice:       diff.BuyPrice,
			SellPrice:      diff.SellPrice,
			BuyPool:        diff.BuyPool,
			SellPool:       diff.SellPool,
			DiffPct:        diff.DiffPct,
			ProfitEstimate: profit,
			Ts:             time.Now(),
		}
		out = append(out, opp)
		d.recordStats(opp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ProfitEstimate > out[j].ProfitEstimate
	})
	return out
}

// Best returns the most profitable opportunity of one scan, if any.
func (d *Detector) Best() (types.Opportunity, bool) {
	opps := d.Detect()
	if len(opps) == 0 {
		return types.Opportunity{}, false
	}
	return opps[0], true
}

// EstimateProfit applies the nominal trade size to the spread and subtracts
// the round-trip fee, floored at zero.
func EstimateProfit(buyPrice, sellPrice, tradeSize, feeRate float64) float64 {
	if buyPrice <= 0 {
		return 0
	}
	gross := tradeSize * (sellPrice - buyPrice) / buyPrice
	fees := tradeSize * feeRate * 2
	profit := gross - fees
	if profit < 0 {
		return 0
	}
	return profit
}

func (d *Detector) recordStats(opp types.Opportunity) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.TotalOpportunities++
	if opp.ProfitEstimate <= 0 {
		return
	}

	d.stats.ValidOpportunities++
	if opp.ProfitEstimate > d.stats.MaxProfit {
		d.stats.MaxProfit = opp.ProfitEstimate
		best := opp
		d.stats.Best = &best
	}
	// incremental mean over valid opportunities
	n := float64(d.stats.ValidOpportunities)
	d.stats.AvgProfit = (d.stats.AvgProfit*(n-1) + opp.ProfitEstimate) / n
}

// Stats returns a snapshot of the running statistics.
func (d *Detector) Stats() types.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := d.stats
	if d.stats.Best != nil {
		best := *d.stats.Best
		out.Best = &best
	}
	return out
}

// ResetStats clears all counters and the retained best opportunity.
func (d *Detector) ResetStats() {
	d.mu.Lock()
	d.stats = types.Stats{}
	d.mu.Unlock()
	d.log.Info("arbitrage statistics reset")
}
