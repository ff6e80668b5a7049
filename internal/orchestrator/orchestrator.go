// Package orchestrator wires the pipeline together: seed the registry,
// subscribe every tracked pool, dispatch inbound notifications to the decoder
// and registry, and run the periodic analysis loop.
package orchestrator

import (
	"context"
	"time"

	"github.com/you/solarb/internal/analyzer"
	"github.com/you/solarb/internal/config"
	"github.com/you/solarb/internal/connectors/redisfeed"
	"github.com/you/solarb/internal/decode"
	"github.com/you/solarb/internal/detector"
	"github.com/you/solarb/internal/metrics"
	"github.com/you/solarb/internal/pool"
	"github.com/you/solarb/internal/solana"
	"github.com/you/solarb/internal/types"
	"github.com/you/solarb/internal/wsclient"
	"go.uber.org/zap"
)

// OpportunitySink receives ranked opportunities and statistics snapshots for
// consumers outside the core.
type OpportunitySink interface {
	PublishOpportunities(ctx context.Context, opps []types.Opportunity) error
	PublishStats(ctx context.Context, stats types.Stats) error
}

type Orchestrator struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *pool.Registry
	ws       *wsclient.Client
	analyzer *analyzer.Analyzer
	detector *detector.Detector
	sink     OpportunitySink
}

func New(cfg *config.Config, log *zap.Logger) (*Orchestrator, error) {
	registry := pool.NewRegistry(log)
	ws, err := wsclient.NewClient(cfg, log)
	if err != nil {
		return nil, err
	}
	a := analyzer.New(registry, log)

	var sink OpportunitySink
	if cfg.Redis.Addr != "" {
		sink = redisfeed.NewPublisher(cfg)
	}

	return &Orchestrator{
		cfg:      cfg,
		log:      log,
		registry: registry,
		ws:       ws,
		analyzer: a,
		detector: detector.New(cfg, a, log),
		sink:     sink,
	}, nil
}

// Registry exposes the pool registry, mainly for seeding and inspection.
func (o *Orchestrator) Registry() *pool.Registry { return o.registry }

// SeedPools loads the configured pool set into the registry. Entries with an
// invalid pubkey are logged and skipped.
func (o *Orchestrator) SeedPools() int {
	added := 0
	for _, seed := range o.cfg.Pools {
		if err := solana.ValidatePubkey(seed.Address); err != nil {
			o.log.Error("skipping pool with invalid address", zap.Error(err))
			continue
		}
		o.registry.AddPool(pool.New(
			seed.Address, seed.Venue,
			seed.TokenA, seed.TokenB,
			seed.DecimalsA, seed.DecimalsB,
			seed.FeeRate,
		))
		added++
	}
	o.log.Info("seeded pools", zap.Int("count", added))
	return added
}

// Run connects, subscribes every tracked pool, starts the periodic analysis
// loop, and blocks in the notification dispatch loop until ctx ends.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.ws.Connect(ctx); err != nil {
		return err
	}

	for _, p := range o.registry.All() {
		if _, err := o.ws.SubscribeAccount(ctx, p.Address); err != nil {
			o.log.Error("initial subscription failed",
				zap.String("address", p.Address), zap.Error(err))
		}
	}

	go o.monitor(ctx)

	o.log.Info("listening for pool updates")
	return o.ws.Listen(ctx, o.handleUpdate)
}

// Stop tears the websocket session down; safe to call mid-reconnect.
func (o *Orchestrator) Stop() {
	o.log.Info("stopping arbitrage monitor")
	o.ws.Close()
	o.logStats()
}

// handleUpdate decodes one account notification and applies it to the
// registry. Undecodable payloads leave the registry untouched.
func (o *Orchestrator) handleUpdate(n wsclient.Notification) {
	p := o.registry.GetPool(n.Account)
	if p == nil {
		o.log.Warn("notification for untracked pool", zap.String("account", n.Account))
		return
	}

	res, err := decode.AccountReserves(p.Venue, n.Data)
	if err != nil {
		metrics.DecodeFailures.Inc()
		o.log.Warn("undecodable account payload",
			zap.String("account", n.Account),
			zap.String("venue", string(p.Venue)),
			zap.Uint64("slot", n.Slot),
			zap.Error(err),
		)
		return
	}
	o.registry.UpdateReserves(n.Account, res.ReserveA, res.ReserveB)
}

// monitor refreshes prices and scans for opportunities on a fixed interval,
// independently of notification arrival.
func (o *Orchestrator) monitor(ctx context.Context) {
	t := time.NewTicker(o.cfg.MonitorInterval())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			start := time.Now()
			o.analyzer.Refresh()
			opps := o.detector.Detect()
			metrics.AnalysisLatency.Observe(time.Since(start).Seconds())

			if len(opps) == 0 {
				metrics.TopDivergencePct.Set(0)
				o.log.Debug("no arbitrage opportunities found")
				continue
			}

			metrics.TopDivergencePct.Set(opps[0].DiffPct)
			metrics.OpportunitiesDetected.Add(float64(len(opps)))

			top := opps
			if len(top) > o.cfg.Monitoring.TopOpportunities {
				top = top[:o.cfg.Monitoring.TopOpportunities]
			}
			for i, opp := range top {
				o.log.Info("opportunity",
					zap.Int("rank", i+1),
					zap.String("pair", opp.Pair.String()),
					zap.String("buy_venue", string(opp.BuyVenue)),
					zap.String("sell_venue", string(opp.SellVenue)),
					zap.Float64("buy_price", opp.BuyPrice),
					zap.Float64("sell_price", opp.SellPrice),
					zap.Float64("diff_pct", opp.DiffPct),
					zap.Float64("profit_est", opp.ProfitEstimate),
				)
			}

			if o.sink != nil {
				if err := o.sink.PublishOpportunities(ctx, top); err != nil {
					o.log.Warn("failed to publish opportunities", zap.Error(err))
				}
				if err := o.sink.PublishStats(ctx, o.detector.Stats()); err != nil {
					o.log.Warn("failed to publish stats", zap.Error(err))
				}
			}
		}
	}
}

func (o *Orchestrator) logStats() {
	s := o.detector.Stats()
	fields := []zap.Field{
		zap.Int("total_opportunities", s.TotalOpportunities),
		zap.Int("valid_opportunities", s.ValidOpportunities),
		zap.Float64("avg_profit", s.AvgProfit),
		zap.Float64("max_profit", s.MaxProfit),
	}
	if s.Best != nil {
		fields = append(fields, zap.String("best", s.Best.String()))
	}
	o.log.Info("arbitrage statistics", fields...)
}
