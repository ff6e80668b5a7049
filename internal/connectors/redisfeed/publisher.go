// Package redisfeed publishes ranked opportunities and periodic statistics
// snapshots for consumers outside the core (display, alerting).
package redisfeed

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/you/solarb/internal/config"
	"github.com/you/solarb/internal/types"
)

type Publisher struct {
	rdb      *redis.Client
	channel  string
	statsKey string
}

func NewPublisher(cfg *config.Config) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	return &Publisher{
		rdb:      rdb,
		channel:  cfg.Redis.Channel,
		statsKey: cfg.Redis.StatsKey,
	}
}

// PublishOpportunities pushes the ranked batch as one JSON message.
func (p *Publisher) PublishOpportunities(ctx context.Context, opps []types.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	payload, err := json.Marshal(opps)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

// PublishStats stores the latest statistics snapshot under a fixed key.
func (p *Publisher) PublishStats(ctx context.Context, stats types.Stats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return p.rdb.Set(ctx, p.statsKey, payload, 0).Err()
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}
