package config

import (
	"os"
	"time"

	"github.com/you/solarb/internal/types"
	"gopkg.in/yaml.v3"
)

// PoolSeed is one tracked pool supplied by configuration (or a discovery
// service writing the same file).
type PoolSeed struct {
	Address   string      `yaml:"address"`
	Venue     types.Venue `yaml:"venue"`
	TokenA    string      `yaml:"token_a"`
	TokenB    string      `yaml:"token_b"`
	DecimalsA int         `yaml:"decimals_a"`
	DecimalsB int         `yaml:"decimals_b"`
	FeeRate   float64     `yaml:"fee_rate"`
}

type Config struct {
	RPC struct {
		Endpoint string `yaml:"endpoint"`
		Proxy    string `yaml:"proxy"`
	} `yaml:"rpc"`

	WebSocket struct {
		ReconnectIntervalSec int     `yaml:"reconnect_interval_sec"`
		ConnectionTimeoutSec int     `yaml:"connection_timeout_sec"`
		SubscribeTimeoutSec  int     `yaml:"subscribe_timeout_sec"`
		SubscribeRate        float64 `yaml:"subscribe_rate"` // requests per second
	} `yaml:"websocket"`

	Monitoring struct {
		MinProfitThreshold float64 `yaml:"min_profit_threshold"` // percent
		IntervalSec        int     `yaml:"interval_sec"`
		TopOpportunities   int     `yaml:"top_opportunities"`
	} `yaml:"monitoring"`

	Arbitrage struct {
		TradeSize         float64 `yaml:"trade_size"`
		SlippageTolerance float64 `yaml:"slippage_tolerance"` // reserved, not in profit math
		FeeRate           float64 `yaml:"fee_rate"`           // round-trip is 2x this
	} `yaml:"arbitrage"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Channel  string `yaml:"channel"`
		StatsKey string `yaml:"stats_key"`
	} `yaml:"redis"`

	Pools []PoolSeed `yaml:"pools"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.WebSocket.ReconnectIntervalSec == 0 {
		c.WebSocket.ReconnectIntervalSec = 5
	}
	if c.WebSocket.ConnectionTimeoutSec == 0 {
		c.WebSocket.ConnectionTimeoutSec = 30
	}
	if c.WebSocket.SubscribeTimeoutSec == 0 {
		c.WebSocket.SubscribeTimeoutSec = 5
	}
	if c.WebSocket.SubscribeRate == 0 {
		c.WebSocket.SubscribeRate = 10
	}
	if c.Monitoring.IntervalSec == 0 {
		c.Monitoring.IntervalSec = 5
	}
	if c.Monitoring.TopOpportunities == 0 {
		c.Monitoring.TopOpportunities = 5
	}
	if c.Arbitrage.TradeSize == 0 {
		c.Arbitrage.TradeSize = 100
	}
	if c.Arbitrage.SlippageTolerance == 0 {
		c.Arbitrage.SlippageTolerance = 0.5
	}
	if c.Arbitrage.FeeRate == 0 {
		c.Arbitrage.FeeRate = 0.003
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "solarb:opportunities"
	}
	if c.Redis.StatsKey == "" {
		c.Redis.StatsKey = "solarb:stats"
	}
	return &c, nil
}

func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.WebSocket.ReconnectIntervalSec) * time.Second
}
func (c *Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.WebSocket.ConnectionTimeoutSec) * time.Second
}
func (c *Config) SubscribeTimeout() time.Duration {
	return time.Duration(c.WebSocket.SubscribeTimeoutSec) * time.Second
}
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitoring.IntervalSec) * time.Second
}
