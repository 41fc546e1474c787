package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mezonai/sequencer/commit"
	"github.com/mezonai/sequencer/logx"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// LoadNodeConfig reads and parses node.yml, filling unset fields with defaults.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfgFile ConfigFile
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg := &cfgFile.Config
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded node config | name=%s | engine=%s | tick=%s", cfg.Name, cfg.Engine.RPCURL, cfg.Engine.TickTransport))
	return cfg, nil
}

func (c *NodeConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = "sequencer"
	}
	if c.Engine.TickTransport == "" {
		c.Engine.TickTransport = TickTransportIPC
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "leveldb"
	}
	if c.Storage.Directory == "" {
		c.Storage.Directory = "./data/blocks"
	}
}

func (c *NodeConfig) Validate() error {
	if c.Engine.RPCURL == "" {
		return fmt.Errorf("engine.rpc_url is required")
	}
	if c.Ingress.RateLimitPerSecond < 0 {
		return fmt.Errorf("ingress.rate_limit_per_second must be >= 0")
	}
	switch c.Engine.TickTransport {
	case TickTransportIPC:
		if c.Engine.TickSocket == "" {
			return fmt.Errorf("engine.tick_socket is required for the ipc tick transport")
		}
	case TickTransportRPC:
		if c.Engine.ControlURL == "" {
			return fmt.Errorf("engine.control_url is required for the rpc tick transport")
		}
	default:
		return fmt.Errorf("engine.tick_transport %q is not one of ipc, rpc", c.Engine.TickTransport)
	}
	return nil
}

func DefaultTuning() Tuning {
	p := commit.DefaultPolicy()
	return Tuning{
		Commit: CommitConfig{
			PreTicks:       p.PreTicks,
			PostTicks:      p.PostTicks,
			MaxRetries:     p.MaxRetries,
			PollIntervalMs: int(p.PollInterval / time.Millisecond),
			TickOnPoll:     p.TickOnPoll,
		},
		Tick:     TickConfig{TimeoutMs: 5000, TicksPerSlot: 64},
		Engine:   EngineTuning{RequestTimeoutMs: 5000},
		Producer: ProducerConfig{BatchSize: 64, BlockIntervalMs: 400, MaxTxAttempts: 3},
	}
}

// LoadTuning reads every section of config.ini over the defaults.
func LoadTuning(path string) (*Tuning, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	t := DefaultTuning()
	sections := []struct {
		name string
		dst  interface{}
	}{
		{"commit", &t.Commit},
		{"tick", &t.Tick},
		{"engine", &t.Engine},
		{"producer", &t.Producer},
	}
	for _, s := range sections {
		if err := cfg.Section(s.name).MapTo(s.dst); err != nil {
			return nil, fmt.Errorf("section [%s]: %w", s.name, err)
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadCommitConfig reads the [commit] section only.
func LoadCommitConfig(path string) (*CommitConfig, error) {
	t, err := LoadTuning(path)
	if err != nil {
		return nil, err
	}
	return &t.Commit, nil
}

// LoadProducerConfig reads the [producer] section only.
func LoadProducerConfig(path string) (*ProducerConfig, error) {
	t, err := LoadTuning(path)
	if err != nil {
		return nil, err
	}
	return &t.Producer, nil
}

func (t Tuning) Validate() error {
	if err := t.Commit.Policy().Validate(); err != nil {
		return fmt.Errorf("[commit] %w", err)
	}
	if t.Tick.TimeoutMs <= 0 {
		return fmt.Errorf("[tick] timeout_ms must be > 0")
	}
	if t.Tick.TicksPerSlot <= 0 {
		return fmt.Errorf("[tick] ticks_per_slot must be > 0")
	}
	if t.Engine.RequestTimeoutMs <= 0 {
		return fmt.Errorf("[engine] request_timeout_ms must be > 0")
	}
	if t.Producer.BatchSize <= 0 {
		return fmt.Errorf("[producer] batch_size must be > 0")
	}
	if t.Producer.BlockIntervalMs <= 0 {
		return fmt.Errorf("[producer] block_interval_ms must be > 0")
	}
	if t.Producer.MaxTxAttempts <= 0 {
		return fmt.Errorf("[producer] max_tx_attempts must be > 0")
	}
	return nil
}

func (c CommitConfig) Policy() commit.Policy {
	return commit.Policy{
		PreTicks:     c.PreTicks,
		PostTicks:    c.PostTicks,
		MaxRetries:   c.MaxRetries,
		PollInterval: time.Duration(c.PollIntervalMs) * time.Millisecond,
		TickOnPoll:   c.TickOnPoll,
	}
}

func (c TickConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c EngineTuning) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c ProducerConfig) BlockInterval() time.Duration {
	return time.Duration(c.BlockIntervalMs) * time.Millisecond
}
