package config

// Tick transports understood by the node.
const (
	TickTransportIPC = "ipc"
	TickTransportRPC = "rpc"
)

// EngineConfig locates the external ledger engine.
type EngineConfig struct {
	RPCURL        string `yaml:"rpc_url"`
	ControlURL    string `yaml:"control_url"`
	TickTransport string `yaml:"tick_transport"`
	TickSocket    string `yaml:"tick_socket"`
	SkipPreflight bool   `yaml:"skip_preflight"`
}

// IngressConfig holds the client facing listeners. Empty disables a listener.
type IngressConfig struct {
	JSONRPCAddr string `yaml:"jsonrpc_addr"`
	IPCSocket   string `yaml:"ipc_socket"`

	// RateLimitPerSecond caps JSON-RPC requests per client IP. 0 disables.
	RateLimitPerSecond int `yaml:"rate_limit_per_second"`
}

// StorageConfig selects the block store backend.
type StorageConfig struct {
	Type      string `yaml:"type"`
	Directory string `yaml:"directory"`
}

// NodeConfig holds the configuration from node.yml
type NodeConfig struct {
	Name        string        `yaml:"name"`
	Engine      EngineConfig  `yaml:"engine"`
	Ingress     IngressConfig `yaml:"ingress"`
	MetricsAddr string        `yaml:"metrics_addr"`
	Storage     StorageConfig `yaml:"storage"`
}

// ConfigFile is the top-level structure for node.yml
type ConfigFile struct {
	Config NodeConfig `yaml:"config"`
}

type CommitConfig struct {
	PreTicks       int  `ini:"pre_ticks"`
	PostTicks      int  `ini:"post_ticks"`
	MaxRetries     int  `ini:"max_retries"`
	PollIntervalMs int  `ini:"poll_interval_ms"`
	TickOnPoll     bool `ini:"tick_on_poll"`
}

type TickConfig struct {
	TimeoutMs    int `ini:"timeout_ms"`
	TicksPerSlot int `ini:"ticks_per_slot"`
}

type EngineTuning struct {
	RequestTimeoutMs int `ini:"request_timeout_ms"`
}

type ProducerConfig struct {
	BatchSize       int `ini:"batch_size"`
	BlockIntervalMs int `ini:"block_interval_ms"`
	MaxTxAttempts   int `ini:"max_tx_attempts"`
}

// Tuning groups every section of config.ini.
type Tuning struct {
	Commit   CommitConfig
	Tick     TickConfig
	Engine   EngineTuning
	Producer ProducerConfig
}
