package config

// 中文说明：
// 配置结构体。标签统一使用 mapstructure，由 viper 读取 YAML 后解码。

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Market     MarketConfig     `mapstructure:"market"`
	Fallback   FallbackConfig   `mapstructure:"fallback"`
	Search     SearchConfig     `mapstructure:"search"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Rulebook   RulebookConfig   `mapstructure:"rulebook"`
}

type AppConfig struct {
	Listen     string `mapstructure:"listen"`
	LogLevel   string `mapstructure:"log_level"`
	LogPath    string `mapstructure:"log_path"`
	OracleLog  string `mapstructure:"oracle_log"`
	OracleDump bool   `mapstructure:"oracle_dump"`
}

type OracleConfig struct {
	BaseURL        string            `mapstructure:"base_url"`
	APIKey         string            `mapstructure:"api_key"`
	Model          string            `mapstructure:"model"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
	MaxRetries     int               `mapstructure:"max_retries"`
	ExtraHeaders   map[string]string `mapstructure:"extra_headers"`
}

type MarketConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Category       string `mapstructure:"category"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type FallbackConfig struct {
	ProbeTimeoutSeconds int              `mapstructure:"probe_timeout_seconds"`
	Providers           []ProviderConfig `mapstructure:"providers"`
}

type ProviderConfig struct {
	ID       string `mapstructure:"id"`
	Priority int    `mapstructure:"priority"`
	Enabled  bool   `mapstructure:"enabled"`
	BaseURL  string `mapstructure:"base_url"`
}

type SearchConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Depth          string `mapstructure:"depth"`
	MaxResults     int    `mapstructure:"max_results"`
	Topic          string `mapstructure:"topic"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type MemoryConfig struct {
	DBPath      string `mapstructure:"db_path"`
	RecentLimit int    `mapstructure:"recent_limit"`
}

type AggregatorConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type RulebookConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}
