// Package config defines the YAML-driven tree topology and ambient
// settings for a clocktree process: which clocks to build, how they
// relate, and how to expose and export them.
package config

// Config is the root of a clocktree deployment's configuration file.
type Config struct {
	ClockTree     ClockTreeConfig     `yaml:"clock_tree"`
	Logging       LoggingConfig       `yaml:"logging,omitempty"`
	HTTP          HTTPConfig          `yaml:"http,omitempty"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch,omitempty"`
}

// ClockTreeConfig describes one root and every non-root node hanging
// off it (directly or transitively).
type ClockTreeConfig struct {
	Root  RootClockConfig `yaml:"root"`
	Nodes []NodeConfig    `yaml:"nodes,omitempty"`
}

// RootClockConfig configures the tree's single RootClock.
type RootClockConfig struct {
	ID              string  `yaml:"id"`
	TickRate        float64 `yaml:"tick_rate,omitempty"`
	MaxFreqErrorPpm float64 `yaml:"max_freq_error_ppm,omitempty"`
}

// NodeConfig configures one non-root clock. Kind selects which of the
// two non-root clock types to build; the fields relevant to the other
// kind are ignored.
type NodeConfig struct {
	ID     string `yaml:"id"`
	Parent string `yaml:"parent"`
	Kind   string `yaml:"kind"` // "correlated" or "offset"

	// Correlated-clock fields.
	TickRate    float64            `yaml:"tick_rate,omitempty"`
	Speed       *float64           `yaml:"speed,omitempty"`
	Correlation *CorrelationConfig `yaml:"correlation,omitempty"`

	// Offset-clock fields.
	OffsetMs float64 `yaml:"offset_ms,omitempty"`
}

// CorrelationConfig is the YAML form of clock.Correlation.
type CorrelationConfig struct {
	ParentTime      float64 `yaml:"parent_time"`
	ChildTime       float64 `yaml:"child_time"`
	InitialError    float64 `yaml:"initial_error,omitempty"`
	ErrorGrowthRate float64 `yaml:"error_growth_rate,omitempty"`
}

// LoggingConfig controls the process-wide logrus setup.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug|info|warn|error
	Format string `yaml:"format,omitempty"` // text|json
}

// HTTPConfig controls the optional gin introspection API.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Listen  string `yaml:"listen,omitempty"`
}

// ElasticsearchConfig controls the optional event sink.
type ElasticsearchConfig struct {
	Enabled  bool     `yaml:"enabled,omitempty"`
	Hosts    []string `yaml:"hosts,omitempty"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	APIKey   string   `yaml:"api_key,omitempty"`
	Index    string   `yaml:"index,omitempty"`
}

const (
	KindCorrelated = "correlated"
	KindOffset     = "offset"
)

const (
	defaultRootTickRate       = 1000.0
	defaultMaxFreqErrorPpm    = 50.0
	defaultCorrelatedTickRate = 1000.0
	defaultHTTPListen         = ":8089"
	defaultElasticsearchIndex = "clocktree-events"
	defaultLoggingLevel       = "info"
	defaultLoggingFormat      = "text"
)

// setDefaults fills in every zero-valued field that has a documented
// non-zero default.
func setDefaults(cfg *Config) {
	if cfg.ClockTree.Root.TickRate == 0 {
		cfg.ClockTree.Root.TickRate = defaultRootTickRate
	}
	if cfg.ClockTree.Root.MaxFreqErrorPpm == 0 {
		cfg.ClockTree.Root.MaxFreqErrorPpm = defaultMaxFreqErrorPpm
	}
	for i := range cfg.ClockTree.Nodes {
		n := &cfg.ClockTree.Nodes[i]
		if n.Kind == KindCorrelated && n.TickRate == 0 {
			n.TickRate = defaultCorrelatedTickRate
		}
	}
	if cfg.HTTP.Enabled && cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = defaultHTTPListen
	}
	if cfg.Elasticsearch.Enabled && cfg.Elasticsearch.Index == "" {
		cfg.Elasticsearch.Index = defaultElasticsearchIndex
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaultLoggingFormat
	}
}
