package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NightlyConfig describes the scheduled nightly build.
type NightlyConfig struct {
	// Schedule is a cron expression, e.g. "0 2 * * *".
	Schedule string `yaml:"schedule"`
	Branch   string `yaml:"branch"`
	// VersionFormat names nightly versions; {branch} and {date} are
	// substituted. Default: "{branch}-{date}".
	VersionFormat string `yaml:"version_format"`
}

// NATSConfig configures the trigger/result messaging surface.
type NATSConfig struct {
	URL            string `yaml:"url"`
	TriggerSubject string `yaml:"trigger_subject"`
	ResultSubject  string `yaml:"result_subject"`
}

// LoopDevConfig bounds the pool of loop devices handed to builds.
type LoopDevConfig struct {
	First int `yaml:"first"`
	Last  int `yaml:"last"`
}

// DaemonConfig is the YAML configuration for daemon mode.
type DaemonConfig struct {
	Repository  string   `yaml:"repository"`
	Credentials string   `yaml:"credentials"`
	Boards      []string `yaml:"boards"`
	Driver      string   `yaml:"driver"`

	DownloadRoot string `yaml:"download_root"`
	CCacheRoot   string `yaml:"ccache_root"`
	OutputRoot   string `yaml:"output_root"`

	MaxParallel int    `yaml:"max_parallel"`
	StorePath   string `yaml:"store_path"`

	Nightly  NightlyConfig `yaml:"nightly"`
	NATS     NATSConfig    `yaml:"nats"`
	LoopDevs LoopDevConfig `yaml:"loop_devices"`

	PushGatewayURL string `yaml:"push_gateway_url"`
}

// LoadDaemonConfig reads and validates the daemon configuration file.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read daemon config: %w", err)
	}

	var cfg DaemonConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse daemon config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *DaemonConfig) applyDefaults() {
	if c.DownloadRoot == "" {
		c.DownloadRoot = DefaultDownloadRoot
	}
	if c.CCacheRoot == "" {
		c.CCacheRoot = DefaultCCacheRoot
	}
	if c.OutputRoot == "" {
		c.OutputRoot = DefaultOutputRoot
	}
	if c.Driver == "" {
		c.Driver = "./build.sh"
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 4
	}
	if c.StorePath == "" {
		c.StorePath = "/var/lib/boardci/builds.db"
	}
	if c.Nightly.VersionFormat == "" {
		c.Nightly.VersionFormat = "{branch}-{date}"
	}
	if c.NATS.TriggerSubject == "" {
		c.NATS.TriggerSubject = "boardci.trigger"
	}
	if c.NATS.ResultSubject == "" {
		c.NATS.ResultSubject = "boardci.result"
	}
	if c.LoopDevs.Last < c.LoopDevs.First {
		c.LoopDevs.Last = c.LoopDevs.First
	}
}

func (c *DaemonConfig) validate() error {
	if c.Repository == "" {
		return fmt.Errorf("daemon config: repository is required")
	}
	if len(c.Boards) == 0 {
		return fmt.Errorf("daemon config: at least one board is required")
	}
	return nil
}
