// Package config loads YAML configuration for the demo command-line tools.
// The SDK itself is configured in code via tracelet.Config; this package only
// maps a config file onto it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	tracelet "github.com/tracelet/tracelet-go"
	"github.com/tracelet/tracelet-go/backoff"
	"github.com/tracelet/tracelet-go/subscribe"
)

// FileConfig is the on-disk layout of a tool config file.
type FileConfig struct {
	Credentials struct {
		APIKey string `yaml:"api_key"`
		Token  string `yaml:"token"`
	} `yaml:"credentials"`

	Namespace string `yaml:"namespace"`
	MapUUID   string `yaml:"map_uuid"`

	Endpoints struct {
		Subscriber string `yaml:"subscriber"`
		Publisher  string `yaml:"publisher"`
	} `yaml:"endpoints"`

	Reconnect struct {
		BaseInterval time.Duration `yaml:"base_interval"`
		MaxDelay     time.Duration `yaml:"max_delay"`
		Multiplier   float64       `yaml:"multiplier"`
		MaxAttempts  int           `yaml:"max_attempts"`
	} `yaml:"reconnect"`

	// Topics to subscribe to (trackwatch only); empty means all.
	Topics []string `yaml:"topics"`

	Debug bool `yaml:"debug"`
}

// Load reads a YAML config file and expands ${VAR} environment variables.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg FileConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// ClientConfig maps the file onto a tracelet.Config. Validation happens in
// tracelet.NewClient.
func (c *FileConfig) ClientConfig() tracelet.Config {
	cfg := tracelet.Config{
		APIKey:        c.Credentials.APIKey,
		Token:         c.Credentials.Token,
		Namespace:     c.Namespace,
		MapUUID:       c.MapUUID,
		SubscriberURL: c.Endpoints.Subscriber,
		PublisherURL:  c.Endpoints.Publisher,
		Debug:         c.Debug,
	}
	if c.Reconnect.BaseInterval != 0 {
		cfg.Reconnect = backoff.Strategy{
			BaseInterval: c.Reconnect.BaseInterval,
			MaxDelay:     c.Reconnect.MaxDelay,
			Multiplier:   c.Reconnect.Multiplier,
			MaxAttempts:  c.Reconnect.MaxAttempts,
		}
	}
	return cfg
}

// TopicList resolves the configured topic names; empty means every topic.
func (c *FileConfig) TopicList() ([]subscribe.Topic, error) {
	if len(c.Topics) == 0 {
		return subscribe.AllTopics, nil
	}
	topics := make([]subscribe.Topic, 0, len(c.Topics))
	for _, name := range c.Topics {
		t := subscribe.Topic(name)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown topic %q in config", name)
		}
		topics = append(topics, t)
	}
	return topics, nil
}
