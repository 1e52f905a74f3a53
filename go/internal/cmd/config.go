package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Match struct {
		TeamSize         int `yaml:"team_size"`
		RoundDurationSec int `yaml:"round_duration_sec"`
	} `yaml:"match"`
	Queue struct {
		FlushIntervalSec int `yaml:"flush_interval_sec"`
		MaxRetries       int `yaml:"max_retries"`
	} `yaml:"queue"`
	NATS struct {
		URL           string `yaml:"url"`
		StreamName    string `yaml:"stream_name"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

// defaultConfig is what runs when no config file is present; environment
// variables still override.
func defaultConfig() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

func applyDefaults(config *Config) {
	if config.Match.TeamSize == 0 {
		config.Match.TeamSize = getEnvAsInt("MATCH_TEAM_SIZE", 5)
	}
	if config.Match.RoundDurationSec == 0 {
		config.Match.RoundDurationSec = getEnvAsInt("MATCH_ROUND_DURATION_SEC", 420)
	}
	if config.Queue.FlushIntervalSec == 0 {
		config.Queue.FlushIntervalSec = getEnvAsInt("QUEUE_FLUSH_INTERVAL_SEC", 5)
	}
	if config.Queue.MaxRetries == 0 {
		config.Queue.MaxRetries = getEnvAsInt("QUEUE_MAX_RETRIES", 3)
	}
	if config.NATS.URL == "" {
		config.NATS.URL = getEnv("NATS_URL", "nats://localhost:4222")
	}
	if config.NATS.StreamName == "" {
		config.NATS.StreamName = getEnv("NATS_STREAM", "MATCH_EVENTS")
	}
	if config.NATS.SubjectPrefix == "" {
		config.NATS.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", "match.events")
	}
}

func (c *Config) flushInterval() time.Duration {
	return time.Duration(c.Queue.FlushIntervalSec) * time.Second
}
