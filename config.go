package statsd

/*

Copyright (c) 2017 Andrey Smirnov

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.

*/

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is file representation of client settings
//
// Durations are written in Go format ("100ms", "10s"), negative
// duration disables the corresponding feature.
type Config struct {
	Addr              string   `yaml:"addr"`
	Namespace         string   `yaml:"namespace,omitempty"`
	Tags              []string `yaml:"tags,omitempty"`
	SampleRate        float64  `yaml:"sample_rate,omitempty"`
	MaxPacketSize     int      `yaml:"max_packet_size,omitempty"`
	FlushInterval     string   `yaml:"flush_interval,omitempty"`
	ReconnectInterval string   `yaml:"reconnect_interval,omitempty"`
	RetryTimeout      string   `yaml:"retry_timeout,omitempty"`
	WriteTimeout      string   `yaml:"write_timeout,omitempty"`
	ReportInterval    string   `yaml:"report_interval,omitempty"`
	BufPoolCapacity   int      `yaml:"buf_pool_capacity,omitempty"`
	SendQueueCapacity int      `yaml:"send_queue_capacity,omitempty"`
	TelemetryEnable   *bool    `yaml:"telemetry_enable,omitempty"`
	TelemetryInterval string   `yaml:"telemetry_flush_interval,omitempty"`
}

// LoadConfig reads YAML config file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML config
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}

	return &cfg, nil
}

// Options converts config into client options, settings missing from
// the config keep their defaults
func (cfg *Config) Options() ([]Option, error) {
	var options []Option

	if cfg.Namespace != "" {
		options = append(options, Namespace(cfg.Namespace))
	}

	if len(cfg.Tags) > 0 {
		tags := make([]Tag, 0, len(cfg.Tags))
		for _, tag := range cfg.Tags {
			tags = append(tags, ParseTag(tag))
		}

		options = append(options, DefaultTags(tags...))
	}

	if cfg.SampleRate != 0 {
		options = append(options, SampleRate(cfg.SampleRate))
	}

	if cfg.MaxPacketSize != 0 {
		options = append(options, MaxPacketSize(cfg.MaxPacketSize))
	}

	if cfg.BufPoolCapacity != 0 {
		options = append(options, BufPoolCapacity(cfg.BufPoolCapacity))
	}

	if cfg.SendQueueCapacity != 0 {
		options = append(options, SendQueueCapacity(cfg.SendQueueCapacity))
	}

	if cfg.TelemetryEnable != nil {
		options = append(options, TelemetryEnable(*cfg.TelemetryEnable))
	}

	durations := []struct {
		name   string
		value  string
		option func(time.Duration) Option
	}{
		{"flush_interval", cfg.FlushInterval, FlushInterval},
		{"reconnect_interval", cfg.ReconnectInterval, ReconnectInterval},
		{"retry_timeout", cfg.RetryTimeout, RetryTimeout},
		{"write_timeout", cfg.WriteTimeout, WriteTimeout},
		{"report_interval", cfg.ReportInterval, ReportInterval},
		{"telemetry_flush_interval", cfg.TelemetryInterval, TelemetryInterval},
	}

	for _, d := range durations {
		if d.value == "" {
			continue
		}

		duration, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, d.name, err)
		}

		options = append(options, d.option(duration))
	}

	return options, nil
}

// NewClientFromConfig creates client from the config, extra options
// are applied on top of the config
func NewClientFromConfig(cfg *Config, extra ...Option) (*Client, error) {
	options, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	return NewClient(cfg.Addr, append(options, extra...)...)
}
