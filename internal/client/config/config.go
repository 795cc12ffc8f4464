// Package config handles configuration for the CLI client.
package config

import "errors"

// Config holds runtime settings for the authd CLI client.
type Config struct {
	// ServerEndpointAddr is the base URL of the credential service,
	// e.g. "http://localhost:8080".
	ServerEndpointAddr string
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://localhost:8080"
}

func (c *Config) Validate() error {
	if c.ServerEndpointAddr == "" {
		return errors.New("server endpoint address must not be empty")
	}
	return nil
}

// LoadConfig builds a Config from defaults overridden by command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)
	return cfg
}
