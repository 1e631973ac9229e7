package config

import "time"

// Config holds runtime settings for the memberauth CLI.
type Config struct {
	ServerEndpointAddr string
	// RequestTimeout bounds a single call to the server.
	RequestTimeout time.Duration
}

func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 5 * time.Second
}

// LoadConfig applies defaults, then the JSON file given by -c/-config, then
// flags. Later sources win.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
