package ratelimit

import (
	"strings"
	"time"
)

// EndpointConfig is the limit for requests matching Path and Method.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends with "/"
	Method string        // HTTP method
	Limit  int           // requests per Window; 0 means unlimited
	Window time.Duration // refill window
	Burst  int           // bucket capacity, Limit when 0
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// DefaultConfig allows 100 requests per hour per client.
func DefaultConfig() *Config {
	return NewConfig(100, time.Hour)
}

// NewConfig builds a config with a per-client default of limit requests per
// window and the stricter analysis limits from DefaultEndpointConfigs.
func NewConfig(limit int, window time.Duration) *Config {
	return &Config{
		Enabled:         limit > 0,
		DefaultLimit:    limit,
		DefaultWindow:   window,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       make(map[string]bool),
		Blacklist:       make(map[string]bool),
		EndpointConfigs: DefaultEndpointConfigs(limit, window),
	}
}

// IdleTimeout is how long an unused bucket is kept.
func (c *Config) IdleTimeout() time.Duration {
	if c.DefaultWindow > time.Hour {
		return c.DefaultWindow
	}
	return time.Hour
}

// DefaultEndpointConfigs limits the endpoints that call several AI services
// to a fifth of the default, with a small burst.
func DefaultEndpointConfigs(limit int, window time.Duration) []EndpointConfig {
	strict := max(limit/5, 1)
	burst := max(strict/4, 1)
	return []EndpointConfig{
		{Path: "/api/analyze", Method: "POST", Limit: strict, Window: window, Burst: burst},
		{Path: "/api/analyze-stream", Method: "POST", Limit: strict, Window: window, Burst: burst},
		{Path: "/api/analyze-image", Method: "POST", Limit: strict, Window: window, Burst: burst},
	}
}

// ParseIPList parses a comma-separated list of IP addresses into a set.
func ParseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
