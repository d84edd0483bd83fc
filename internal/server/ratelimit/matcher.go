package ratelimit

import (
	"strings"
)

// HealthPath is never rate limited.
const HealthPath = "/api/health"

var unlimited = EndpointConfig{Path: HealthPath, Method: "GET"}

// MatchEndpoint returns the config for a request, or nil when the default
// applies. Exact paths win over prefixes; the longest prefix wins.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if path == HealthPath && method == "GET" {
		rule := unlimited
		return &rule
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			if best == nil || len(c.Path) > len(best.Path) {
				best = c
			}
		}
	}
	return best
}
