package http

import (
	"strings"
)

const unixScheme = "unix://"

// splitEndpoint returns the network and address of an endpoint. Endpoints
// are either unix:///path/to/socket or a TCP address with an optional
// http:// prefix.
func splitEndpoint(endpoint string) (network, address string) {
	if strings.HasPrefix(endpoint, unixScheme) {
		return "unix", strings.TrimPrefix(endpoint, unixScheme)
	}
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return "tcp", strings.TrimSuffix(endpoint, "/")
}
