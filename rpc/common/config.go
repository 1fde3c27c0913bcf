package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the cache server.
type ServerConfig struct {
	// Endpoint is the listen address, either host:port or unix:///path
	Endpoint string

	// MaxEntries bounds every namespace of the server (<= 0 means unbounded)
	MaxEntries int

	// Logging configuration
	LogLevel string
}

// addSection and addField keep the String output of all configs aligned
func addSection(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
}

func addField(sb *strings.Builder, name, value string) {
	sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection(&sb, "Cache Server")
	addField(&sb, "Endpoint", c.Endpoint)
	if c.MaxEntries > 0 {
		addField(&sb, "Max Entries", strconv.Itoa(c.MaxEntries))
	} else {
		addField(&sb, "Max Entries", "unbounded")
	}

	addSection(&sb, "Logging")
	addField(&sb, "Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the settings of a cache client.
type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection(&sb, "Client Configuration")
	addField(&sb, "Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField(&sb, "Retry Count", strconv.Itoa(c.RetryCount))

	addSection(&sb, "Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(&sb, strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
