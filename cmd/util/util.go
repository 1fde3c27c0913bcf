package util

import (
	"strings"

	"github.com/ValentinKolb/dCol/rpc/common"
	"github.com/ValentinKolb/dCol/rpc/serializer"
	"github.com/ValentinKolb/dCol/rpc/transport"
	"github.com/ValentinKolb/dCol/rpc/transport/http"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
	// EnvPrefix is the prefix of all environment variables read by dcol
	EnvPrefix = "dcol"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and binds the DCOL_ environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupRPCClientFlags adds the flags of a cache server connection to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "shared-endpoint"
	cmd.PersistentFlags().String(key, "", WrapString("Address of the dcol cache server used for shared collections. Multiple endpoints can be given as a comma-separated list. If empty, shared collections use a process local cache"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the cache client"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to try a request to the cache server"))
}

// GetClientConfig reads the cache client configuration from viper. It
// returns nil if no endpoint is configured.
func GetClientConfig() *common.ClientConfig {
	raw := strings.TrimSpace(viper.GetString("shared-endpoint"))
	if raw == "" {
		return nil
	}
	var endpoints []string
	for _, e := range strings.Split(raw, ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}
	return &common.ClientConfig{
		Endpoints:     endpoints,
		TimeoutSecond: viper.GetInt("timeout"),
		RetryCount:    viper.GetInt("retries"),
	}
}

// GetSerializer creates the serializer selected by the --serializer flag
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.ByName(viper.GetString("serializer"))
}

// GetClientTransport creates the client transport
func GetClientTransport() transport.IRPCClientTransport {
	return http.NewHttpClientTransport()
}

// GetServerTransport creates the server transport
func GetServerTransport() transport.IRPCServerTransport {
	return http.NewHttpServerTransport()
}

// BindCommandFlags binds a command's flags (including inherited ones) to viper
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.InheritedFlags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.Flags())
}
