package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dCol/cmd/util"
	"github.com/ValentinKolb/dCol/rpc/common"
	"github.com/ValentinKolb/dCol/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dcol cache server",
		Long:    `Start the dcol cache server. Collections of type "shared" in every process connected to the server (--shared-endpoint) see the same cached records. The configuration can be set via command line flags or environment variables. The format of the environment variables is DCOL_<flag> (e.g. DCOL_MAX_ENTRIES=1000)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the server will listen (e.g. localhost:8080, unix:///tmp/dcol.sock)"))

	key = "max-entries"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Maximum number of records per namespace, the oldest records are evicted first (0 = unbounded)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MaxEntries = viper.GetInt("max-entries")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	serv := server.NewCacheServer(
		*serveCmdConfig,
		cmdUtil.GetServerTransport(),
		s,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- serv.Serve() }()
	server.Logger.Infof("serving on %s (%s serializer)", serveCmdConfig.Endpoint, s.Name())

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		server.Logger.Infof("shutting down")
		if err := serv.Close(); err != nil {
			return err
		}
		return <-done
	}
}
