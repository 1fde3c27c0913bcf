package col

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/dCol/cmd/util"
	"github.com/ValentinKolb/dCol/lib/database"
	"github.com/ValentinKolb/dCol/lib/provider/providers"
	"github.com/ValentinKolb/dCol/rpc/client"
	"github.com/ValentinKolb/dCol/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	manager      *database.Manager
	sharedMemory *client.SharedMemory

	// ColCommands represents the collection command group
	ColCommands = &cobra.Command{
		Use:   "col",
		Short: "Perform collection operations on a configured database",
		Long: `Perform collection operations on a configured database.

The databases, their providers and collections are read from the config file
(--config). Collections of type "shared" use the cache server given with
--shared-endpoint, or a process local cache if none is given.`,
		PersistentPreRunE:  setupDatabase,
		PersistentPostRunE: teardownDatabase,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add cache server flags
	util.SetupRPCClientFlags(ColCommands)

	key := "config"
	ColCommands.PersistentFlags().String(key, "dcol.yaml", util.WrapString("Path of the database configuration (yaml, json or toml)"))
	key = "database"
	ColCommands.PersistentFlags().String(key, database.MainDatabase, util.WrapString("Name of the database to operate on"))
	key = "log-level"
	ColCommands.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	// Add subcommands
	ColCommands.AddCommand(findCmd)
	ColCommands.AddCommand(getCmd)
	ColCommands.AddCommand(insertCmd)
	ColCommands.AddCommand(updateCmd)
	ColCommands.AddCommand(removeCmd)
	ColCommands.AddCommand(countCmd)
	ColCommands.AddCommand(dropCmd)
	ColCommands.AddCommand(perfTestCmd)
}

// loadConfig reads YAML files directly (keeping the case of collection
// names) and every other format through viper.
func loadConfig(path string) (database.Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return database.LoadConfig(path)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return database.DecodeConfig(v.AllSettings())
}

// setupDatabase creates and starts the databases of the config file
func setupDatabase(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	cfg, err := loadConfig(viper.GetString("config"))
	if err != nil {
		return err
	}
	name := viper.GetString("database")
	if _, ok := cfg[name]; !ok {
		return fmt.Errorf("database %s is not configured in %s", name, viper.GetString("config"))
	}

	opts := []database.Option{database.WithRegistry(providers.NewRegistry())}
	if conf := util.GetClientConfig(); conf != nil {
		s, err := util.GetSerializer()
		if err != nil {
			return err
		}
		sharedMemory, err = client.NewSharedMemory(*conf, util.GetClientTransport(), s)
		if err != nil {
			return err
		}
		opts = append(opts, database.WithSharedMemory(sharedMemory))
	}

	manager, err = database.CreateFrom(cmd.Context(), cfg, opts...)
	if err != nil {
		return err
	}
	return manager.Start(cmd.Context())
}

func teardownDatabase(cmd *cobra.Command, _ []string) error {
	if sharedMemory != nil {
		defer sharedMemory.Close()
	}
	if manager == nil {
		return nil
	}
	return manager.Stop(cmd.Context())
}

// db returns the selected database
func db() *database.Database {
	return manager.Database(viper.GetString("database"))
}
