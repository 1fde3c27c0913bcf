package database

import (
	"os"

	"github.com/ValentinKolb/dCol/lib/collection"
	"github.com/ValentinKolb/dCol/lib/provider"
	"github.com/ValentinKolb/dCol/lib/record"
	"gopkg.in/yaml.v3"
)

// CollectionType selects the caching mode of a configured collection.
type CollectionType string

const (
	// CollectionPlain uses the provider's collection as is.
	CollectionPlain CollectionType = ""
	// CollectionCached wraps the collection with a process local cache.
	CollectionCached CollectionType = "cached"
	// CollectionShared wraps the collection with a shared cache.
	CollectionShared CollectionType = "shared"
)

// Config maps database names to the configuration of their providers.
//
// Example (YAML):
//
//	main:
//	  provider: sqlite
//	  path: data/main.db
//	  collections:
//	    tenants: {type: cached, max-entries: 1000}
//	    plans:
//	      type: shared
//	      data:
//	        - {id: "1", name: free}
//	  providers:
//	    scratch:
//	      provider: memory
type Config map[string]ProviderConfig

// ProviderConfig configures one provider of a database and the collections it serves.
type ProviderConfig struct {
	// Name of the provider inside the database (default "main", only used
	// for the top level provider of a database).
	Name string `yaml:"name,omitempty" mapstructure:"name"`
	// Provider is the registry type key, e.g. "memory", "sqlite" or "raft".
	Provider string `yaml:"provider" mapstructure:"provider"`
	// Collections bound to this provider.
	Collections map[string]CollectionConfig `yaml:"collections,omitempty" mapstructure:"collections"`
	// Providers are additional providers of the database.
	Providers map[string]ProviderConfig `yaml:"providers,omitempty" mapstructure:"providers"`
	// Settings holds all remaining keys, they are passed to the provider constructor.
	Settings map[string]any `yaml:",inline" mapstructure:",remain"`
}

// CollectionConfig configures the caching mode of a collection.
type CollectionConfig struct {
	Type CollectionType `yaml:"type,omitempty" mapstructure:"type"`
	// MaxEntries bounds a cached collection's cache (0 = unbounded).
	MaxEntries int `yaml:"max-entries,omitempty" mapstructure:"max-entries"`
	// Data seeds a shared collection's cache.
	Data []record.Record `yaml:"data,omitempty" mapstructure:"data"`
}

// ParseConfig parses a YAML configuration.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, collection.Wrapf(collection.RetCConfiguration, err, "invalid database configuration")
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, collection.Wrapf(collection.RetCConfiguration, err, "failed to read %s", path)
	}
	return ParseConfig(data)
}

// DecodeConfig converts a generic map (e.g. read by viper) into a Config.
func DecodeConfig(raw map[string]any) (Config, error) {
	var cfg Config
	if err := provider.DecodeSettings(raw, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
