// Package extension provides the Forge extension adapter for the presale
// engine.
//
// It implements the forge.Extension interface to integrate the engine
// into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.presale" or "presale"
// keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/presale"
	"github.com/xraph/presale/store"
	"github.com/xraph/presale/store/kv"
	"github.com/xraph/presale/store/memory"
	"github.com/xraph/presale/store/mongo"
	"github.com/xraph/presale/store/postgres"
	"github.com/xraph/presale/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "presale"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Token presale accounting engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the presale engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *presale.Engine
	store      store.Store
	grove      *grove.DB
	presaleCfg *presale.Config
	engineOpts []presale.Option
}

// New creates a new presale Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *presale.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration, builds
// the store and engine, and registers the engine in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := openStore(e.config, e.grove)
		if err != nil {
			return err
		}
		e.store = s
	}

	cfg, err := e.engineConfig()
	if err != nil {
		return err
	}

	eng, err := presale.New(e.store, cfg, e.engineOpts...)
	if err != nil {
		return err
	}
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*presale.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("presale: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}
	if e.config.OpenSaleOnStart {
		if err := e.engine.OpenSale(ctx); err != nil && !errors.Is(err, presale.ErrSaleFinalized) {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(ctx context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(ctx); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("presale: store not initialized")
	}
	return e.store.Ping(ctx)
}

// engineConfig returns the programmatic config if one was given, else
// loads ConfigFile (defaults plus environment when empty).
func (e *Extension) engineConfig() (presale.Config, error) {
	if e.presaleCfg != nil {
		return e.presaleCfg.Clone(), nil
	}
	return presale.LoadConfig(e.config.ConfigFile)
}

// openStore builds the store named by cfg.Backend.
func openStore(cfg Config, db *grove.DB) (store.Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return memory.New(), nil
	case BackendKV:
		return kv.Open(cfg.KVKind, cfg.KVDirectory)
	case BackendGrove:
		if db == nil {
			return nil, errors.New("presale: grove backend needs WithGroveDatabase")
		}
		switch cfg.GroveDriver {
		case "postgres", "pg":
			return postgres.New(db), nil
		case "sqlite":
			return sqlite.New(db), nil
		case "mongo", "mongodb":
			return mongo.New(db), nil
		default:
			return nil, fmt.Errorf("presale: unknown grove driver %q", cfg.GroveDriver)
		}
	default:
		return nil, fmt.Errorf("presale: unknown store backend %q", cfg.Backend)
	}
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("presale: configuration is required but not found in config files; " +
				"ensure 'extensions.presale' or 'presale' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("presale: configuration loaded",
		forge.F("backend", e.config.Backend),
		forge.F("kv_kind", e.config.KVKind),
		forge.F("grove_driver", e.config.GroveDriver),
		forge.F("config_file", e.config.ConfigFile),
		forge.F("open_sale_on_start", e.config.OpenSaleOnStart),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.presale", "presale"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("presale: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("presale: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Backend == "" {
		cfg.Backend = defaults.Backend
	}
	if cfg.KVKind == "" {
		cfg.KVKind = defaults.KVKind
	}
	if cfg.KVDirectory == "" {
		cfg.KVDirectory = defaults.KVDirectory
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill
// gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.OpenSaleOnStart {
		yamlConfig.OpenSaleOnStart = true
	}

	if yamlConfig.ConfigFile == "" {
		yamlConfig.ConfigFile = programmaticConfig.ConfigFile
	}
	if yamlConfig.Backend == "" {
		yamlConfig.Backend = programmaticConfig.Backend
	}
	if yamlConfig.KVKind == "" {
		yamlConfig.KVKind = programmaticConfig.KVKind
	}
	if yamlConfig.KVDirectory == "" {
		yamlConfig.KVDirectory = programmaticConfig.KVDirectory
	}
	if yamlConfig.GroveDriver == "" {
		yamlConfig.GroveDriver = programmaticConfig.GroveDriver
	}

	return mergeWithDefaults(yamlConfig)
}
