package extension

import (
	"github.com/xraph/grove"

	"github.com/xraph/presale"
	"github.com/xraph/presale/plugin"
	"github.com/xraph/presale/store"
)

// Option configures the presale Forge extension.
type Option func(*Extension)

// WithStore sets the store for the presale engine. It wins over any
// configured backend.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithPresaleConfig sets the engine configuration instead of loading
// ConfigFile.
func WithPresaleConfig(cfg presale.Config) Option {
	return func(e *Extension) {
		c := cfg.Clone()
		e.presaleCfg = &c
	}
}

// WithPresaleOption passes a presale.Option through to the engine.
func WithPresaleOption(opt presale.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a presale plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, presale.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithConfigFile sets the presale YAML file.
func WithConfigFile(path string) Option {
	return func(e *Extension) { e.config.ConfigFile = path }
}

// WithKV selects the gokv store with the given kind and directory.
func WithKV(kind, dir string) Option {
	return func(e *Extension) {
		e.config.Backend = BackendKV
		e.config.KVKind = kind
		e.config.KVDirectory = dir
	}
}

// WithGroveDatabase builds the store on db. driver is "postgres",
// "sqlite" or "mongo" and must match how db was opened.
func WithGroveDatabase(db *grove.DB, driver string) Option {
	return func(e *Extension) {
		e.grove = db
		e.config.Backend = BackendGrove
		e.config.GroveDriver = driver
	}
}

// WithOpenSaleOnStart opens the sale once the engine has started.
func WithOpenSaleOnStart() Option {
	return func(e *Extension) { e.config.OpenSaleOnStart = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
