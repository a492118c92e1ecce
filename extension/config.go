package extension

// Store backends selectable from configuration.
const (
	BackendMemory = "memory"
	BackendKV     = "kv"
	BackendGrove  = "grove"
)

// Config holds the presale extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.presale" or "presale" keys).
type Config struct {
	// ConfigFile is a presale YAML file read with presale.LoadConfig. When
	// empty the engine uses presale.DefaultConfig plus environment
	// overrides.
	ConfigFile string `json:"config_file" mapstructure:"config_file" yaml:"config_file"`

	// Backend selects the store: "memory", "kv" or "grove" (default:
	// "memory"). "grove" requires WithGroveDatabase.
	Backend string `json:"backend" mapstructure:"backend" yaml:"backend"`

	// KVKind is the gokv backend for Backend "kv": "syncmap", "file" or
	// "badgerdb" (default: "file").
	KVKind string `json:"kv_kind" mapstructure:"kv_kind" yaml:"kv_kind"`

	// KVDirectory is where the file and badgerdb backends keep their data
	// (default: "presale-data").
	KVDirectory string `json:"kv_directory" mapstructure:"kv_directory" yaml:"kv_directory"`

	// GroveDriver names the driver of the grove.DB passed to
	// WithGroveDatabase: "postgres", "sqlite" or "mongo".
	GroveDriver string `json:"grove_driver" mapstructure:"grove_driver" yaml:"grove_driver"`

	// OpenSaleOnStart opens the sale once the engine has started.
	OpenSaleOnStart bool `json:"open_sale_on_start" mapstructure:"open_sale_on_start" yaml:"open_sale_on_start"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:     BackendMemory,
		KVKind:      "file",
		KVDirectory: "presale-data",
	}
}
