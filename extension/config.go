package extension

// Config holds the Canteen extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.canteen" or "canteen" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Driver selects the store backend constructed from the grove
	// database: "postgres", "sqlite" or "mongo". Ignored when a store
	// is provided programmatically; defaults to "memory" when neither
	// a driver nor a store is configured.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Driver: "memory",
	}
}
