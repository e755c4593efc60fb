// Package extension provides the Forge extension adapter for Canteen.
//
// It implements the forge.Extension interface to integrate Canteen
// into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.canteen" or
// "canteen" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	canteen "github.com/xraph/canteen"
	"github.com/xraph/canteen/store"
	"github.com/xraph/canteen/store/memory"
	"github.com/xraph/canteen/store/mongo"
	"github.com/xraph/canteen/store/postgres"
	"github.com/xraph/canteen/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "canteen"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Canteen meal ordering and quota engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Canteen as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	engine      *canteen.Canteen
	store       store.Store
	db          *grove.DB
	canteenOpts []canteen.Option
}

// New creates a new Canteen Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Canteen instance.
// This is nil until Register is called.
func (e *Extension) Engine() *canteen.Canteen { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the canteen engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := e.buildStore()
		if err != nil {
			return err
		}
		e.store = s
	}

	eng := canteen.New(e.store, e.canteenOpts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*canteen.Canteen, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("canteen: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
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
		return errors.New("canteen: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildStore constructs the store backend named by the configured driver.
func (e *Extension) buildStore() (store.Store, error) {
	switch e.config.Driver {
	case "", "memory":
		return memory.New(), nil
	case "postgres":
		if e.db == nil {
			return nil, errors.New("canteen: postgres driver requires a grove database")
		}
		return postgres.New(e.db), nil
	case "sqlite":
		if e.db == nil {
			return nil, errors.New("canteen: sqlite driver requires a grove database")
		}
		return sqlite.New(e.db), nil
	case "mongo":
		if e.db == nil {
			return nil, errors.New("canteen: mongo driver requires a grove database")
		}
		return mongo.New(e.db), nil
	default:
		return nil, fmt.Errorf("canteen: unknown store driver %q", e.config.Driver)
	}
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("canteen: configuration is required but not found in config files; " +
				"ensure 'extensions.canteen' or 'canteen' key exists in your config")
		}

		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("canteen: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("driver", e.config.Driver),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.canteen" first (namespaced pattern).
	if cm.IsSet("extensions.canteen") {
		if err := cm.Bind("extensions.canteen", &cfg); err == nil {
			e.Logger().Debug("canteen: loaded config from file",
				forge.F("key", "extensions.canteen"),
			)
			return cfg, true
		}
		e.Logger().Warn("canteen: failed to bind extensions.canteen config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "canteen" key.
	if cm.IsSet("canteen") {
		if err := cm.Bind("canteen", &cfg); err == nil {
			e.Logger().Debug("canteen: loaded config from file",
				forge.F("key", "canteen"),
			)
			return cfg, true
		}
		e.Logger().Warn("canteen: failed to bind canteen config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.Driver == "" && programmaticConfig.Driver != "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}
	return e.mergeWithDefaults(yamlConfig)
}
