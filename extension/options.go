package extension

import (
	"github.com/xraph/grove"

	canteen "github.com/xraph/canteen"
	"github.com/xraph/canteen/plugin"
	"github.com/xraph/canteen/store"
)

// Option configures the Canteen Forge extension.
type Option func(*Extension)

// WithStore sets the store for the canteen engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB provides the grove database the extension builds its
// store from. The backend is chosen by the configured driver name.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.db = db
	}
}

// WithCanteenOption passes a canteen.Option through to the underlying engine.
func WithCanteenOption(opt canteen.Option) Option {
	return func(e *Extension) {
		e.canteenOpts = append(e.canteenOpts, opt)
	}
}

// WithPlugin registers a canteen plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.canteenOpts = append(e.canteenOpts, canteen.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDriver selects the store backend built from the grove database.
func WithDriver(driver string) Option {
	return func(e *Extension) { e.config.Driver = driver }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
