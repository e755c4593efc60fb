package canteen

import "github.com/xraph/canteen/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	EUR  = types.EUR
	USD  = types.USD
	GBP  = types.GBP
	CHF  = types.CHF
	Zero = types.Zero
	Sum  = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
