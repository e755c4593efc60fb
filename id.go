package canteen

import "github.com/xraph/canteen/id"

// ID is the primary identifier type for all Canteen entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
