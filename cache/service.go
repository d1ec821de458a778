package cache

import "github.com/goliatone/go-freightsync/internal/cacheinfra"

// PayloadStore keeps the data of successful query results. The Store owns
// every other part of an entry; a payload store may drop payloads under
// capacity pressure, after which the entry is fetched again.
// Implementations must be safe for concurrent use.
type PayloadStore interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

// Interface assertion for the default backend.
var _ PayloadStore = (*cacheinfra.SturdycPayloads)(nil)

// NewPayloadStore constructs the default sturdyc backed payload store.
func NewPayloadStore(cfg Config) (PayloadStore, error) {
	return cacheinfra.NewSturdycPayloads(cfg.toInternal())
}
