// Package cache provides the cache store, tag index and key serialization
// used by the query engine.
//
// # Overview
//
// The package exports three building blocks:
//
//   - Store: one entry per cache key with status, payload, subscribers, tags
//     and an optional TTL countdown
//   - TagIndex: the reverse index from an invalidation tag to the keys whose
//     results carried it
//   - KeySerializer: builds stable cache keys from a resource type, an
//     operation name and arbitrary parameters
//
// The store and the index are a single explicit value. Nothing in this
// module keeps cache state in package level variables; construct a Store and
// hand it to the components that need it.
//
// # Basic Usage
//
//	store, err := cache.NewStore(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	key := cache.NewDefaultKeySerializer().SerializeKey("Order", "filter", map[string]any{
//		"minWeight": 0,
//		"loadTypes": []string{"pallet", "bulk"},
//	})
//	// Order::filter::{"loadTypes":["pallet","bulk"],"minWeight":0}
//
//	id := store.Subscribe(key, func(e cache.Entry) {
//		log.Println(e.Status)
//	})
//	defer store.Unsubscribe(key, id)
//
// # Entry Lifecycle
//
// Entries move between idle, loading, success, error and stale. Put replaces
// the entry and notifies subscribers synchronously, after the store lock is
// released. Only success entries write a payload; loading, error and stale
// entries keep showing the previous payload, if any.
//
// Entries with a TTL are purged TTL after their last subscriber leaves, unless
// someone subscribes again first. A successful Put restarts the countdown of
// an unsubscribed entry. Entries without a TTL stay until invalidated.
//
// # Invalidation
//
// Invalidate takes tags, collects every key registered under them and:
//
//  1. Marks subscribed entries stale and returns them for refetch
//  2. Evicts settled entries that have no subscribers
//  3. Flags loading entries so the running fetch lands stale
//
// Refetching is the query engine's job; the store only reports which keys
// need it.
//
// # Payload Storage
//
// Payloads are kept in a sturdyc client (internal/cacheinfra) bounded by
// Config.Capacity. When sturdyc drops a payload to make room, the entry reads
// back as idle and the next run fetches it again.
//
// # Key Serialization Strategy
//
// The default serializer writes parameters as canonical JSON text:
//
//   - Maps and structs: keys sorted; structs use their json field names
//   - Slices and arrays: order preserved
//   - Pointers and interfaces: dereferenced, nil becomes null
//   - json.Marshaler values: marshaled, then canonicalized
//   - Numbers: integers and whole floats print the same ("0" for 0 and 0.0)
//
// nil parameters, empty maps and empty slices produce the bare
// resource::operation key.
package cache
