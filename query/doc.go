// Package query executes read and write descriptors against a cache.Store.
//
// # Reads
//
// Engine.Run turns a Descriptor into a cache key, subscribes the returned
// Query to it and fetches when the entry is missing, idle, stale or errored.
// A fresh success is served from the store and a running fetch is shared, so
// any number of callers asking for the same key at once cause one network
// call:
//
//	q := engine.Run(ctx, query.Descriptor{
//		Resource:  "Order",
//		Operation: "list",
//		Fetch:     fetchOrders,
//	})
//	defer q.Close()
//
//	entry, err := q.Wait(ctx)
//
// Fetches run detached from the caller's cancellation; cancelling ctx only
// stops the caller's Wait. Failed fetches are stored as error entries and are
// not retried until someone runs or refetches the key again.
//
// # Writes
//
// Engine.Mutate executes a MutationDescriptor and, only when it succeeds,
// invalidates its tags. Invalidated entries with subscribers go stale and are
// refetched; those without subscribers are evicted. A flight that was already
// running when its tags were invalidated lands stale and is fetched again,
// unless it was itself started by an invalidation.
//
// # Lists with filters
//
// Selector implements the filtered-or-all pattern of list screens. Exactly
// one of its two queries is fetched for any FilterState; toggling filters just
// runs the other key through the normal cache-or-fetch path.
package query
