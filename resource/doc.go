// Package resource provides typed clients for the marketplace REST resources.
//
// # Overview
//
// Every resource is declared once as a Definition: its name, base path, list
// scope tag and cache TTL. A generic Client[T] turns a Definition into query
// descriptors for the engine (reads) and mutation descriptors (writes), so
// callers never build cache keys, tags or URLs by hand.
//
// # Key Features
//
//   - **Type-safe results**: List, Get, Search and Me decode straight into the
//     model types
//   - **Tagged reads**: lists carry the resource tag (or the user's list scope
//     tag) plus one instance tag per item; single reads carry resource and
//     instance tags
//   - **Invalidating writes**: Create, Update, PatchStatus and Delete
//     invalidate the tags returned by Definition.MutationTags once the backend
//     acknowledged the write
//   - **Filtered lists**: FilterQuery and Selector run the server side filter
//     only while filters are active
//
// # Basic Usage
//
//	orders := resource.NewClient[model.Order](resource.Order, engine, httpClient)
//
//	list, err := orders.List(ctx)
//	order, err := orders.Get(ctx, "o-1")
//
//	// Invalidates "Order", "MyOrders" and "Order:o-1"
//	_, err = orders.PatchStatus(ctx, "o-1", "closed")
//
// # Long-lived Subscriptions
//
// List and Get close their handle after the result arrives. Screens that stay
// open run the descriptors themselves and watch the handle:
//
//	q := engine.Run(ctx, orders.MineQuery(ctx))
//	defer q.Close()
//	for {
//		select {
//		case <-q.Changed():
//			render(q.State())
//		case <-ctx.Done():
//			return
//		}
//	}
//
// # Paths
//
// Paths derive from the resource name in kebab-case plural form: LoadType is
// served under "/load-types". WithPath overrides it, as Location does with
// "/search".
//
// # Extra Tags
//
// WithCacheTags adds tags to every read issued with the returned context,
// which lets unrelated screens group their data for one invalidation:
//
//	ctx = resource.WithCacheTags(ctx, "Dictionaries")
//	types, _ := loadTypes.List(ctx)
//	engine.Invalidate(ctx, "Dictionaries")
package resource
