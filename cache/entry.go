package cache

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a cache entry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	// StatusStale marks an entry whose data is still displayable but known
	// to be outdated, pending refetch.
	StatusStale Status = "stale"
)

// Settled reports whether no fetch is pending for the status.
func (s Status) Settled() bool {
	return s == StatusSuccess || s == StatusError || s == StatusIdle
}

// Tag is an invalidation label. "Order" targets every list of orders,
// "Order:42" targets a single instance.
type Tag string

// TagSeparator separates the resource type from the id in instance tags.
const TagSeparator = ":"

// ResourceTag returns the tag covering every list of resourceType.
func ResourceTag(resourceType string) Tag {
	return Tag(resourceType)
}

// InstanceTag returns the tag of a single resource instance.
func InstanceTag(resourceType, id string) Tag {
	return Tag(resourceType + TagSeparator + id)
}

// Split returns the resource type and the id of the tag. id is empty for
// resource tags.
func (t Tag) Split() (resourceType, id string) {
	resourceType, id, _ = strings.Cut(string(t), TagSeparator)
	return resourceType, id
}

// Entry is a snapshot of a cached query. Snapshots are values: changing one
// never changes the store.
type Entry struct {
	Key    string
	Status Status
	Data   any
	// HasData is true when Data holds a payload from a successful fetch,
	// including stale and errored entries that kept their last result.
	HasData            bool
	Err                error
	SubscriberCount    int
	Tags               []Tag
	LastFetchStartedAt time.Time
	// TTL is how long the entry survives without subscribers. Zero keeps it
	// until invalidated.
	TTL time.Duration
	// Invalidated is set when tags of the entry were invalidated while its
	// fetch was still in flight.
	Invalidated bool
}

// Fresh reports whether the entry can be served without a network call.
func (e Entry) Fresh() bool {
	return e.Status == StatusSuccess && !e.Invalidated
}
