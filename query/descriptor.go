package query

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-freightsync/cache"
)

// FetchFunc performs the network call behind a descriptor.
type FetchFunc func(ctx context.Context) (any, error)

// Descriptor identifies a read request and carries what the engine needs to
// execute it. Resource, Operation and Params make up the cache key; the other
// fields do not take part in identity.
type Descriptor struct {
	Resource  string
	Operation string
	Params    any

	// Tags overrides the default provided tags.
	Tags []cache.Tag
	// ResultTags adds tags derived from the fetched data, e.g. one instance
	// tag per list item.
	ResultTags func(data any) []cache.Tag
	// TTL is how long the result survives without subscribers.
	TTL   time.Duration
	Fetch FetchFunc
}

// ProvidedTags returns the tags registered for the descriptor's result. By
// default that is the resource tag, plus the instance tag when Params carry
// an "id".
func (d Descriptor) ProvidedTags(data any) []cache.Tag {
	tags := d.baseTags()
	if d.ResultTags != nil {
		tags = append(tags, d.ResultTags(data)...)
	}
	return cache.DedupeTags(tags)
}

// baseTags are the tags known before the result is.
func (d Descriptor) baseTags() []cache.Tag {
	if len(d.Tags) > 0 {
		return append([]cache.Tag(nil), d.Tags...)
	}
	tags := []cache.Tag{cache.ResourceTag(d.Resource)}
	if id := ParamID(d.Params); id != "" {
		tags = append(tags, cache.InstanceTag(d.Resource, id))
	}
	return tags
}

func (d Descriptor) String() string {
	return d.Resource + cache.KeySeparator + d.Operation
}

// ParamID extracts the "id" parameter from map shaped params.
func ParamID(params any) string {
	var v any
	switch p := params.(type) {
	case map[string]any:
		v = p["id"]
	case map[string]string:
		v = p["id"]
	default:
		return ""
	}

	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
