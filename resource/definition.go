package resource

import (
	"strings"
	"time"

	"github.com/jinzhu/inflection"

	"github.com/goliatone/go-freightsync/cache"
)

// Operation names used in cache keys.
const (
	OpList   = "list"
	OpMine   = "mine"
	OpFilter = "filter"
	OpGet    = "get"
	OpMe     = "me"
	OpSearch = "search"
	OpCreate = "create"
	OpUpdate = "update"
	OpStatus = "status"
	OpDelete = "delete"
)

// LocationTTL is how long unused location searches stay cached.
const LocationTTL = 300 * time.Second

// Definition declares a resource: its name, REST base path, list scope tag
// and cache TTL.
type Definition struct {
	Name string
	Path string
	// ScopeTag tags the current user's own list ("MyOrders") and is
	// invalidated by every mutation of the resource.
	ScopeTag cache.Tag
	TTL      time.Duration
}

// DefinitionOption customizes Define.
type DefinitionOption func(*Definition)

// WithPath overrides the derived base path.
func WithPath(path string) DefinitionOption {
	return func(d *Definition) {
		d.Path = "/" + strings.Trim(path, "/")
	}
}

// WithScopeTag sets the tag of the user's own list.
func WithScopeTag(tag cache.Tag) DefinitionOption {
	return func(d *Definition) {
		d.ScopeTag = tag
	}
}

// WithTTL sets how long unsubscribed results stay cached.
func WithTTL(ttl time.Duration) DefinitionOption {
	return func(d *Definition) {
		d.TTL = ttl
	}
}

// Define declares a resource. The base path is the kebab-case plural of the
// name: "LoadType" is served under "/load-types".
func Define(name string, opts ...DefinitionOption) Definition {
	d := Definition{
		Name: name,
		Path: "/" + inflection.Plural(toKebab(name)),
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Resources of the marketplace backend.
var (
	Order            = Define("Order", WithScopeTag("MyOrders"))
	Truck            = Define("Truck", WithScopeTag("MyTrucks"))
	Profile          = Define("Profile")
	LoadType         = Define("LoadType")
	LoadPackage      = Define("LoadPackage")
	TruckOption      = Define("TruckOption")
	TruckLoadType    = Define("TruckLoadType")
	TruckPricingType = Define("TruckPricingType")
	Location         = Define("Location", WithPath("/search"), WithTTL(LocationTTL))
)

// All returns every declared resource.
func All() []Definition {
	return []Definition{
		Order, Truck, Profile,
		LoadType, LoadPackage,
		TruckOption, TruckLoadType, TruckPricingType,
		Location,
	}
}

// Lookup finds a declared resource by name, case-insensitively.
func Lookup(name string) (Definition, bool) {
	for _, d := range All() {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Definition{}, false
}

// Tag returns the resource tag.
func (d Definition) Tag() cache.Tag {
	return cache.ResourceTag(d.Name)
}

// InstanceTag returns the tag of one instance.
func (d Definition) InstanceTag(id string) cache.Tag {
	return cache.InstanceTag(d.Name, id)
}

// ItemPath returns the path of one instance.
func (d Definition) ItemPath(id string) string {
	return d.Path + "/" + id
}

// MutationTags returns the tags a mutation invalidates: the resource tag, the
// scope tag if any and, for operations on an existing instance, its instance
// tag.
func (d Definition) MutationTags(operation, id string) []cache.Tag {
	tags := []cache.Tag{d.Tag()}
	if d.ScopeTag != "" {
		tags = append(tags, d.ScopeTag)
	}
	if id != "" && operation != OpCreate {
		tags = append(tags, d.InstanceTag(id))
	}
	return tags
}

// ListTags returns the tags of the user's own list.
func (d Definition) ListTags() []cache.Tag {
	if d.ScopeTag != "" {
		return []cache.Tag{d.ScopeTag}
	}
	return []cache.Tag{d.Tag()}
}
