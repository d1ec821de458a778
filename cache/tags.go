package cache

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// TagIndex is the reverse index from a tag to the cache keys whose last
// successful result carried it.
type TagIndex struct {
	tags *xsync.MapOf[Tag, *xsync.MapOf[string, struct{}]]
}

// NewTagIndex creates an empty index.
func NewTagIndex() *TagIndex {
	return &TagIndex{tags: xsync.NewMapOf[Tag, *xsync.MapOf[string, struct{}]]()}
}

// Register adds key to the key set of every tag.
func (i *TagIndex) Register(key string, tags ...Tag) {
	for _, tag := range DedupeTags(tags) {
		keys, _ := i.tags.LoadOrStore(tag, xsync.NewMapOf[string, struct{}]())
		keys.Store(key, struct{}{})
	}
}

// Keys returns the sorted union of keys registered under any of tags.
func (i *TagIndex) Keys(tags ...Tag) []string {
	seen := make(map[string]struct{})
	for _, tag := range tags {
		keys, ok := i.tags.Load(tag)
		if !ok {
			continue
		}
		keys.Range(func(key string, _ struct{}) bool {
			seen[key] = struct{}{}
			return true
		})
	}

	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Tags returns the sorted tags key is registered under.
func (i *TagIndex) Tags(key string) []Tag {
	var out []Tag
	i.tags.Range(func(tag Tag, keys *xsync.MapOf[string, struct{}]) bool {
		if _, ok := keys.Load(key); ok {
			out = append(out, tag)
		}
		return true
	})
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// Forget removes key from every tag set. Empty sets stay in place so a
// concurrent Register never writes into a detached set.
func (i *TagIndex) Forget(key string) {
	i.tags.Range(func(_ Tag, keys *xsync.MapOf[string, struct{}]) bool {
		keys.Delete(key)
		return true
	})
}

// Len returns the number of tags holding at least one key.
func (i *TagIndex) Len() int {
	n := 0
	i.tags.Range(func(_ Tag, keys *xsync.MapOf[string, struct{}]) bool {
		if keys.Size() > 0 {
			n++
		}
		return true
	})
	return n
}

// DedupeTags drops empty and repeated tags, keeping first-seen order.
func DedupeTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[Tag]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
