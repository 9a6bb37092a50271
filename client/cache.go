package client

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cppla/cohort/content"
)

const (
	defaultCacheSize = 512
	defaultCacheTTL  = 2 * time.Minute
)

// Key identifies one cached query: an entity detail, its attachments, or a listing with its
// parameters.
type Key struct {
	Type   string
	ID     string
	Params string
}

func DetailKey(kind content.Kind, id string) Key {
	return Key{Type: string(kind), ID: id}
}

func AttachmentsKey(parent content.ParentRef) Key {
	return Key{Type: "attachments:" + string(parent.Kind), ID: parent.ID}
}

// ListingKey keys a listing: "posts" (ID empty), "comments" (ID = post) or "replies" (ID = comment).
func ListingKey(listing, containerID, params string) Key {
	return Key{Type: listing, ID: containerID, Params: params}
}

type cacheEntry struct {
	value    any
	storedAt time.Time
}

// QueryCache holds recent read results. Writes invalidate only the keys they affect.
// A nil *QueryCache caches nothing.
type QueryCache struct {
	lru *lru.Cache[Key, cacheEntry]
	ttl time.Duration
	now func() time.Time
}

func NewQueryCache(size int, ttl time.Duration) *QueryCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	c, err := lru.New[Key, cacheEntry](size)
	if err != nil {
		panic(err)
	}
	return &QueryCache{lru: c, ttl: ttl, now: time.Now}
}

func (c *QueryCache) Get(key Key) (any, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *QueryCache) Add(key Key, value any) {
	if c == nil {
		return
	}
	c.lru.Add(key, cacheEntry{value: value, storedAt: c.now()})
}

func (c *QueryCache) Remove(keys ...Key) {
	if c == nil {
		return
	}
	for _, k := range keys {
		c.lru.Remove(k)
	}
}

// RemoveListing drops every page of one listing regardless of its parameters.
func (c *QueryCache) RemoveListing(listing, containerID string) {
	if c == nil {
		return
	}
	for _, k := range c.lru.Keys() {
		if k.Type == listing && k.ID == containerID {
			c.lru.Remove(k)
		}
	}
}

func (c *QueryCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// InvalidateAfterSave drops what a write to e can have changed: its detail, its attachments and
// the listing that contains it (posts, the post's comments, or the parent comment's replies).
func (c *QueryCache) InvalidateAfterSave(e content.Entity) {
	if c == nil {
		return
	}
	c.Remove(DetailKey(e.Kind, e.ID), AttachmentsKey(e.Ref()))
	switch {
	case e.Kind == content.KindPost:
		c.RemoveListing("posts", "")
	case e.ParentID != "":
		c.RemoveListing("replies", e.ParentID)
	default:
		c.RemoveListing("comments", e.PostID)
	}
}
