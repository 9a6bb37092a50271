package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// writes drop their keys; the ttl only bounds a missed delete
	defaultCacheTTL = time.Hour

	cachePrefixPosts    = "cache:posts:"
	cachePrefixContent  = "cache:content:"
	cachePrefixComments = "cache:comments:"
	cachePrefixReplies  = "cache:replies:"
	cachePrefixAttach   = "cache:attachments:"
)

// CacheKeyPostList identifies one page of the post listing.
func CacheKeyPostList(category string, userID uint, limit, offset int) string {
	return fmt.Sprintf("%scat=%s:user=%d:l=%d:o=%d", cachePrefixPosts, category, userID, limit, offset)
}

// CacheKeyContent identifies the detail view of a post or comment.
func CacheKeyContent(kind, id string) string {
	return cachePrefixContent + kind + ":" + id
}

// CacheKeyComments identifies one page of top-level comments under a post.
func CacheKeyComments(postID string, limit, offset int) string {
	return fmt.Sprintf("%s%s:l=%d:o=%d", cachePrefixComments, postID, limit, offset)
}

// CacheKeyReplies identifies the replies listing under a comment.
func CacheKeyReplies(commentID string) string {
	return cachePrefixReplies + commentID
}

// CacheKeyAttachments identifies the attachment listing of a parent.
func CacheKeyAttachments(kind, id string) string {
	return cachePrefixAttach + kind + ":" + id
}

// InvalidatePostWrite drops the keys a post write can stale: its detail, attachments and all post listings.
func InvalidatePostWrite(postID string) {
	CacheDelete(CacheKeyContent("post", postID), CacheKeyAttachments("post", postID))
	InvalidateByPrefix(cachePrefixPosts)
}

// InvalidateCommentWrite drops the comment detail and the single listing that contains it.
// Top-level comments live in their post's comment pages, replies in the parent's reply list.
func InvalidateCommentWrite(commentID, postID, parentID string) {
	CacheDelete(CacheKeyContent("comment", commentID), CacheKeyAttachments("comment", commentID))
	if parentID != "" {
		CacheDelete(CacheKeyReplies(parentID))
		return
	}
	InvalidatePostComments(postID)
}

// InvalidatePostComments drops every cached comment page of a post.
func InvalidatePostComments(postID string) {
	InvalidateByPrefix(cachePrefixComments + postID + ":")
}

// CacheGetBytes returns cached bytes for a key from Redis.
func CacheGetBytes(key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		// debug: log miss or error once per call
		if Sugar != nil {
			Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// CacheGetJSON decodes a cached JSON value into out. A decode failure counts as a miss.
func CacheGetJSON(key string, out interface{}) bool {
	b, ok := CacheGetBytes(key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, out) == nil
}

// CacheSetBytes stores bytes with default TTL.
func CacheSetBytes(key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		if Sugar != nil {
			Sugar.Warnf("cache set failed key=%s err=%v", key, err)
		}
	}
}

// CacheSetJSON marshals v and stores JSON bytes.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	CacheSetBytes(key, b, ttl)
}

// CacheDelete removes exact keys.
func CacheDelete(keys ...string) {
	rc := GetRedis()
	if rc == nil || len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Del(ctx, keys...).Err(); err != nil && Sugar != nil {
		Sugar.Warnf("cache delete failed keys=%v err=%v", keys, err)
	}
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func InvalidateByPrefix(prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			break
		}
		cursor = cur
		if len(keys) > 0 {
			// pipeline delete
			pipe := rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			break
		}
	}
}
