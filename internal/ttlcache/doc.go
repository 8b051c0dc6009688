// Package ttlcache provides a small thread-safe value cache with a time to
// live and a size cap. Entries are evicted oldest first when the cap is hit
// and swept by a background goroutine once they expire.
//
// The news handler uses it to keep feed results for a few minutes so a
// burst of headline questions costs one upstream request.
package ttlcache
