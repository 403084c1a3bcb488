//go:build event_cachelinesize_64 && !event_cachelinesize_128

package opt

// CacheLineSize_ forced to 64 bytes via the event_cachelinesize_64 build tag.
// Use: go build -tags=event_cachelinesize_64
const CacheLineSize_ = 64
