//go:build event_cachelinesize_128

package opt

// CacheLineSize_ forced to 128 bytes via the event_cachelinesize_128 build tag.
// Use: go build -tags=event_cachelinesize_128
const CacheLineSize_ = 128
