//go:build event_enable_padding

package opt

import (
	"unsafe"
)

// FenceCell_ is a dedicated word hammered by full-fence RMW operations.
// Padding is force-enabled via the event_enable_padding build tag.
// Use: go build -tags=event_enable_padding
type FenceCell_ struct {
	C uintptr // Fence word, accessed atomically
	_ [(CacheLineSize_ - unsafe.Sizeof(struct {
		C uintptr
	}{})%CacheLineSize_) % CacheLineSize_]byte
}
