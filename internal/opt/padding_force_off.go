//go:build event_disable_padding

package opt

// FenceCell_ is a dedicated word hammered by full-fence RMW operations.
// Padding is force-disabled via the event_disable_padding build tag.
// Use: go build -tags=event_disable_padding
type FenceCell_ struct {
	C uintptr // Fence word, accessed atomically
}
