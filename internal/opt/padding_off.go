//go:build (amd64 || 386 || arm || mips || mipsle || wasm) && !event_disable_padding && !event_enable_padding

package opt

// FenceCell_ is a dedicated word hammered by full-fence RMW operations.
// Padding is disabled by default for:
// - amd64
// - 32-bit architectures (386, arm, mips, mipsle, wasm)
type FenceCell_ struct {
	C uintptr // Fence word, accessed atomically
}
