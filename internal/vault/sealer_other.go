//go:build (darwin && !cgo) || (!darwin && !linux && !windows)

package vault

// No platform key backend here; SelectSealer falls through to the software
// sealer (or plaintext when configured "none").
func newPlatformSealer() Sealer {
	return nil
}
