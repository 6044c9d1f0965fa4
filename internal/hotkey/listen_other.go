//go:build (darwin && !cgo) || !(darwin || linux || windows)

package hotkey

import "context"

func listen(ctx context.Context, binding Binding, fire func()) error {
	return ErrUnsupported
}
