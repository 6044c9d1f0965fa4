//go:build ((darwin || linux) && !cgo) || !(darwin || linux || windows)

package input

func newPlatformDriver() (Driver, error) {
	return nil, ErrPlatformUnsupported
}
