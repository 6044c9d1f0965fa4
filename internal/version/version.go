// Package version holds build identity used in User-Agent strings and the
// IPC handshake.
package version

import (
	"fmt"
	"runtime"
)

const (
	// Name is the product name.
	Name = "redraftd"

	// Version is the semantic version of this build.
	Version = "1.0.0"
)

// UserAgent returns the client-identifying header value sent to the rewrite
// service: name, version and platform.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s)", Name, Version, runtime.GOOS)
}
