//go:build linux

package vault

import (
	"errors"
	"os"

	"github.com/google/go-tpm/tpm2/transport"
)

// TPM device paths in order of preference. The resource manager multiplexes
// access; the raw device is the fallback.
var tpmDevicePaths = []string{
	"/dev/tpmrm0",
	"/dev/tpm0",
}

func newPlatformSealer() Sealer {
	if s := newTPMSealer(); s != nil {
		return s
	}
	return nil
}

func tpmUsable() bool {
	return tpmDevicePath() != ""
}

func tpmDevicePath() string {
	for _, path := range tpmDevicePaths {
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err == nil {
			f.Close()
			return path
		}
	}
	return ""
}

func openTPMTransport() (transport.TPMCloser, error) {
	path := tpmDevicePath()
	if path == "" {
		return nil, errors.New("no TPM device")
	}
	return transport.OpenTPM(path)
}
