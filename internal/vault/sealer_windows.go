//go:build windows

package vault

import (
	"github.com/google/go-tpm/tpm2/transport"
)

func newPlatformSealer() Sealer {
	if s := newTPMSealer(); s != nil {
		return s
	}
	return nil
}

// tpmUsable probes the TPM through the Windows TPM Base Services broker.
func tpmUsable() bool {
	t, err := transport.OpenTPM()
	if err != nil {
		return false
	}
	t.Close()
	return true
}

func openTPMTransport() (transport.TPMCloser, error) {
	return transport.OpenTPM()
}
