//go:build darwin && cgo

package vault

/*
#cgo LDFLAGS: -framework Foundation -framework Security

#include <stdlib.h>
#include <string.h>
#include <Security/Security.h>

// Keychain access for the vault master key. The key is a generic password
// item scoped to the current user's login keychain; macOS encrypts it with
// the user's credentials, which is the OS encryption-at-rest facility.

static const char *kServiceName = "app.redraft.vault";
static const char *kAccountName = "master-key";

static CFDictionaryRef make_query(int with_data) {
    CFStringRef service = CFStringCreateWithCString(NULL, kServiceName, kCFStringEncodingUTF8);
    CFStringRef account = CFStringCreateWithCString(NULL, kAccountName, kCFStringEncodingUTF8);

    CFMutableDictionaryRef query = CFDictionaryCreateMutable(NULL, 0,
        &kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
    CFDictionarySetValue(query, kSecClass, kSecClassGenericPassword);
    CFDictionarySetValue(query, kSecAttrService, service);
    CFDictionarySetValue(query, kSecAttrAccount, account);
    if (with_data) {
        CFDictionarySetValue(query, kSecReturnData, kCFBooleanTrue);
        CFDictionarySetValue(query, kSecMatchLimit, kSecMatchLimitOne);
    }
    CFRelease(service);
    CFRelease(account);
    return query;
}

// keychain_get_key copies the stored key into out (out_len bytes).
// Returns the key length, 0 if not found, -1 on error.
int keychain_get_key(unsigned char *out, int out_len) {
    CFDictionaryRef query = make_query(1);
    CFTypeRef result = NULL;
    OSStatus status = SecItemCopyMatching(query, &result);
    CFRelease(query);

    if (status == errSecItemNotFound) {
        return 0;
    }
    if (status != errSecSuccess || result == NULL) {
        return -1;
    }

    CFDataRef data = (CFDataRef)result;
    CFIndex len = CFDataGetLength(data);
    if (len > out_len) {
        CFRelease(result);
        return -1;
    }
    memcpy(out, CFDataGetBytePtr(data), len);
    CFRelease(result);
    return (int)len;
}

// keychain_store_key stores the key, replacing any previous item.
// Returns 0 on success, -1 on error.
int keychain_store_key(const unsigned char *key, int key_len) {
    CFDictionaryRef delete_query = make_query(0);
    SecItemDelete(delete_query);
    CFRelease(delete_query);

    CFDataRef data = CFDataCreate(NULL, key, key_len);
    CFDictionaryRef base = make_query(0);
    CFMutableDictionaryRef attrs = CFDictionaryCreateMutableCopy(NULL, 0, base);
    CFRelease(base);
    CFDictionarySetValue(attrs, kSecValueData, data);
    CFDictionarySetValue(attrs, kSecAttrAccessible, kSecAttrAccessibleWhenUnlocked);

    OSStatus status = SecItemAdd(attrs, NULL);
    CFRelease(attrs);
    CFRelease(data);

    return status == errSecSuccess ? 0 : -1;
}
*/
import "C"

import (
	"errors"
	"sync"
	"unsafe"

	"redraftd/internal/security"
)

// keychainSealer stores the vault master key in the user's login keychain.
type keychainSealer struct {
	mu  sync.Mutex
	key []byte
}

func newPlatformSealer() Sealer {
	return &keychainSealer{}
}

func (s *keychainSealer) Name() string { return "keychain" }

func (s *keychainSealer) MasterKey() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		return s.key, nil
	}

	buf := make([]byte, security.RecommendedKeySize)
	n := C.keychain_get_key((*C.uchar)(unsafe.Pointer(&buf[0])), C.int(len(buf)))
	switch {
	case n == C.int(security.RecommendedKeySize):
		s.key = buf
		return s.key, nil
	case n < 0:
		return nil, errors.New("vault: keychain read failed")
	}

	// Not found (or wrong size from an older build): mint a new key.
	key, err := security.GenerateKey(security.RecommendedKeySize)
	if err != nil {
		return nil, err
	}
	if C.keychain_store_key((*C.uchar)(unsafe.Pointer(&key[0])), C.int(len(key))) != 0 {
		return nil, errors.New("vault: keychain write failed")
	}

	s.key = key
	return s.key, nil
}
