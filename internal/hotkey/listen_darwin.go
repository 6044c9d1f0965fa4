//go:build darwin && cgo

package hotkey

/*
#cgo LDFLAGS: -framework Carbon

#include <Carbon/Carbon.h>

extern void redraftHotkeyFired(void);

static OSStatus hotkey_handler(EventHandlerCallRef next, EventRef event, void *data) {
    redraftHotkeyFired();
    return noErr;
}

static OSStatus register_hotkey(UInt32 keycode, UInt32 modifiers) {
    EventTypeSpec spec = { kEventClassKeyboard, kEventHotKeyPressed };
    OSStatus status = InstallEventHandler(GetEventDispatcherTarget(),
        NewEventHandlerUPP(hotkey_handler), 1, &spec, NULL, NULL);
    if (status != noErr) {
        return status;
    }

    EventHotKeyID id = { .signature = 'rdft', .id = 1 };
    EventHotKeyRef ref;
    return RegisterEventHotKey(keycode, modifiers, id,
        GetEventDispatcherTarget(), 0, &ref);
}

static void run_hotkey_loop() {
    RunApplicationEventLoop();
}

static void quit_hotkey_loop() {
    QuitApplicationEventLoop();
}
*/
import "C"

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Carbon modifier masks.
const (
	carbonCmd     = 0x0100
	carbonShift   = 0x0200
	carbonOption  = 0x0800
	carbonControl = 0x1000
)

// ANSI virtual keycodes for the keys ParseBinding accepts.
var darwinKeycodes = map[rune]uint32{
	'a': 0, 's': 1, 'd': 2, 'f': 3, 'h': 4, 'g': 5, 'z': 6, 'x': 7,
	'c': 8, 'v': 9, 'b': 11, 'q': 12, 'w': 13, 'e': 14, 'r': 15,
	'y': 16, 't': 17, '1': 18, '2': 19, '3': 20, '4': 21, '6': 22,
	'5': 23, '9': 25, '7': 26, '8': 28, '0': 29, 'o': 31, 'u': 32,
	'i': 34, 'p': 35, 'l': 37, 'j': 38, 'k': 40, 'n': 45, 'm': 46,
}

var (
	fireMu   sync.Mutex
	fireFunc func()
)

//export redraftHotkeyFired
func redraftHotkeyFired() {
	fireMu.Lock()
	f := fireFunc
	fireMu.Unlock()
	if f != nil {
		f()
	}
}

func listen(ctx context.Context, binding Binding, fire func()) error {
	keycode, ok := darwinKeycodes[binding.Key]
	if !ok {
		return fmt.Errorf("hotkey: no macOS keycode for %q", binding.Key)
	}

	var modifiers uint32
	if binding.Ctrl {
		modifiers |= carbonControl
	}
	if binding.Shift {
		modifiers |= carbonShift
	}
	if binding.Alt {
		modifiers |= carbonOption
	}
	if binding.Meta {
		modifiers |= carbonCmd
	}

	fireMu.Lock()
	fireFunc = fire
	fireMu.Unlock()

	registered := make(chan error, 1)
	go func() {
		// Carbon's event loop is thread-affine.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if status := C.register_hotkey(C.UInt32(keycode), C.UInt32(modifiers)); status != 0 {
			registered <- fmt.Errorf("hotkey: RegisterEventHotKey status %d", int(status))
			return
		}
		registered <- nil
		C.run_hotkey_loop()
	}()

	if err := <-registered; err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		C.quit_hotkey_loop()
	}()
	return nil
}
