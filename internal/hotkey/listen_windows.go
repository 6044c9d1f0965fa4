//go:build windows

package hotkey

import (
	"context"
	"fmt"
	"runtime"
	"syscall"
	"unicode"
	"unsafe"
)

var (
	user32   = syscall.NewLazyDLL("user32.dll")
	kernel32 = syscall.NewLazyDLL("kernel32.dll")

	registerHotKey     = user32.NewProc("RegisterHotKey")
	unregisterHotKey   = user32.NewProc("UnregisterHotKey")
	getMessage         = user32.NewProc("GetMessageW")
	postThreadMessage  = user32.NewProc("PostThreadMessageW")
	getCurrentThreadID = kernel32.NewProc("GetCurrentThreadId")
)

const (
	modAlt      = 0x0001
	modControl  = 0x0002
	modShift    = 0x0004
	modWin      = 0x0008
	modNoRepeat = 0x4000

	wmHotkey = 0x0312
	wmQuit   = 0x0012

	hotkeyID = 1
)

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

func listen(ctx context.Context, binding Binding, fire func()) error {
	var modifiers uintptr = modNoRepeat
	if binding.Ctrl {
		modifiers |= modControl
	}
	if binding.Shift {
		modifiers |= modShift
	}
	if binding.Alt {
		modifiers |= modAlt
	}
	if binding.Meta {
		modifiers |= modWin
	}

	// Virtual-key codes for letters and digits are their uppercase ASCII
	// values.
	vk := uintptr(unicode.ToUpper(binding.Key))

	registered := make(chan error, 1)
	threadID := make(chan uintptr, 1)

	go func() {
		// RegisterHotKey binds to the calling thread's message queue.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		id, _, _ := getCurrentThreadID.Call()
		threadID <- id

		ret, _, lastErr := registerHotKey.Call(0, hotkeyID, modifiers, vk)
		if ret == 0 {
			registered <- fmt.Errorf("hotkey: RegisterHotKey failed: %v", lastErr)
			return
		}
		registered <- nil
		defer unregisterHotKey.Call(0, hotkeyID)

		var m msg
		for {
			ret, _, _ := getMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if int32(ret) <= 0 { // WM_QUIT or error
				return
			}
			if m.message == wmHotkey && m.wParam == hotkeyID {
				fire()
			}
		}
	}()

	id := <-threadID
	if err := <-registered; err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		postThreadMessage.Call(id, wmQuit, 0, 0)
	}()
	return nil
}
