//go:build windows

package input

import (
	"errors"
	"syscall"
	"time"
	"unsafe"
)

var (
	user32   = syscall.NewLazyDLL("user32.dll")
	kernel32 = syscall.NewLazyDLL("kernel32.dll")

	openClipboard    = user32.NewProc("OpenClipboard")
	closeClipboard   = user32.NewProc("CloseClipboard")
	emptyClipboard   = user32.NewProc("EmptyClipboard")
	getClipboardData = user32.NewProc("GetClipboardData")
	setClipboardData = user32.NewProc("SetClipboardData")
	sendInput        = user32.NewProc("SendInput")

	globalAlloc  = kernel32.NewProc("GlobalAlloc")
	globalFree   = kernel32.NewProc("GlobalFree")
	globalLock   = kernel32.NewProc("GlobalLock")
	globalUnlock = kernel32.NewProc("GlobalUnlock")
)

const (
	cfUnicodeText = 13
	gmemMoveable  = 0x0002

	inputKeyboard   = 1
	keyeventfKeyup  = 0x0002
	vkControl       = 0x11
	vkC             = 0x43
	vkV             = 0x56
)

// keyboardInput mirrors the Win32 INPUT struct with a KEYBDINPUT payload,
// padded to the union size SendInput expects on amd64.
type keyboardInput struct {
	inputType uint32
	_         uint32 // struct alignment before the union
	wVk       uint16
	wScan     uint16
	dwFlags   uint32
	time      uint32
	extraInfo uintptr
	_         [8]byte // pad to MOUSEINPUT size
}

type win32Driver struct{}

func newPlatformDriver() (Driver, error) {
	return &win32Driver{}, nil
}

func (d *win32Driver) Name() string { return "win32" }

// withClipboard opens the clipboard with a short retry loop: another process
// holding it open makes OpenClipboard fail transiently.
func withClipboard(fn func() error) error {
	var opened bool
	for attempt := 0; attempt < 5; attempt++ {
		ret, _, _ := openClipboard.Call(0)
		if ret != 0 {
			opened = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !opened {
		return errors.New("input: could not open clipboard")
	}
	defer closeClipboard.Call()
	return fn()
}

func (d *win32Driver) ReadClipboard() (string, error) {
	var text string
	err := withClipboard(func() error {
		handle, _, _ := getClipboardData.Call(cfUnicodeText)
		if handle == 0 {
			return nil // no text on the clipboard
		}

		ptr, _, _ := globalLock.Call(handle)
		if ptr == 0 {
			return nil
		}
		defer globalUnlock.Call(handle)

		var runes []uint16
		for i := 0; ; i++ {
			ch := *(*uint16)(unsafe.Pointer(ptr + uintptr(i*2)))
			if ch == 0 {
				break
			}
			runes = append(runes, ch)
		}
		text = syscall.UTF16ToString(runes)
		return nil
	})
	return text, err
}

func (d *win32Driver) WriteClipboard(text string) error {
	utf16, err := syscall.UTF16FromString(text)
	if err != nil {
		return err
	}

	return withClipboard(func() error {
		if ret, _, _ := emptyClipboard.Call(); ret == 0 {
			return errors.New("input: EmptyClipboard failed")
		}

		size := uintptr(len(utf16) * 2)
		handle, _, _ := globalAlloc.Call(gmemMoveable, size)
		if handle == 0 {
			return errors.New("input: GlobalAlloc failed")
		}

		ptr, _, _ := globalLock.Call(handle)
		if ptr == 0 {
			globalFree.Call(handle)
			return errors.New("input: GlobalLock failed")
		}
		for i, ch := range utf16 {
			*(*uint16)(unsafe.Pointer(ptr + uintptr(i*2))) = ch
		}
		globalUnlock.Call(handle)

		// The system owns the handle after a successful SetClipboardData.
		if ret, _, _ := setClipboardData.Call(cfUnicodeText, handle); ret == 0 {
			globalFree.Call(handle)
			return errors.New("input: SetClipboardData failed")
		}
		return nil
	})
}

func (d *win32Driver) TriggerCopy() error {
	return sendChord(vkC)
}

func (d *win32Driver) TriggerPaste() error {
	return sendChord(vkV)
}

// sendChord injects Ctrl down, key down, key up, Ctrl up in one SendInput
// call so no real keystroke can interleave.
func sendChord(vk uint16) error {
	events := []keyboardInput{
		{inputType: inputKeyboard, wVk: vkControl},
		{inputType: inputKeyboard, wVk: vk},
		{inputType: inputKeyboard, wVk: vk, dwFlags: keyeventfKeyup},
		{inputType: inputKeyboard, wVk: vkControl, dwFlags: keyeventfKeyup},
	}

	n, _, _ := sendInput.Call(
		uintptr(len(events)),
		uintptr(unsafe.Pointer(&events[0])),
		unsafe.Sizeof(events[0]),
	)
	if int(n) != len(events) {
		// SendInput is blocked by UIPI when the foreground window is
		// elevated above us.
		return ErrPermissionDenied
	}
	return nil
}
