//go:build darwin && cgo

package input

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa -framework ApplicationServices

#import <Cocoa/Cocoa.h>
#import <ApplicationServices/ApplicationServices.h>
#import <dispatch/dispatch.h>

// NSPasteboard must be touched on the main thread; dispatch_sync avoids the
// concurrent-enumeration crash AppKit throws otherwise.

static char* pasteboard_read() {
    __block char *result = NULL;
    void (^read)(void) = ^{
        @autoreleasepool {
            NSPasteboard *pb = [NSPasteboard generalPasteboard];
            NSString *text = [pb stringForType:NSPasteboardTypeString];
            if (text != nil) {
                result = strdup([text UTF8String]);
            }
        }
    };
    if ([NSThread isMainThread]) {
        read();
    } else {
        dispatch_sync(dispatch_get_main_queue(), read);
    }
    return result ? result : strdup("");
}

static void pasteboard_write(const char *text) {
    NSString *str = [NSString stringWithUTF8String:text];
    void (^write)(void) = ^{
        @autoreleasepool {
            NSPasteboard *pb = [NSPasteboard generalPasteboard];
            [pb clearContents];
            [pb setString:str forType:NSPasteboardTypeString];
        }
    };
    if ([NSThread isMainThread]) {
        write();
    } else {
        dispatch_sync(dispatch_get_main_queue(), write);
    }
}

static int ax_trusted() {
    return AXIsProcessTrusted() ? 1 : 0;
}

// post_chord posts Cmd+<keycode> down/up to the session event tap. Virtual
// keycodes: kVK_ANSI_C = 8, kVK_ANSI_V = 9.
static void post_chord(CGKeyCode keycode) {
    CGEventSourceRef source = CGEventSourceCreate(kCGEventSourceStateCombinedSessionState);

    CGEventRef down = CGEventCreateKeyboardEvent(source, keycode, true);
    CGEventSetFlags(down, kCGEventFlagMaskCommand);
    CGEventPost(kCGHIDEventTap, down);
    CFRelease(down);

    CGEventRef up = CGEventCreateKeyboardEvent(source, keycode, false);
    CGEventSetFlags(up, kCGEventFlagMaskCommand);
    CGEventPost(kCGHIDEventTap, up);
    CFRelease(up);

    if (source != NULL) {
        CFRelease(source);
    }
}
*/
import "C"

import "unsafe"

const (
	vkANSIC = 8
	vkANSIV = 9
)

type cocoaDriver struct{}

func newPlatformDriver() (Driver, error) {
	return &cocoaDriver{}, nil
}

func (d *cocoaDriver) Name() string { return "cocoa" }

func (d *cocoaDriver) ReadClipboard() (string, error) {
	cstr := C.pasteboard_read()
	text := C.GoString(cstr)
	C.free(unsafe.Pointer(cstr))
	return text, nil
}

func (d *cocoaDriver) WriteClipboard(text string) error {
	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	C.pasteboard_write(ctext)
	return nil
}

func (d *cocoaDriver) TriggerCopy() error {
	return d.postChord(vkANSIC)
}

func (d *cocoaDriver) TriggerPaste() error {
	return d.postChord(vkANSIV)
}

func (d *cocoaDriver) postChord(keycode int) error {
	if C.ax_trusted() == 0 {
		return ErrPermissionDenied
	}
	C.post_chord(C.CGKeyCode(keycode))
	return nil
}
