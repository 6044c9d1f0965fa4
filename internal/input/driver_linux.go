//go:build linux && cgo

package input

/*
#cgo pkg-config: gtk+-3.0 x11 xtst
#include <gtk/gtk.h>
#include <X11/Xlib.h>
#include <X11/extensions/XTest.h>
#include <X11/keysym.h>
#include <stdlib.h>

static int gtk_ready = 0;

static int ensure_gtk() {
    if (!gtk_ready) {
        if (!gtk_init_check(NULL, NULL)) {
            return 0;
        }
        gtk_ready = 1;
    }
    return 1;
}

static char* clipboard_read() {
    if (!ensure_gtk()) {
        return NULL;
    }
    GtkClipboard *cb = gtk_clipboard_get(GDK_SELECTION_CLIPBOARD);
    if (cb == NULL) {
        return strdup("");
    }
    gchar *text = gtk_clipboard_wait_for_text(cb);
    if (text == NULL) {
        return strdup("");
    }
    char *result = strdup(text);
    g_free(text);
    return result;
}

static int clipboard_write(const char *text) {
    if (!ensure_gtk()) {
        return -1;
    }
    GtkClipboard *cb = gtk_clipboard_get(GDK_SELECTION_CLIPBOARD);
    if (cb == NULL) {
        return -1;
    }
    gtk_clipboard_set_text(cb, text, -1);
    gtk_clipboard_store(cb);
    return 0;
}

// send_chord fakes Ctrl+<keysym> through the XTest extension. Returns -1
// when no X display is reachable (pure Wayland session).
static int send_chord(unsigned long keysym) {
    Display *dpy = XOpenDisplay(NULL);
    if (dpy == NULL) {
        return -1;
    }

    int event_base, error_base, major, minor;
    if (!XTestQueryExtension(dpy, &event_base, &error_base, &major, &minor)) {
        XCloseDisplay(dpy);
        return -2;
    }

    KeyCode ctrl = XKeysymToKeycode(dpy, XK_Control_L);
    KeyCode key = XKeysymToKeycode(dpy, keysym);

    XTestFakeKeyEvent(dpy, ctrl, True, 0);
    XTestFakeKeyEvent(dpy, key, True, 0);
    XTestFakeKeyEvent(dpy, key, False, 0);
    XTestFakeKeyEvent(dpy, ctrl, False, 0);
    XFlush(dpy);

    XCloseDisplay(dpy);
    return 0;
}

static unsigned long keysym_c() { return XK_c; }
static unsigned long keysym_v() { return XK_v; }
*/
import "C"

import (
	"errors"
	"unsafe"
)

type x11Driver struct{}

func newPlatformDriver() (Driver, error) {
	return &x11Driver{}, nil
}

func (d *x11Driver) Name() string { return "x11" }

func (d *x11Driver) ReadClipboard() (string, error) {
	cstr := C.clipboard_read()
	if cstr == nil {
		return "", errors.New("input: no display available")
	}
	defer C.free(unsafe.Pointer(cstr))
	return C.GoString(cstr), nil
}

func (d *x11Driver) WriteClipboard(text string) error {
	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	if C.clipboard_write(ctext) != 0 {
		return errors.New("input: no display available")
	}
	return nil
}

func (d *x11Driver) TriggerCopy() error {
	return chordResult(C.send_chord(C.keysym_c()))
}

func (d *x11Driver) TriggerPaste() error {
	return chordResult(C.send_chord(C.keysym_v()))
}

func chordResult(rc C.int) error {
	switch rc {
	case 0:
		return nil
	case -2:
		// Display reachable but XTest disabled; treat as a permission
		// problem so the user gets an actionable message.
		return ErrPermissionDenied
	default:
		return errors.New("input: no display available")
	}
}
