//go:build windows

package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sys/windows"
)

const pipeBufferSize = 64 * 1024

// pipePath maps the configured socket path to a per-user named pipe.
func pipePath(socketPath string) string {
	username := os.Getenv("USERNAME")
	if username == "" {
		username = "default"
	}
	return fmt.Sprintf(`\\.\pipe\redraft-%s-%s`, username, filepath.Base(socketPath))
}

// listen returns a net.Listener over a Windows named pipe.
func listen(socketPath string) (net.Listener, error) {
	return &pipeListener{name: pipePath(socketPath)}, nil
}

// dial connects to a running daemon's pipe.
func dial(socketPath string, timeout time.Duration) (net.Conn, error) {
	name, err := windows.UTF16PtrFromString(pipePath(socketPath))
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		handle, err := windows.CreateFile(name,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0, nil, windows.OPEN_EXISTING, 0, 0)
		if err == nil {
			return &pipeConn{handle: handle, name: pipePath(socketPath)}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("connect to pipe: %w", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// pipeListener creates one pipe instance per Accept, the standard pattern
// for multi-client named pipe servers.
type pipeListener struct {
	name   string
	closed atomic.Bool
}

func (l *pipeListener) Accept() (net.Conn, error) {
	if l.closed.Load() {
		return nil, net.ErrClosed
	}

	name, err := windows.UTF16PtrFromString(l.name)
	if err != nil {
		return nil, err
	}

	handle, err := windows.CreateNamedPipe(name,
		windows.PIPE_ACCESS_DUPLEX,
		windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES,
		pipeBufferSize, pipeBufferSize,
		0, nil)
	if err != nil {
		return nil, fmt.Errorf("create pipe: %w", err)
	}

	if err := windows.ConnectNamedPipe(handle, nil); err != nil &&
		err != windows.ERROR_PIPE_CONNECTED {
		windows.CloseHandle(handle)
		if l.closed.Load() {
			return nil, net.ErrClosed
		}
		return nil, fmt.Errorf("connect pipe: %w", err)
	}

	return &pipeConn{handle: handle, name: l.name, server: true}, nil
}

func (l *pipeListener) Close() error {
	l.closed.Store(true)
	return nil
}

func (l *pipeListener) Addr() net.Addr {
	return pipeAddr(l.name)
}

// pipeConn adapts a pipe handle to net.Conn.
type pipeConn struct {
	handle windows.Handle
	name   string
	server bool
}

func (c *pipeConn) Read(b []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(c.handle, b, &n, nil)
	return int(n), err
}

func (c *pipeConn) Write(b []byte) (int, error) {
	var n uint32
	err := windows.WriteFile(c.handle, b, &n, nil)
	return int(n), err
}

func (c *pipeConn) Close() error {
	if c.server {
		windows.DisconnectNamedPipe(c.handle)
	}
	return windows.CloseHandle(c.handle)
}

func (c *pipeConn) LocalAddr() net.Addr  { return pipeAddr(c.name) }
func (c *pipeConn) RemoteAddr() net.Addr { return pipeAddr(c.name) }

// Deadlines are not supported on blocking pipe handles.
func (c *pipeConn) SetDeadline(t time.Time) error      { return nil }
func (c *pipeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *pipeConn) SetWriteDeadline(t time.Time) error { return nil }

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }
