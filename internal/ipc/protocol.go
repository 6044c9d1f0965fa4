// Package ipc connects the redraftd daemon to its clients: the redraftctl
// CLI and the tray UI. Requests follow a framed request/response pattern;
// subscribed clients additionally receive the notification event stream.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"redraftd/internal/notify"
)

// Protocol identity.
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x52495043 // "RIPC"
)

// MessageType identifies a frame.
type MessageType uint16

const (
	// Control (0x00xx)
	MsgPing  MessageType = 0x0001
	MsgPong  MessageType = 0x0002
	MsgError MessageType = 0x0005

	// Status (0x01xx)
	MsgStatus     MessageType = 0x0100
	MsgStatusResp MessageType = 0x0101

	// Auth (0x02xx)
	MsgLogin        MessageType = 0x0200
	MsgLoginResp    MessageType = 0x0201
	MsgLogout       MessageType = 0x0202
	MsgLogoutResp   MessageType = 0x0203
	MsgDeepLink     MessageType = 0x0204
	MsgDeepLinkResp MessageType = 0x0205

	// Settings (0x03xx)
	MsgSetTone            MessageType = 0x0300
	MsgSetToneResp        MessageType = 0x0301
	MsgToggleShortcut     MessageType = 0x0302
	MsgToggleShortcutResp MessageType = 0x0303

	// Event streaming (0x04xx)
	MsgSubscribe     MessageType = 0x0400
	MsgSubscribeResp MessageType = 0x0401
	MsgEvent         MessageType = 0x0402
)

// Header is the fixed-size frame header.
type Header struct {
	Magic     uint32
	Version   uint8
	Flags     uint8
	Type      MessageType
	RequestID uint32
	Length    uint32 // payload bytes following the header
}

// HeaderSize in bytes.
const HeaderSize = 16

// maxPayload bounds a frame; nothing legitimate comes close.
const maxPayload = 1 << 20

// Message is one frame: header plus JSON payload.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage builds a frame of the given type.
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Write serializes the header.
func (h *Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads and validates a header.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}

	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("invalid magic: %x", h.Magic)
	}
	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}
	return h, nil
}

// Write serializes the whole frame.
func (m *Message) Write(w io.Writer) error {
	if err := m.Header.Write(w); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		_, err := w.Write(m.Payload)
		return err
	}
	return nil
}

// ReadMessage reads one complete frame.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		if h.Length > maxPayload {
			return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
		}
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Payload structs.

// StatusResponse is the daemon's self-description.
type StatusResponse struct {
	Version         string     `json:"version"`
	StartedAt       time.Time  `json:"started_at"`
	UptimeSeconds   int64      `json:"uptime_seconds"`
	SignedIn        bool       `json:"signed_in"`
	UserName        string     `json:"user_name,omitempty"`
	UserEmail       string     `json:"user_email,omitempty"`
	Encrypted       bool       `json:"encrypted"`
	SealerName      string     `json:"sealer_name"`
	ShortcutBinding string     `json:"shortcut_binding"`
	ShortcutEnabled bool       `json:"shortcut_enabled"`
	Tone            string     `json:"tone"`
	Usage           *UsageInfo `json:"usage,omitempty"`
	Plan            string     `json:"plan,omitempty"`
}

// UsageInfo summarizes the account's rewrite allowance, fetched live from
// the service when the daemon is signed in.
type UsageInfo struct {
	RemainingToday int `json:"remaining_today"`
	DailyLimit     int `json:"daily_limit"`
}

// LoginResponse acknowledges that the browser flow was opened.
type LoginResponse struct {
	Started bool   `json:"started"`
	Error   string `json:"error,omitempty"`
}

// LogoutResponse acknowledges credential removal.
type LogoutResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DeepLinkRequest forwards a callback URL the OS handed to redraftctl.
type DeepLinkRequest struct {
	URL string `json:"url"`
}

// DeepLinkResponse reports whether the callback was accepted.
type DeepLinkResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// SetToneRequest selects the rewrite tone.
type SetToneRequest struct {
	Tone string `json:"tone"`
}

// SetToneResponse acknowledges the tone change.
type SetToneResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ToggleShortcutRequest enables or disables the global shortcut.
type ToggleShortcutRequest struct {
	Enabled bool `json:"enabled"`
}

// ToggleShortcutResponse reports the resulting state.
type ToggleShortcutResponse struct {
	Enabled bool `json:"enabled"`
}

// SubscribeResponse acknowledges an event subscription.
type SubscribeResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is sent when a request fails.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeUnknown        = 1
	ErrCodeInvalidRequest = 2
	ErrCodeInternal       = 3
)

// Encode marshals a payload.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals a payload.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewResponse builds a response frame carrying v.
func NewResponse(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(msgType, requestID, payload), nil
}

// NewErrorMessage builds an error frame.
func NewErrorMessage(requestID uint32, code int, message string) *Message {
	payload, _ := Encode(&ErrorResponse{Code: code, Message: message})
	return NewMessage(MsgError, requestID, payload)
}

// NewEventMessage wraps a notification event for streaming.
func NewEventMessage(event notify.Event) (*Message, error) {
	return NewResponse(MsgEvent, 0, event)
}
