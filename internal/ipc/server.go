package ipc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"redraftd/internal/logging"
	"redraftd/internal/notify"
)

// Handler processes one request frame and returns the response frame.
// Returning an error produces an MsgError response for the client.
type Handler interface {
	HandleMessage(ctx context.Context, msg *Message) (*Message, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) (*Message, error)

func (f HandlerFunc) HandleMessage(ctx context.Context, msg *Message) (*Message, error) {
	return f(ctx, msg)
}

// Server accepts local clients on a unix socket (named pipe on Windows) and
// dispatches their requests. Subscribed connections also receive the
// notification event stream.
type Server struct {
	socketPath string
	handler    Handler
	log        *logging.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[*serverConn]struct{}

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type serverConn struct {
	conn       net.Conn
	writeMu    sync.Mutex
	subscribed atomic.Bool
}

func (c *serverConn) send(msg *Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return msg.Write(c.conn)
}

// NewServer builds a server; Start makes it listen.
func NewServer(socketPath string, handler Handler, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		log:        log,
		conns:      make(map[*serverConn]struct{}),
	}
}

// Start begins accepting connections.
func (s *Server) Start() error {
	listener, err := listen(s.socketPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	s.log.Info("ipc server listening", "path", s.socketPath)
	return nil
}

// Stop closes the listener and every connection.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	for c := range s.conns {
		c.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Broadcast streams an event to every subscribed connection.
func (s *Server) Broadcast(event notify.Event) {
	msg, err := NewEventMessage(event)
	if err != nil {
		s.log.Error("encoding event failed", "error", err)
		return
	}

	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for c := range s.conns {
		if c.subscribed.Load() {
			conns = append(conns, c)
		}
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.send(msg); err != nil {
			s.log.Debug("event send failed, dropping connection", "error", err)
			c.conn.Close()
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		sc := &serverConn{conn: conn}
		s.mu.Lock()
		s.conns[sc] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(ctx, sc)
	}
}

func (s *Server) serveConn(ctx context.Context, sc *serverConn) {
	defer s.wg.Done()
	defer func() {
		sc.conn.Close()
		s.mu.Lock()
		delete(s.conns, sc)
		s.mu.Unlock()
	}()

	for {
		msg, err := ReadMessage(sc.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && s.running.Load() {
				s.log.Debug("read failed", "error", err)
			}
			return
		}

		resp := s.dispatch(ctx, sc, msg)
		if resp == nil {
			continue
		}
		if err := sc.send(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sc *serverConn, msg *Message) *Message {
	switch msg.Header.Type {
	case MsgPing:
		return NewMessage(MsgPong, msg.Header.RequestID, nil)

	case MsgSubscribe:
		sc.subscribed.Store(true)
		resp, _ := NewResponse(MsgSubscribeResp, msg.Header.RequestID, &SubscribeResponse{Success: true})
		return resp

	default:
		resp, err := s.handler.HandleMessage(ctx, msg)
		if err != nil {
			s.log.Warn("request failed",
				"type", msg.Header.Type, "error", err)
			return NewErrorMessage(msg.Header.RequestID, ErrCodeInternal, err.Error())
		}
		if resp == nil {
			return NewErrorMessage(msg.Header.RequestID, ErrCodeInvalidRequest, "unsupported message type")
		}
		return resp
	}
}
