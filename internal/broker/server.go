package broker

import (
	"context"
	"errors"
	"net"

	"github.com/FairForge/tidelog/internal/protocol"
	"go.uber.org/zap"
)

// AcceptGate is consulted before each accepted TCP connection (or, for
// UDP, before each processed datagram) is handed to the dispatcher,
// letting the caller apply an accept-rate limit without this package
// depending on a rate-limiter type. A nil gate never blocks.
type AcceptGate func(ctx context.Context) error

// Server drives the two wire listeners (§6: datagram and reliable-stream
// carriers) over a shared Dispatcher, analogous to how the teacher's
// api.Server drives one HTTP mux over one engine.
type Server struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
	gate       AcceptGate
}

// NewServer builds a Server over dispatcher. gate may be nil.
func NewServer(dispatcher *Dispatcher, logger *zap.Logger, gate AcceptGate) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{dispatcher: dispatcher, logger: logger, gate: gate}
}

// ServeTCP accepts connections on ln until ctx is cancelled or Accept
// fails. Each connection gets its own client id and is served on its own
// goroutine, exchanging length-prefixed frames (frame.go) until the peer
// closes or a frame fails to parse.
func (s *Server) ServeTCP(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if s.gate != nil {
			if err := s.gate(ctx); err != nil {
				conn.Close()
				continue
			}
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	client := s.dispatcher.Connect(conn.RemoteAddr().String())
	defer func() {
		s.dispatcher.Disconnect(client.ID)
		conn.Close()
	}()

	s.logger.Debug("tcp client connected", zap.Uint32("client_id", client.ID), zap.String("addr", client.Address))

	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := protocol.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("tcp client disconnected", zap.Uint32("client_id", client.ID), zap.Error(err))
			}
			return
		}
		resp := s.dispatcher.Dispatch(client.ID, frame)
		if err := protocol.WriteFrame(conn, resp); err != nil {
			return
		}
	}
}

// udpClientKey identifies a logical UDP "connection" by its source
// address; UDP is connectionless, so tidelog treats the first datagram
// from a given address as an implicit connect and assigns it a client id
// that persists for the life of the server (there is no transport signal
// for "this address went away").
type udpClientKey string

// ServeUDP reads one datagram at a time from conn until ctx is cancelled,
// dispatching each as a standalone command frame (no length prefix: the
// datagram boundary already frames it) and replying to the sender.
func (s *Server) ServeUDP(ctx context.Context, conn net.PacketConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	clients := make(map[udpClientKey]uint32)
	buf := make([]byte, protocol.MaxFrameSize)

	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if s.gate != nil {
			if err := s.gate(ctx); err != nil {
				continue
			}
		}

		key := udpClientKey(addr.String())
		clientID, ok := clients[key]
		if !ok {
			clientID = s.dispatcher.Connect(addr.String()).ID
			clients[key] = clientID
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])
		resp := s.dispatcher.Dispatch(clientID, frame)
		if _, err := conn.WriteTo(resp, addr); err != nil {
			s.logger.Debug("udp write failed", zap.String("addr", addr.String()), zap.Error(err))
		}
	}
}
