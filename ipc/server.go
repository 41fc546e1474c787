package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/mezonai/sequencer/exception"
	"github.com/mezonai/sequencer/logx"
)

// Handler answers one decoded request.
type Handler interface {
	HandleMessage(ctx context.Context, msg Message) *Response
}

type HandlerFunc func(ctx context.Context, msg Message) *Response

func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) *Response {
	return f(ctx, msg)
}

// Server accepts framed requests on a unix socket. A connection may carry any
// number of request/response pairs.
type Server struct {
	socketPath string
	handler    Handler

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewServer(socketPath string, handler Handler) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		conns:      make(map[net.Conn]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start removes a stale socket file, listens and serves in the background.
func (s *Server) Start() error {
	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logx.Info("IPC", "IPC server listening on ", s.socketPath)
	s.wg.Add(1)
	exception.SafeGo("ipcAcceptLoop", func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	})
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return
			}
			logx.Error("IPC", "Accept failed: ", err)
			continue
		}
		s.track(conn, true)
		s.wg.Add(1)
		exception.SafeGo("ipcConn", func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.serveConn(conn)
		})
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
	_ = conn.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	for {
		frame, err := ReadFrame(conn)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logx.Debug("IPC", "Client disconnected")
			case errors.Is(err, ErrFrameTooLarge):
				logx.Warn("IPC", "Dropping connection: ", err)
			case s.ctx.Err() == nil:
				logx.Error("IPC", "Read failed: ", err)
			}
			return
		}

		var resp *Response
		msg, err := Decode(frame)
		if err != nil {
			resp = &Response{Success: false, Message: fmt.Sprintf("Deserialization error: %v", err)}
		} else {
			resp = s.handler.HandleMessage(s.ctx, msg)
			if resp == nil {
				resp = &Response{Success: true}
			}
		}

		payload, err := Encode(resp)
		if err == nil {
			err = WriteFrame(conn, payload)
		}
		if err != nil {
			logx.Error("IPC", "Write response failed: ", err)
			return
		}
	}
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *Server) Close() error {
	s.cancel()
	s.mu.Lock()
	ln := s.listener
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	_ = os.Remove(s.socketPath)
	return err
}
