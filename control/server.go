// server.go implements the out-of-band control channel of a module.

// Package control provides the per-module command socket: a TCP listener
// speaking a line-based ASCII protocol (`START`, `STOP`, `STATUS`) with a
// short reply per request. The channel is independent of the data path: it
// runs in its own task and serves one connection, one request at a time.
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/facebookincubator/go-belt"
	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/types"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
)

// Commander is the module surface a control channel drives. Start and Stop
// are posted from the control task, never from a data-path callback.
type Commander interface {
	Handle() types.ModuleHandle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	StatusLine(ctx context.Context) string
}

// Server is a module's control channel endpoint.
type Server struct {
	locker    xsync.Mutex
	listener  net.Listener
	commander Commander
	cancelFn  context.CancelFunc
	doneChan  chan struct{}
	isRunning bool
}

// NewServer binds the control socket on the given port (on all interfaces,
// like the data transports). Port 0 lets the kernel pick one; see Addr.
func NewServer(ctx context.Context, port int, commander Commander) (_ret *Server, _err error) {
	logger.Debugf(ctx, "control.NewServer(%d)", port)
	defer func() { logger.Debugf(ctx, "/control.NewServer(%d): %v", port, _err) }()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("unable to bind the control port %d: %w", port, err)
	}
	return &Server{
		listener:  listener,
		commander: commander,
	}, nil
}

func (s *Server) String() string {
	return fmt.Sprintf("control(%s)", s.listener.Addr())
}

// Addr returns the bound address of the control socket.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve spawns the accept task. Connections are served strictly one at a
// time; there is no queueing of concurrent requests beyond the kernel's
// accept backlog.
func (s *Server) Serve(ctx context.Context) error {
	return xsync.DoR1(ctx, &s.locker, func() error {
		if s.isRunning {
			return nil
		}
		loopCtx, cancelFn := context.WithCancel(xcontext.DetachDone(ctx))
		loopCtx = belt.WithField(loopCtx, "control", s.listener.Addr().String())
		doneChan := make(chan struct{})
		s.cancelFn = cancelFn
		s.doneChan = doneChan
		s.isRunning = true
		observability.Go(loopCtx, func(ctx context.Context) {
			defer close(doneChan)
			s.serveLoop(ctx)
		})
		return nil
	})
}

func (s *Server) serveLoop(ctx context.Context) {
	logger.Debugf(ctx, "%s: serveLoop", s)
	defer logger.Debugf(ctx, "%s: /serveLoop", s)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				logger.Errorf(ctx, "%s: unable to accept: %v", s, err)
			}
			return
		}
		s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logger.Debugf(ctx, "%s: serving %s", s, conn.RemoteAddr())
	defer logger.Debugf(ctx, "%s: /serving %s", s, conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		request := strings.TrimSpace(scanner.Text())
		if request == "" {
			continue
		}
		reply := s.handleRequest(ctx, request)
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			logger.Warnf(ctx, "%s: unable to reply to %s: %v", s, conn.RemoteAddr(), err)
			return
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, request string) string {
	logger.Debugf(ctx, "%s: handleRequest('%s')", s, request)
	logger.Tracef(ctx, "%s: commander: %s", s, spew.Sdump(s.commander))

	switch strings.ToUpper(request) {
	case "START":
		if err := s.commander.Start(ctx); err != nil {
			return fmt.Sprintf("ERROR %v", err)
		}
		return "OK"
	case "STOP":
		if err := s.commander.Stop(ctx); err != nil {
			return fmt.Sprintf("ERROR %v", err)
		}
		return "OK"
	case "STATUS":
		return s.commander.StatusLine(ctx)
	default:
		return "ERROR unknown command"
	}
}

// Close stops the accept task and releases the socket. Terminal.
func (s *Server) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "%s: Close", s)
	defer func() { logger.Debugf(ctx, "%s: /Close: %v", s, _err) }()

	var doneChan chan struct{}
	s.locker.Do(ctx, func() {
		if s.isRunning {
			s.cancelFn()
			doneChan = s.doneChan
			s.isRunning = false
		}
	})
	err := s.listener.Close()
	if doneChan != nil {
		<-doneChan
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
