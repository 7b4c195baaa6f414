// tcp.go implements the raw TCP transport variant.

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/xaionaro-go/mediamodule/frame"
	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/moduleconfig"
	"github.com/xaionaro-go/xsync"
)

const tcpRedialInterval = time.Second

// tcpReceiver accepts one peer at a time on `in_port` and reads
// length-prefixed frames from it; when the peer disconnects it goes back to
// accepting.
type tcpReceiver struct {
	locker   xsync.Mutex
	listener net.Listener
	conn     net.Conn
	buf      []byte
}

var _ Receiver = (*tcpReceiver)(nil)

func newTCPReceiver(ctx context.Context, cfg moduleconfig.Params) (_ret *tcpReceiver, _err error) {
	addr, _ := cfg.Get(KeyInAddr)
	port := cfg.GetInt(KeyInPort, 0)
	listenAddr := fmt.Sprintf("%s:%d", addr, port)
	logger.Debugf(ctx, "newTCPReceiver('%s')", listenAddr)
	defer func() { logger.Debugf(ctx, "/newTCPReceiver('%s'): %v", listenAddr, _err) }()

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen '%s': %w", listenAddr, err)
	}
	return &tcpReceiver{listener: listener}, nil
}

func (t *tcpReceiver) String() string {
	return fmt.Sprintf("tcp-in(%s)", t.listener.Addr())
}

// Addr returns the bound listen address (the port is resolved if 0 was
// configured).
func (t *tcpReceiver) Addr() net.Addr {
	return t.listener.Addr()
}

func (t *tcpReceiver) Receive(ctx context.Context) (frame.Headers, []byte, error) {
	for {
		conn := xsync.DoR1(ctx, &t.locker, func() net.Conn { return t.conn })
		if conn == nil {
			logger.Debugf(ctx, "%s: waiting for a peer", t)
			newConn, err := t.listener.Accept()
			if err != nil {
				return frame.Headers{}, nil, err
			}
			logger.Infof(ctx, "%s: accepted a connection from %s", t, newConn.RemoteAddr())
			t.locker.Do(ctx, func() { t.conn = newConn })
			conn = newConn
		}

		hdrs, payload, err := readFrame(conn, t.buf)
		t.buf = payload
		if err == nil {
			return hdrs, payload, nil
		}
		if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
			return frame.Headers{}, nil, err
		}
		// The peer went away (or sent garbage); drop the connection and
		// accept the next one.
		logger.Infof(ctx, "%s: the peer is gone: %v", t, err)
		t.locker.Do(ctx, func() {
			conn.Close()
			t.conn = nil
		})
	}
}

func (t *tcpReceiver) Close(ctx context.Context) error {
	return xsync.DoR1(ctx, &t.locker, func() error {
		if t.conn != nil {
			t.conn.Close()
			t.conn = nil
		}
		return t.listener.Close()
	})
}

// tcpSender dials `out_host`:`out_port` and writes length-prefixed frames,
// re-dialing with a delay after any error until the context is canceled.
type tcpSender struct {
	locker xsync.Mutex
	addr   string
	conn   net.Conn
}

var _ Sender = (*tcpSender)(nil)

func newTCPSender(ctx context.Context, cfg moduleconfig.Params) (_ret *tcpSender, _err error) {
	host, _ := cfg.Get(KeyOutHost)
	port := cfg.GetInt(KeyOutPort, 0)
	addr := fmt.Sprintf("%s:%d", host, port)
	logger.Debugf(ctx, "newTCPSender('%s')", addr)
	return &tcpSender{addr: addr}, nil
}

func (t *tcpSender) String() string {
	return fmt.Sprintf("tcp-out(%s)", t.addr)
}

func (t *tcpSender) SendPolicy() SendPolicy {
	return SendPolicyBlock
}

func (t *tcpSender) Send(ctx context.Context, hdrs *frame.Headers, payload []byte) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn := xsync.DoR1(ctx, &t.locker, func() net.Conn { return t.conn })
		if conn == nil {
			newConn, err := net.Dial("tcp", t.addr)
			if err != nil {
				logger.Warnf(ctx, "%s: unable to connect: %v; retrying in %v", t, err, tcpRedialInterval)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(tcpRedialInterval):
				}
				continue
			}
			logger.Infof(ctx, "%s: connected", t)
			t.locker.Do(ctx, func() { t.conn = newConn })
			conn = newConn
		}

		err := writeFrame(conn, hdrs, payload)
		if err == nil {
			return nil
		}
		if errors.Is(err, net.ErrClosed) {
			return err
		}
		logger.Warnf(ctx, "%s: unable to send a frame: %v; reconnecting", t, err)
		t.locker.Do(ctx, func() {
			conn.Close()
			t.conn = nil
		})
	}
}

func (t *tcpSender) Close(ctx context.Context) error {
	return xsync.DoR1(ctx, &t.locker, func() error {
		if t.conn == nil {
			return nil
		}
		err := t.conn.Close()
		t.conn = nil
		if err != nil && !errors.Is(err, io.ErrClosedPipe) {
			return err
		}
		return nil
	})
}
