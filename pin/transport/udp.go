// udp.go implements the raw UDP / multicast transport variant. One datagram
// carries one framing unit, which bounds a frame to ~64KiB on this
// transport; bigger media should use tcp or shm.

package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"github.com/xaionaro-go/mediamodule/frame"
	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/moduleconfig"
	"github.com/xaionaro-go/sockopt"
)

const udpMaxDatagramSize = 65507

// udpReceiver listens on `in_port`; when `in_addr` is a multicast group it
// joins the group (optionally on `interface`). A configured `rcvbuf` is
// applied to the socket.
type udpReceiver struct {
	conn *net.UDPConn
	buf  []byte
}

var _ Receiver = (*udpReceiver)(nil)

func newUDPReceiver(ctx context.Context, cfg moduleconfig.Params) (_ret *udpReceiver, _err error) {
	addr, _ := cfg.Get(KeyInAddr)
	port := cfg.GetInt(KeyInPort, 0)
	logger.Debugf(ctx, "newUDPReceiver('%s':%d)", addr, port)
	defer func() { logger.Debugf(ctx, "/newUDPReceiver('%s':%d): %v", addr, port, _err) }()

	var conn *net.UDPConn
	ip := net.ParseIP(addr)
	if ip != nil && ip.IsMulticast() {
		var iface *net.Interface
		if ifaceName, ok := cfg.Get(KeyInterface); ok {
			var err error
			iface, err = net.InterfaceByName(ifaceName)
			if err != nil {
				return nil, fmt.Errorf("unable to find interface '%s': %w", ifaceName, err)
			}
		}
		var err error
		conn, err = net.ListenMulticastUDP("udp", iface, &net.UDPAddr{IP: ip, Port: port})
		if err != nil {
			return nil, fmt.Errorf("unable to join multicast group %s:%d: %w", ip, port, err)
		}
	} else {
		var err error
		conn, err = net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: port})
		if err != nil {
			return nil, fmt.Errorf("unable to listen udp %s:%d: %w", addr, port, err)
		}
	}

	if rcvBuf := cfg.GetInt(KeyRcvBuf, 0); rcvBuf > 0 {
		if err := setReadBuffer(ctx, conn, rcvBuf); err != nil {
			logger.Warnf(ctx, "unable to set the receive buffer to %d: %v", rcvBuf, err)
		}
	}

	return &udpReceiver{
		conn: conn,
		buf:  make([]byte, udpMaxDatagramSize),
	}, nil
}

// setReadBuffer applies the buffer size on the raw file descriptor, which
// (unlike net.UDPConn.SetReadBuffer) also attempts SO_RCVBUFFORCE when
// privileged.
func setReadBuffer(ctx context.Context, conn *net.UDPConn, size int) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("unable to get the raw connection: %w", err)
	}
	var sockoptErr error
	if err := rawConn.Control(func(fd uintptr) {
		sockoptErr = sockopt.SetReadBuffer(int(fd), size)
	}); err != nil {
		return err
	}
	return sockoptErr
}

func (t *udpReceiver) String() string {
	return fmt.Sprintf("udp-in(%s)", t.conn.LocalAddr())
}

// Addr returns the bound local address.
func (t *udpReceiver) Addr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *udpReceiver) Receive(ctx context.Context) (frame.Headers, []byte, error) {
	for {
		n, _, err := t.conn.ReadFromUDP(t.buf)
		if err != nil {
			return frame.Headers{}, nil, err
		}
		hdrs, payload, err := unmarshalFrame(t.buf[:n])
		if err != nil {
			logger.Warnf(ctx, "%s: dropping a malformed datagram (%d bytes): %v", t, n, err)
			continue
		}
		return hdrs, payload, nil
	}
}

func (t *udpReceiver) Close(ctx context.Context) error {
	return t.conn.Close()
}

// udpSender sends one datagram per frame to `out_host`:`out_port`.
type udpSender struct {
	conn *net.UDPConn
	addr *net.UDPAddr
	buf  []byte
}

var _ Sender = (*udpSender)(nil)

func newUDPSender(ctx context.Context, cfg moduleconfig.Params) (_ret *udpSender, _err error) {
	host, _ := cfg.Get(KeyOutHost)
	port := cfg.GetInt(KeyOutPort, 0)
	logger.Debugf(ctx, "newUDPSender('%s':%d)", host, port)
	defer func() { logger.Debugf(ctx, "/newUDPSender('%s':%d): %v", host, port, _err) }()

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("unable to resolve '%s:%d': %w", host, port, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("unable to dial udp '%s': %w", addr, err)
	}
	return &udpSender{conn: conn, addr: addr}, nil
}

func (t *udpSender) String() string {
	return fmt.Sprintf("udp-out(%s)", t.addr)
}

func (t *udpSender) SendPolicy() SendPolicy {
	// A datagram is either sent or lost; the sender never applies
	// backpressure.
	return SendPolicyDrop
}

func (t *udpSender) Send(ctx context.Context, hdrs *frame.Headers, payload []byte) error {
	if HeaderBlockSize+len(payload) > udpMaxDatagramSize {
		return fmt.Errorf("the frame (%d bytes) does not fit into an udp datagram", len(payload))
	}
	t.buf = marshalFrame(t.buf, hdrs, payload)
	_, err := t.conn.Write(t.buf)
	if err != nil {
		if isTransientUDPError(err) {
			logger.Warnf(ctx, "%s: dropping a frame: %v", t, err)
			return nil
		}
		return err
	}
	return nil
}

func isTransientUDPError(err error) bool {
	// No receiver yet is not an error for a datagram stream.
	return errorIsAny(err, syscall.ECONNREFUSED, syscall.EHOSTUNREACH, syscall.ENETUNREACH)
}

func (t *udpSender) Close(ctx context.Context) error {
	return t.conn.Close()
}
