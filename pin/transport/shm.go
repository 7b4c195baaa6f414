//go:build unix
// +build unix

// shm.go implements the shared-memory transport variant: a single-writer
// mmap'd segment holding the latest frame under a seqlock, with a unix
// datagram socket signaling frame-ready to the reader. The writer never
// waits for the reader; a slow reader observes only the newest frame.

package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/xaionaro-go/mediamodule/frame"
	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/moduleconfig"
	"golang.org/x/sys/unix"
)

const (
	defaultSHMSize = 4 << 20

	// The segment starts with an 8-byte sequence counter; the framing unit
	// follows. An odd sequence means a write is in progress.
	shmSlotOffset = 8
)

func shmOpenSegment(ctx context.Context, cfg moduleconfig.Params) (*os.File, []byte, error) {
	path, ok := cfg.Get(KeyShmPath)
	if !ok {
		return nil, nil, fmt.Errorf("the shm transport requires the '%s' key", KeyShmPath)
	}
	size := cfg.GetInt(KeyShmSize, defaultSHMSize)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open the shm segment '%s': %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("unable to size the shm segment '%s' to %d: %w", path, size, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("unable to mmap the shm segment '%s': %w", path, err)
	}
	logger.Debugf(ctx, "mapped shm segment '%s' (%d bytes)", path, size)
	return f, data, nil
}

func shmSeqPtr(data []byte) *uint64 {
	return (*uint64)(unsafe.Pointer(&data[0]))
}

func shmSignalPath(cfg moduleconfig.Params) string {
	path, _ := cfg.Get(KeyShmPath)
	return path + ".sock"
}

type shmReceiver struct {
	file    *os.File
	data    []byte
	sigConn *net.UnixConn
	sigBuf  [8]byte
	buf     []byte
	lastSeq uint64
}

var _ Receiver = (*shmReceiver)(nil)

func newSHMReceiver(ctx context.Context, cfg moduleconfig.Params) (_ret *shmReceiver, _err error) {
	logger.Debugf(ctx, "newSHMReceiver")
	defer func() { logger.Debugf(ctx, "/newSHMReceiver: %v", _err) }()

	f, data, err := shmOpenSegment(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sigPath := shmSignalPath(cfg)
	os.Remove(sigPath)
	sigConn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sigPath, Net: "unixgram"})
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("unable to bind the signal socket '%s': %w", sigPath, err)
	}

	return &shmReceiver{
		file:    f,
		data:    data,
		sigConn: sigConn,
	}, nil
}

func (t *shmReceiver) String() string {
	return fmt.Sprintf("shm-in(%s)", t.file.Name())
}

func (t *shmReceiver) Receive(ctx context.Context) (frame.Headers, []byte, error) {
	for {
		if _, err := t.sigConn.Read(t.sigBuf[:]); err != nil {
			return frame.Headers{}, nil, err
		}

		// Seqlock read: retry while the writer is mid-write or overwrote
		// the slot under us.
		var seq uint64
		for {
			seq = atomic.LoadUint64(shmSeqPtr(t.data))
			if seq&1 != 0 {
				continue
			}
			slot := t.data[shmSlotOffset:]
			_, payloadLen, err := unmarshalHeaderBlock(slot)
			if err != nil {
				return frame.Headers{}, nil, fmt.Errorf("the shm slot is corrupted: %w", err)
			}
			total := HeaderBlockSize + payloadLen
			if cap(t.buf) < total {
				t.buf = make([]byte, total)
			}
			t.buf = t.buf[:total]
			copy(t.buf, slot[:total])
			if atomic.LoadUint64(shmSeqPtr(t.data)) == seq {
				break
			}
		}
		if seq == t.lastSeq {
			// A duplicate signal for a frame we already delivered.
			continue
		}
		t.lastSeq = seq

		hdrs, payload, err := unmarshalFrame(t.buf)
		if err != nil {
			return frame.Headers{}, nil, err
		}
		return hdrs, payload, nil
	}
}

func (t *shmReceiver) Close(ctx context.Context) error {
	t.sigConn.Close()
	os.Remove(t.sigConn.LocalAddr().String())
	unix.Munmap(t.data)
	return t.file.Close()
}

type shmSender struct {
	file    *os.File
	data    []byte
	sigPath string
	sigConn *net.UnixConn
	seq     uint64
}

var _ Sender = (*shmSender)(nil)

func newSHMSender(ctx context.Context, cfg moduleconfig.Params) (_ret *shmSender, _err error) {
	logger.Debugf(ctx, "newSHMSender")
	defer func() { logger.Debugf(ctx, "/newSHMSender: %v", _err) }()

	f, data, err := shmOpenSegment(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &shmSender{
		file:    f,
		data:    data,
		sigPath: shmSignalPath(cfg),
	}, nil
}

func (t *shmSender) String() string {
	return fmt.Sprintf("shm-out(%s)", t.file.Name())
}

func (t *shmSender) SendPolicy() SendPolicy {
	return SendPolicyDrop
}

func (t *shmSender) Send(ctx context.Context, hdrs *frame.Headers, payload []byte) error {
	total := shmSlotOffset + HeaderBlockSize + len(payload)
	if total > len(t.data) {
		return fmt.Errorf("the frame (%d bytes) does not fit into the shm segment (%d bytes)", len(payload), len(t.data))
	}

	seqPtr := shmSeqPtr(t.data)
	t.seq += 2
	atomic.StoreUint64(seqPtr, t.seq|1)
	slot := t.data[shmSlotOffset:]
	marshalHeaderBlock(slot, hdrs, len(payload))
	copy(slot[HeaderBlockSize:], payload)
	atomic.StoreUint64(seqPtr, t.seq)

	t.signal(ctx)
	return nil
}

// signal pokes the reader. A missing reader is fine: the frame stays in the
// slot and the next signal delivers the newest one.
func (t *shmSender) signal(ctx context.Context) {
	if t.sigConn == nil {
		conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: t.sigPath, Net: "unixgram"})
		if err != nil {
			logger.Debugf(ctx, "%s: no reader at '%s', yet: %v", t, t.sigPath, err)
			return
		}
		t.sigConn = conn
	}
	var buf [8]byte
	if _, err := t.sigConn.Write(buf[:]); err != nil {
		logger.Debugf(ctx, "%s: the reader is gone: %v", t, err)
		t.sigConn.Close()
		t.sigConn = nil
	}
}

func (t *shmSender) Close(ctx context.Context) error {
	if t.sigConn != nil {
		t.sigConn.Close()
	}
	unix.Munmap(t.data)
	return t.file.Close()
}
