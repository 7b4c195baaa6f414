// wire.go implements the on-the-wire frame format shared by the stream
// transports (tcp, udp, shm, file).

package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/xaionaro-go/mediamodule/frame"
	"github.com/xaionaro-go/mediamodule/types"
)

// Every frame travels as a fixed header block followed by the payload
// bytes. All integers are big-endian.
//
//	offset size field
//	     0    4 magic
//	     4    2 version
//	     6    2 media format
//	     8    4 media size
//	    12    4 width
//	    16    4 height
//	    20    2 depth
//	    22    2 sampling format
//	    24    8 timestamp (PTS)
//	    32    8 frame index
//	    40    4 payload length
const (
	wireMagic   = uint32(0x764D4946) // "vMIF"
	wireVersion = uint16(1)

	// HeaderBlockSize is the size of the fixed header block in bytes.
	HeaderBlockSize = 44
)

// MaxPayloadSize bounds a single framing unit; it protects receivers from
// a corrupted length field allocating gigabytes.
const MaxPayloadSize = 256 << 20

func marshalHeaderBlock(dst []byte, hdrs *frame.Headers, payloadLen int) {
	binary.BigEndian.PutUint32(dst[0:], wireMagic)
	binary.BigEndian.PutUint16(dst[4:], wireVersion)
	binary.BigEndian.PutUint16(dst[6:], uint16(hdrs.MediaFormat))
	binary.BigEndian.PutUint32(dst[8:], uint32(hdrs.MediaSize))
	binary.BigEndian.PutUint32(dst[12:], uint32(hdrs.Width))
	binary.BigEndian.PutUint32(dst[16:], uint32(hdrs.Height))
	binary.BigEndian.PutUint16(dst[20:], uint16(hdrs.Depth))
	binary.BigEndian.PutUint16(dst[22:], uint16(hdrs.SamplingFmt))
	binary.BigEndian.PutUint64(dst[24:], uint64(hdrs.Timestamp))
	binary.BigEndian.PutUint64(dst[32:], uint64(hdrs.FrameIndex))
	binary.BigEndian.PutUint32(dst[40:], uint32(payloadLen))
}

func unmarshalHeaderBlock(src []byte) (frame.Headers, int, error) {
	if len(src) < HeaderBlockSize {
		return frame.Headers{}, 0, fmt.Errorf("header block is truncated: %d < %d bytes", len(src), HeaderBlockSize)
	}
	if magic := binary.BigEndian.Uint32(src[0:]); magic != wireMagic {
		return frame.Headers{}, 0, fmt.Errorf("invalid magic 0x%08X", magic)
	}
	if version := binary.BigEndian.Uint16(src[4:]); version != wireVersion {
		return frame.Headers{}, 0, fmt.Errorf("unsupported wire version %d", version)
	}
	hdrs := frame.Headers{
		MediaFormat: types.MediaFormat(int16(binary.BigEndian.Uint16(src[6:]))),
		MediaSize:   int(binary.BigEndian.Uint32(src[8:])),
		Width:       int(binary.BigEndian.Uint32(src[12:])),
		Height:      int(binary.BigEndian.Uint32(src[16:])),
		Depth:       int(binary.BigEndian.Uint16(src[20:])),
		SamplingFmt: types.SamplingFormat(binary.BigEndian.Uint16(src[22:])),
		Timestamp:   int64(binary.BigEndian.Uint64(src[24:])),
		FrameIndex:  int64(binary.BigEndian.Uint64(src[32:])),
	}
	payloadLen := int(binary.BigEndian.Uint32(src[40:]))
	if payloadLen < 0 || payloadLen > MaxPayloadSize {
		return frame.Headers{}, 0, fmt.Errorf("invalid payload length %d", payloadLen)
	}
	return hdrs, payloadLen, nil
}

// writeFrame writes one framing unit to a stream.
func writeFrame(w io.Writer, hdrs *frame.Headers, payload []byte) error {
	var block [HeaderBlockSize]byte
	marshalHeaderBlock(block[:], hdrs, len(payload))
	if _, err := w.Write(block[:]); err != nil {
		return fmt.Errorf("unable to write the header block: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("unable to write the payload: %w", err)
	}
	return nil
}

// readFrame reads one framing unit from a stream, reusing buf when it is
// large enough. It returns the (possibly re-allocated) payload buffer.
func readFrame(r io.Reader, buf []byte) (frame.Headers, []byte, error) {
	var block [HeaderBlockSize]byte
	if _, err := io.ReadFull(r, block[:]); err != nil {
		return frame.Headers{}, buf, err
	}
	hdrs, payloadLen, err := unmarshalHeaderBlock(block[:])
	if err != nil {
		return frame.Headers{}, buf, err
	}
	if cap(buf) < payloadLen {
		buf = make([]byte, payloadLen)
	}
	buf = buf[:payloadLen]
	if _, err := io.ReadFull(r, buf); err != nil {
		return frame.Headers{}, buf, fmt.Errorf("unable to read the payload (%d bytes): %w", payloadLen, err)
	}
	return hdrs, buf, nil
}

// marshalFrame serializes one framing unit into a single buffer (for
// datagram- and slot-shaped transports), reusing buf when large enough.
func marshalFrame(buf []byte, hdrs *frame.Headers, payload []byte) []byte {
	total := HeaderBlockSize + len(payload)
	if cap(buf) < total {
		buf = make([]byte, total)
	}
	buf = buf[:total]
	marshalHeaderBlock(buf, hdrs, len(payload))
	copy(buf[HeaderBlockSize:], payload)
	return buf
}

// unmarshalFrame parses one framing unit from a single buffer.
func unmarshalFrame(buf []byte) (frame.Headers, []byte, error) {
	hdrs, payloadLen, err := unmarshalHeaderBlock(buf)
	if err != nil {
		return frame.Headers{}, nil, err
	}
	if len(buf) < HeaderBlockSize+payloadLen {
		return frame.Headers{}, nil, fmt.Errorf("framing unit is truncated: %d < %d bytes", len(buf), HeaderBlockSize+payloadLen)
	}
	return hdrs, buf[HeaderBlockSize : HeaderBlockSize+payloadLen], nil
}
