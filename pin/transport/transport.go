// transport.go defines the transport variant abstraction under a pin.

// Package transport provides the concrete carriers under input and output
// pins: raw TCP, UDP/multicast, an in-process queue, shared memory and flat
// files. All stream-shaped variants share one length-prefixed wire format,
// so modules can be rewired between transports by configuration only.
package transport

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/mediamodule/frame"
	"github.com/xaionaro-go/mediamodule/moduleconfig"
)

// SendPolicy documents what an output transport does when it cannot take
// another frame. The policy is fixed per transport variant.
type SendPolicy int

const (
	// SendPolicyBlock blocks the sender task until the transport accepts
	// the frame.
	SendPolicyBlock = SendPolicy(0x0)
	// SendPolicyDrop overwrites or discards the oldest unconsumed frame.
	SendPolicyDrop = SendPolicy(0x1)
)

func (p SendPolicy) String() string {
	switch p {
	case SendPolicyBlock:
		return "block"
	case SendPolicyDrop:
		return "drop"
	default:
		return "SendPolicy(" + fmt.Sprintf("%d", int(p)) + ")"
	}
}

// Receiver is the input side of a transport: it blocks for the next framing
// unit and returns its headers together with the payload bytes. The payload
// slice is owned by the transport and valid only until the next Receive;
// the input pin copies it into a pool frame.
type Receiver interface {
	fmt.Stringer
	Receive(ctx context.Context) (frame.Headers, []byte, error)
	Close(ctx context.Context) error
}

// Sender is the output side of a transport.
type Sender interface {
	fmt.Stringer
	Send(ctx context.Context, hdrs *frame.Headers, payload []byte) error
	SendPolicy() SendPolicy
	Close(ctx context.Context) error
}

// Config keys shared by the transport variants.
const (
	KeyInPort    = "in_port"
	KeyInAddr    = "in_addr"
	KeyOutHost   = "out_host"
	KeyOutPort   = "out_port"
	KeyInterface = "interface"
	KeyRcvBuf    = "rcvbuf"
	KeyQueueName = "queue_name"
	KeyQueueSize = "queue_size"
	KeyShmPath   = "shm_path"
	KeyShmSize   = "shm_size"
	KeyFilePath  = "file_path"
)

// NewReceiver constructs the receiver variant selected by the pin's
// `in_type` configuration key.
func NewReceiver(ctx context.Context, cfg moduleconfig.Params) (Receiver, error) {
	typeName, ok := cfg.Get(moduleconfig.KeyInType)
	if !ok {
		return nil, fmt.Errorf("the input pin configuration contains no '%s' key", moduleconfig.KeyInType)
	}
	switch typeName {
	case "tcp":
		return newTCPReceiver(ctx, cfg)
	case "udp":
		return newUDPReceiver(ctx, cfg)
	case "queue", "mem":
		return newQueueReceiver(ctx, cfg)
	case "shm":
		return newSHMReceiver(ctx, cfg)
	case "file":
		return newFileReceiver(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown input transport type '%s'", typeName)
	}
}

// NewSender constructs the sender variant selected by the pin's `out_type`
// configuration key.
func NewSender(ctx context.Context, cfg moduleconfig.Params) (Sender, error) {
	typeName, ok := cfg.Get(moduleconfig.KeyOutType)
	if !ok {
		return nil, fmt.Errorf("the output pin configuration contains no '%s' key", moduleconfig.KeyOutType)
	}
	switch typeName {
	case "tcp":
		return newTCPSender(ctx, cfg)
	case "udp":
		return newUDPSender(ctx, cfg)
	case "queue", "mem":
		return newQueueSender(ctx, cfg)
	case "shm":
		return newSHMSender(ctx, cfg)
	case "file":
		return newFileSender(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown output transport type '%s'", typeName)
	}
}
