// pin.go defines the abstraction common to input and output pins.

// Package pin provides the module endpoints: input pins that receive frames
// from a transport and deliver them to the user callback, and output pins
// that queue frames for transmission. A pin is polymorphic over its
// transport variant, selected by the `in_type`/`out_type` configuration key.
package pin

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/mediamodule/moduleconfig"
	"github.com/xaionaro-go/mediamodule/types"
)

// Polarity tells apart the two pin directions.
type Polarity int

const (
	PolarityInput  = Polarity(0x0)
	PolarityOutput = Polarity(0x1)
)

func (p Polarity) String() string {
	switch p {
	case PolarityInput:
		return "input"
	case PolarityOutput:
		return "output"
	default:
		return "Polarity(" + fmt.Sprintf("%d", int(p)) + ")"
	}
}

// Abstract is the contract shared by every pin regardless of polarity and
// transport variant.
type Abstract interface {
	fmt.Stringer
	Handle() types.PinHandle
	Polarity() Polarity
	Config() moduleconfig.Params
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Close(ctx context.Context) error
}

// Callback is the per-module function that receives frames and lifecycle
// events. CommandTick carries a valid frame handle; the callback may
// AddRef the frame to retain it beyond the callback return, otherwise the
// pin's reference is released right after. The other commands carry
// InvalidFrameHandle.
//
// A callback must not call Start/Stop/Close on its own module; it has to
// post to another task for that.
type Callback func(
	ctx context.Context,
	userData any,
	module types.ModuleHandle,
	pin types.PinHandle,
	frame types.FrameHandle,
	cmd types.Command,
)

type ErrAlreadyStarted struct{}

func (ErrAlreadyStarted) Error() string {
	return "the pin is already started"
}
