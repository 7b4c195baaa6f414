// mediamodule.go re-exports the handle types and enums of the public
// surface, so that applications only need to import the root package.

// Package mediamodule is a library for building media-processing modules
// that compose into pipelines. A module ingests media frames from its input
// pins, hands them to a user callback, and emits frames through its output
// pins; pins speak network or IPC transports to peer modules in other
// processes. Everything externally visible is addressed by opaque integer
// handles, so the surface stays C-ABI-shaped and host applications in any
// language can drive it.
package mediamodule

import (
	"github.com/xaionaro-go/mediamodule/framepool"
	"github.com/xaionaro-go/mediamodule/pin"
	"github.com/xaionaro-go/mediamodule/types"
)

// The handle types and their invalid sentinels.
type (
	FrameHandle  = types.FrameHandle
	PinHandle    = types.PinHandle
	ModuleHandle = types.ModuleHandle
)

const (
	InvalidFrameHandle  = types.InvalidFrameHandle
	InvalidPinHandle    = types.InvalidPinHandle
	InvalidModuleHandle = types.InvalidModuleHandle
)

// Callback is the per-module event callback; see pin.Callback for the
// delivery contract.
type Callback = pin.Callback

// Command tells the callback why it is being invoked.
type Command = types.Command

// FrameInit carries the parameters of FrameCreateExt.
type FrameInit = framepool.FrameInit

// The commands delivered to the callback.
const (
	CommandStart = types.CommandStart
	CommandStop  = types.CommandStop
	CommandQuit  = types.CommandQuit
	CommandTick  = types.CommandTick
)

// The library-instance parameters of GetParameter/SetParameter.
const (
	ParameterMaxFramesInList = types.ParameterMaxFramesInList
	ParameterCurFramesInList = types.ParameterCurFramesInList
)
