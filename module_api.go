// module_api.go is the handle-typed module surface. Integer results follow
// the C-shaped convention of the rest of the interface: 0 success, -1
// failure, plus a log entry.

package mediamodule

import (
	"context"

	"github.com/xaionaro-go/mediamodule/framepool"
	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/module"
	"github.com/xaionaro-go/mediamodule/moduleconfig"
	"github.com/xaionaro-go/mediamodule/types"
)

// CreateModule creates and initializes a module with input and output pins
// according to the configuration string, for example:
//
//	type=conv,verbose=1,in_type=udp,in_port=5000,out_type=tcp,out_host=10.0.0.1,out_port=6000
//
// Each module binds a control socket on controlPort (0 disables the
// control channel). It returns the module handle, or InvalidModuleHandle
// on a configuration error.
func CreateModule(ctx context.Context, controlPort int, callback Callback, config string) types.ModuleHandle {
	return CreateModuleExt(ctx, controlPort, callback, config, nil)
}

// CreateModuleExt is CreateModule with an opaque userData value that is
// passed back on every callback invocation.
func CreateModuleExt(ctx context.Context, controlPort int, callback Callback, config string, userData any) (_ret types.ModuleHandle) {
	logger.Debugf(ctx, "CreateModuleExt(%d, '%s')", controlPort, config)
	defer func() { logger.Debugf(ctx, "/CreateModuleExt(%d, '%s'): %d", controlPort, config, _ret) }()

	cfg, err := moduleconfig.Parse(ctx, config)
	if err != nil {
		logger.Errorf(ctx, "unable to parse the configuration: %v", err)
		return types.InvalidModuleHandle
	}

	c := module.NewController(ctx, controlPort, callback, cfg.Module, userData, framepool.Default)
	handle := module.Register(ctx, c)

	for _, inputConfig := range cfg.Inputs {
		if _, err := c.CreateInput(ctx, inputConfig); err != nil {
			logger.Errorf(ctx, "unable to create an input pin from '%s': %v", inputConfig, err)
			c.Close(ctx)
			return types.InvalidModuleHandle
		}
	}
	for _, outputConfig := range cfg.Outputs {
		if _, err := c.CreateOutput(ctx, outputConfig); err != nil {
			logger.Errorf(ctx, "unable to create an output pin from '%s': %v", outputConfig, err)
			c.Close(ctx)
			return types.InvalidModuleHandle
		}
	}

	if err := c.Init(ctx); err != nil {
		logger.Errorf(ctx, "unable to initialize the module: %v", err)
		c.Close(ctx)
		return types.InvalidModuleHandle
	}
	return handle
}

func getModule(ctx context.Context, h types.ModuleHandle) *module.Controller {
	c := module.Get(ctx, h)
	if c == nil {
		logger.Errorf(ctx, "%v", module.ErrModuleNotFound{Handle: h})
	}
	return c
}

// StartModule starts ingesting data on the module: all pins and the
// control-channel task. The callback receives CommandStart before this
// function returns. Unsafe to call from inside the callback itself.
func StartModule(ctx context.Context, h types.ModuleHandle) int {
	c := getModule(ctx, h)
	if c == nil {
		return -1
	}
	if err := c.Start(ctx); err != nil {
		logger.Errorf(ctx, "unable to start module#%d: %v", h, err)
		return -1
	}
	return 0
}

// StopModule stops ingesting data on the module. The callback receives
// CommandStop before this function returns. Unsafe to call from inside the
// callback itself.
func StopModule(ctx context.Context, h types.ModuleHandle) int {
	c := getModule(ctx, h)
	if c == nil {
		return -1
	}
	if err := c.Stop(ctx); err != nil {
		logger.Errorf(ctx, "unable to stop module#%d: %v", h, err)
		return -1
	}
	return 0
}

// Close frees all resources allocated for the module, stopping it first if
// it is running. All handles related to this module are invalid afterwards.
func Close(ctx context.Context, h types.ModuleHandle) int {
	c := getModule(ctx, h)
	if c == nil {
		return -1
	}
	if err := c.Close(ctx); err != nil {
		logger.Errorf(ctx, "unable to close module#%d: %v", h, err)
		return -1
	}
	return 0
}

// GetInputCount returns the number of input pins of the module, or -1 for
// an unknown module.
func GetInputCount(ctx context.Context, h types.ModuleHandle) int {
	c := getModule(ctx, h)
	if c == nil {
		return -1
	}
	return c.InputCount(ctx)
}

// GetOutputCount returns the number of output pins of the module, or -1
// for an unknown module.
func GetOutputCount(ctx context.Context, h types.ModuleHandle) int {
	c := getModule(ctx, h)
	if c == nil {
		return -1
	}
	return c.OutputCount(ctx)
}

// GetInputHandle returns the handle of the input pin at the given index
// (see GetInputCount), or InvalidPinHandle if the index is out of range.
func GetInputHandle(ctx context.Context, h types.ModuleHandle, index int) types.PinHandle {
	c := getModule(ctx, h)
	if c == nil {
		return types.InvalidPinHandle
	}
	return c.InputHandleAt(ctx, index)
}

// GetOutputHandle returns the handle of the output pin at the given index
// (see GetOutputCount), or InvalidPinHandle if the index is out of range.
func GetOutputHandle(ctx context.Context, h types.ModuleHandle, index int) types.PinHandle {
	c := getModule(ctx, h)
	if c == nil {
		return types.InvalidPinHandle
	}
	return c.OutputHandleAt(ctx, index)
}

// SetOutputParameter sets a tunable on an output pin.
func SetOutputParameter(ctx context.Context, h types.ModuleHandle, out types.PinHandle, param types.OutputParameter, value any) {
	c := getModule(ctx, h)
	if c == nil {
		return
	}
	output := c.Output(ctx, out)
	if output == nil {
		logger.Errorf(ctx, "unable to find pin handle #%d", out)
		return
	}
	output.SetParameter(ctx, param, value)
}

// Send propagates the frame to the next pipeline stage through an output
// pin of the module. The frame's reference counter is increased until the
// frame is effectively sent by the output pin's task; Send itself returns
// immediately. Returns 0 on success, -1 otherwise.
func Send(ctx context.Context, h types.ModuleHandle, out types.PinHandle, frame types.FrameHandle) int {
	c := getModule(ctx, h)
	if c == nil {
		return -1
	}
	if err := c.Send(ctx, out, frame); err != nil {
		logger.Errorf(ctx, "unable to send frame [%d] through pin #%d of module#%d: %v", frame, out, h, err)
		return -1
	}
	return 0
}
