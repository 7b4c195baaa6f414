// controller.go implements the module controller: it owns the input and
// output pins, the control channel and the lifecycle state, and it fans
// frames in (to the callback) and out (to the output pins).

// Package module provides the module controller and the process-wide module
// registry behind the handle-typed public surface.
package module

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phuslu/goid"
	"github.com/xaionaro-go/mediamodule/control"
	"github.com/xaionaro-go/mediamodule/framepool"
	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/moduleconfig"
	"github.com/xaionaro-go/mediamodule/pin"
	"github.com/xaionaro-go/mediamodule/types"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// Controller owns one module: its pins, its control channel and its
// lifecycle. It is driven through the handle surface of the root package,
// or out-of-band through the control channel.
type Controller struct {
	locker      xsync.Mutex
	handle      types.ModuleHandle
	instanceID  uuid.UUID
	controlPort int
	callback    pin.Callback
	userData    any
	config      moduleconfig.Params
	pool        *framepool.Pool

	inputs  []*pin.Input
	outputs []*pin.Output
	control *control.Server
	state   State

	nextPinHandle atomic.Int64

	// callbackGids tracks which goroutines are currently inside this
	// module's callback; Start/Stop/Close assert against being called from
	// one of them (the reentrancy contract).
	gidsLocker   xsync.Mutex
	callbackGids map[int64]struct{}
}

var _ control.Commander = (*Controller)(nil)

// NewController builds a module controller from its (already bucketed)
// module configuration. The controller is not registered and owns no pins,
// yet; see the root package for the full assembly sequence.
func NewController(
	ctx context.Context,
	controlPort int,
	callback pin.Callback,
	moduleConfig string,
	userData any,
	pool *framepool.Pool,
) *Controller {
	logger.Debugf(ctx, "NewController(%d, '%s')", controlPort, moduleConfig)
	if pool == nil {
		pool = framepool.Default
	}
	return &Controller{
		handle:       types.InvalidModuleHandle,
		instanceID:   uuid.New(),
		controlPort:  controlPort,
		callback:     callback,
		userData:     userData,
		config:       moduleconfig.ParseParams(moduleConfig),
		pool:         pool,
		state:        StateCreated,
		callbackGids: map[int64]struct{}{},
	}
}

func (c *Controller) String() string {
	return fmt.Sprintf("module#%d", c.handle)
}

// Handle returns the module's registry handle.
func (c *Controller) Handle() types.ModuleHandle {
	return c.handle
}

// InstanceID returns the module's unique instance identifier.
func (c *Controller) InstanceID() uuid.UUID {
	return c.instanceID
}

// Config returns the module's own (non-pin) parameters.
func (c *Controller) Config() moduleconfig.Params {
	return c.config
}

// State returns the current lifecycle state.
func (c *Controller) State(ctx context.Context) State {
	return xsync.DoR1(ctx, &c.locker, func() State { return c.state })
}

// NextHandle returns the next pin handle, unique within this module.
func (c *Controller) NextHandle() types.PinHandle {
	return types.PinHandle(c.nextPinHandle.Inc() - 1)
}

// wrappedCallback invokes the user callback while recording the goroutine
// in callbackGids, so that the reentrancy assertion can recognize calls
// made from inside.
func (c *Controller) wrappedCallback(
	ctx context.Context,
	userData any,
	module types.ModuleHandle,
	pinHandle types.PinHandle,
	frameHandle types.FrameHandle,
	cmd types.Command,
) {
	gid := goid.Goid()
	c.gidsLocker.Do(ctx, func() { c.callbackGids[gid] = struct{}{} })
	defer c.gidsLocker.Do(ctx, func() { delete(c.callbackGids, gid) })
	c.callback(ctx, userData, module, pinHandle, frameHandle, cmd)
}

func (c *Controller) assertNotInCallback(ctx context.Context, op string) error {
	gid := goid.Goid()
	inCallback := xsync.DoR1(ctx, &c.gidsLocker, func() bool {
		_, ok := c.callbackGids[gid]
		return ok
	})
	if inCallback {
		err := ErrCalledFromCallback{Op: op}
		logger.Errorf(ctx, "%s: %v", c, err)
		return err
	}
	return nil
}

// CreateInput appends an input pin built from its configuration bucket and
// returns the pin handle.
func (c *Controller) CreateInput(ctx context.Context, config string) (types.PinHandle, error) {
	handle := c.NextHandle()
	input, err := pin.NewInput(ctx, config, c.wrappedCallback, handle, c.handle, c.userData, c.pool)
	if err != nil {
		return types.InvalidPinHandle, err
	}
	c.locker.Do(ctx, func() {
		c.inputs = append(c.inputs, input)
	})
	return handle, nil
}

// CreateOutput appends an output pin built from its configuration bucket
// and returns the pin handle.
func (c *Controller) CreateOutput(ctx context.Context, config string) (types.PinHandle, error) {
	handle := c.NextHandle()
	output, err := pin.NewOutputWithPool(ctx, config, handle, c.handle, c.userData, c.pool)
	if err != nil {
		return types.InvalidPinHandle, err
	}
	c.locker.Do(ctx, func() {
		c.outputs = append(c.outputs, output)
	})
	return handle, nil
}

// Init finalizes the configuration and binds the control channel (when a
// control port was configured). Must be called after the pins are created
// and before Start.
func (c *Controller) Init(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "%s: Init", c)
	defer func() { logger.Debugf(ctx, "%s: /Init: %v", c, _err) }()

	return xsync.DoR1(ctx, &c.locker, func() error {
		if c.state != StateCreated {
			return ErrInvalidState{State: c.state, Op: "init"}
		}
		if c.controlPort != 0 {
			srv, err := control.NewServer(ctx, c.controlPort, c)
			if err != nil {
				return err
			}
			c.control = srv
		}
		c.state = StateInitialized
		return nil
	})
}

// Start starts all pins and the control-channel task, then delivers
// CommandStart synchronously through the callback before returning. Must
// not be invoked from inside the callback.
func (c *Controller) Start(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "%s: Start", c)
	defer func() { logger.Debugf(ctx, "%s: /Start: %v", c, _err) }()

	if err := c.assertNotInCallback(ctx, "start"); err != nil {
		return err
	}

	if err := xsync.DoR1(ctx, &c.locker, func() error {
		switch c.state {
		case StateInitialized, StateStopped:
		default:
			return ErrInvalidState{State: c.state, Op: "start"}
		}

		if c.control != nil {
			if err := c.control.Serve(ctx); err != nil {
				return err
			}
		}
		for _, in := range c.inputs {
			if err := in.Start(ctx); err != nil {
				return fmt.Errorf("unable to start %s: %w", in, err)
			}
		}
		for _, out := range c.outputs {
			if err := out.Start(ctx); err != nil {
				return fmt.Errorf("unable to start %s: %w", out, err)
			}
		}
		c.state = StateStarted
		return nil
	}); err != nil {
		return err
	}

	c.wrappedCallback(ctx, c.userData, c.handle, types.InvalidPinHandle, types.InvalidFrameHandle, types.CommandStart)
	return nil
}

// Stop stops all pins (quiescing the output queues) and delivers
// CommandStop synchronously. Idempotent. Must not be invoked from inside
// the callback.
func (c *Controller) Stop(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "%s: Stop", c)
	defer func() { logger.Debugf(ctx, "%s: /Stop: %v", c, _err) }()

	if err := c.assertNotInCallback(ctx, "stop"); err != nil {
		return err
	}

	var (
		inputs  []*pin.Input
		outputs []*pin.Output
	)
	alreadyStopped := false
	if err := xsync.DoR1(ctx, &c.locker, func() error {
		switch c.state {
		case StateStarted:
		case StateStopped:
			alreadyStopped = true
			return nil
		default:
			return ErrInvalidState{State: c.state, Op: "stop"}
		}
		c.state = StateStopped
		inputs = c.inputs
		outputs = c.outputs
		return nil
	}); err != nil {
		return err
	}
	if alreadyStopped {
		return nil
	}

	// Pins are stopped outside of the locker: their tasks may still be
	// inside the user callback, which is free to use the accessors.
	for _, in := range inputs {
		if err := in.Stop(ctx); err != nil {
			logger.Errorf(ctx, "unable to stop %s: %v", in, err)
		}
	}
	for _, out := range outputs {
		if err := out.Stop(ctx); err != nil {
			logger.Errorf(ctx, "unable to stop %s: %v", out, err)
		}
	}

	c.wrappedCallback(ctx, c.userData, c.handle, types.InvalidPinHandle, types.InvalidFrameHandle, types.CommandStop)
	return nil
}

// Close stops the module if it is running, tears down the pins and the
// control channel and removes the module from the registry. Terminal.
func (c *Controller) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "%s: Close", c)
	defer func() { logger.Debugf(ctx, "%s: /Close: %v", c, _err) }()

	if err := c.assertNotInCallback(ctx, "close"); err != nil {
		return err
	}

	if c.State(ctx) == StateStarted {
		if err := c.Stop(ctx); err != nil {
			logger.Errorf(ctx, "%s: unable to stop: %v", c, err)
		}
	}

	// The control channel is torn down outside of the locker: its task may
	// be mid-request, blocked on that same locker.
	var ctrl *control.Server
	c.locker.Do(ctx, func() {
		ctrl = c.control
		c.control = nil
	})
	if ctrl != nil {
		if err := ctrl.Close(ctx); err != nil {
			logger.Errorf(ctx, "unable to close the control channel: %v", err)
		}
	}

	return xsync.DoR1(ctx, &c.locker, func() error {
		if c.state == StateClosed {
			return nil
		}
		for _, in := range c.inputs {
			if err := in.Close(ctx); err != nil {
				logger.Errorf(ctx, "unable to close %s: %v", in, err)
			}
		}
		for _, out := range c.outputs {
			if err := out.Close(ctx); err != nil {
				logger.Errorf(ctx, "unable to close %s: %v", out, err)
			}
		}
		c.state = StateClosed
		unregister(ctx, c.handle)
		return nil
	})
}

// InputCount returns the number of input pins.
func (c *Controller) InputCount(ctx context.Context) int {
	return xsync.DoR1(ctx, &c.locker, func() int { return len(c.inputs) })
}

// OutputCount returns the number of output pins.
func (c *Controller) OutputCount(ctx context.Context) int {
	return xsync.DoR1(ctx, &c.locker, func() int { return len(c.outputs) })
}

// InputHandleAt returns the handle of the input pin at the given index, or
// the invalid handle if the index is out of range.
func (c *Controller) InputHandleAt(ctx context.Context, index int) types.PinHandle {
	return xsync.DoR1(ctx, &c.locker, func() types.PinHandle {
		if index < 0 || index >= len(c.inputs) {
			logger.Errorf(ctx, "%s: no input pin at index %d (count: %d)", c, index, len(c.inputs))
			return types.InvalidPinHandle
		}
		return c.inputs[index].Handle()
	})
}

// OutputHandleAt returns the handle of the output pin at the given index,
// or the invalid handle if the index is out of range.
func (c *Controller) OutputHandleAt(ctx context.Context, index int) types.PinHandle {
	return xsync.DoR1(ctx, &c.locker, func() types.PinHandle {
		if index < 0 || index >= len(c.outputs) {
			logger.Errorf(ctx, "%s: no output pin at index %d (count: %d)", c, index, len(c.outputs))
			return types.InvalidPinHandle
		}
		return c.outputs[index].Handle()
	})
}

// Output returns the output pin with the given handle, or nil.
func (c *Controller) Output(ctx context.Context, h types.PinHandle) *pin.Output {
	return xsync.DoR1(ctx, &c.locker, func() *pin.Output {
		for _, out := range c.outputs {
			if out.Handle() == h {
				return out
			}
		}
		return nil
	})
}

// Input returns the input pin with the given handle, or nil.
func (c *Controller) Input(ctx context.Context, h types.PinHandle) *pin.Input {
	return xsync.DoR1(ctx, &c.locker, func() *pin.Input {
		for _, in := range c.inputs {
			if in.Handle() == h {
				return in
			}
		}
		return nil
	})
}

// Send propagates the frame to the next pipeline stage through the given
// output pin. A missing output pin is logged and reported as success (the
// historical contract); an unknown frame handle is an error.
func (c *Controller) Send(ctx context.Context, out types.PinHandle, h types.FrameHandle) error {
	output := c.Output(ctx, out)
	if output == nil {
		logger.Errorf(ctx, "%s: unable to send anything, no output pin #%d is configured", c, out)
		return nil
	}
	if c.pool.Get(ctx, h) == nil {
		return framepool.ErrHandleNotFound{Handle: h}
	}
	return output.Send(ctx, h)
}

// StatusLine renders the one-line STATUS reply of the control channel.
func (c *Controller) StatusLine(ctx context.Context) string {
	return fmt.Sprintf(
		"state=%s uuid=%s inputs=%d outputs=%d frames=%d/%d",
		c.State(ctx),
		c.instanceID,
		c.InputCount(ctx),
		c.OutputCount(ctx),
		c.pool.Len(ctx),
		c.pool.MaxFrames(ctx),
	)
}
