// input.go implements the input pin: a dedicated receive task that turns
// transport framing units into pool frames and delivers them to the user
// callback in receive order.

package pin

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt"
	"github.com/xaionaro-go/mediamodule/framepool"
	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/moduleconfig"
	"github.com/xaionaro-go/mediamodule/pin/transport"
	"github.com/xaionaro-go/mediamodule/types"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// Input is an input pin. It owns its receive task between Start and Stop;
// one reference on each delivered frame is held for the duration of the
// callback and released right after it returns.
type Input struct {
	handle   types.PinHandle
	module   types.ModuleHandle
	config   moduleconfig.Params
	pool     *framepool.Pool
	callback Callback
	userData any

	locker    xsync.Mutex
	receiver  transport.Receiver
	cancelFn  context.CancelFunc
	doneChan  chan struct{}
	isRunning bool

	FramesReceived atomic.Uint64
	BytesReceived  atomic.Uint64
}

var _ Abstract = (*Input)(nil)

// NewInput builds an input pin from its configuration bucket. The transport
// itself is constructed on Start, so a stopped pin holds no socket.
func NewInput(
	ctx context.Context,
	config string,
	callback Callback,
	handle types.PinHandle,
	module types.ModuleHandle,
	userData any,
	pool *framepool.Pool,
) (*Input, error) {
	logger.Debugf(ctx, "NewInput(%d, '%s')", handle, config)
	if callback == nil {
		return nil, fmt.Errorf("an input pin requires a callback")
	}
	return &Input{
		handle:   handle,
		module:   module,
		config:   moduleconfig.ParseParams(config),
		pool:     pool,
		callback: callback,
		userData: userData,
	}, nil
}

func (i *Input) String() string {
	return fmt.Sprintf("in#%d", i.handle)
}

func (i *Input) Handle() types.PinHandle {
	return i.handle
}

func (i *Input) Polarity() Polarity {
	return PolarityInput
}

func (i *Input) Config() moduleconfig.Params {
	return i.config
}

// Transport returns the live receiver, or nil while the pin is stopped.
func (i *Input) Transport(ctx context.Context) transport.Receiver {
	return xsync.DoR1(ctx, &i.locker, func() transport.Receiver { return i.receiver })
}

// Start constructs the transport receiver and spawns the receive task.
func (i *Input) Start(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "%s: Start", i)
	defer func() { logger.Debugf(ctx, "%s: /Start: %v", i, _err) }()

	return xsync.DoR1(ctx, &i.locker, func() error {
		if i.isRunning {
			return ErrAlreadyStarted{}
		}

		receiver, err := transport.NewReceiver(ctx, i.config)
		if err != nil {
			return fmt.Errorf("unable to initialize the input transport: %w", err)
		}

		// The receive task must outlive the Start call's context.
		loopCtx, cancelFn := context.WithCancel(xcontext.DetachDone(ctx))
		loopCtx = belt.WithField(loopCtx, "pin", i.String())
		doneChan := make(chan struct{})

		i.receiver = receiver
		i.cancelFn = cancelFn
		i.doneChan = doneChan
		i.isRunning = true

		observability.Go(loopCtx, func(ctx context.Context) {
			defer close(doneChan)
			i.receiveLoop(ctx, receiver)
		})
		return nil
	})
}

func (i *Input) receiveLoop(ctx context.Context, receiver transport.Receiver) {
	logger.Debugf(ctx, "%s: receiveLoop", i)
	defer logger.Debugf(ctx, "%s: /receiveLoop", i)

	for {
		hdrs, payload, err := receiver.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if transport.IsClosed(err) {
				// The stream ended on its own (not via Stop); tell the
				// application.
				logger.Infof(ctx, "%s: the stream ended: %v", i, err)
			} else {
				logger.Errorf(ctx, "%s: unrecoverable transport error: %v", i, err)
			}
			i.invokeCallback(ctx, types.InvalidFrameHandle, types.CommandQuit)
			return
		}

		if hdrs.MediaSize != len(payload) {
			logger.Warnf(ctx, "%s: the header media size (%d) does not match the payload size (%d)", i, hdrs.MediaSize, len(payload))
			hdrs.MediaSize = len(payload)
		}

		h, err := i.pool.Acquire(ctx)
		if err != nil {
			// Backpressure: the application still holds too many frames;
			// this framing unit is dropped.
			logger.Errorf(ctx, "%s: dropping a frame: %v", i, err)
			continue
		}
		f := i.pool.Get(ctx, h)
		f.Create(&hdrs)
		copy(f.Buffer, payload)

		i.FramesReceived.Inc()
		i.BytesReceived.Add(uint64(len(payload)))

		i.invokeCallback(ctx, h, types.CommandTick)
		i.pool.Release(ctx, h)
	}
}

// invokeCallback calls back the application. The pool mutex is never held
// here; the callback is free to addref/release.
func (i *Input) invokeCallback(ctx context.Context, h types.FrameHandle, cmd types.Command) {
	logger.Tracef(ctx, "%s: invokeCallback(%d, %s)", i, h, cmd)
	defer logger.Tracef(ctx, "%s: /invokeCallback(%d, %s)", i, h, cmd)
	i.callback(ctx, i.userData, i.module, i.handle, h, cmd)
}

// Stop cancels the receive task, unblocks the transport and waits for the
// task to drain. Idempotent.
func (i *Input) Stop(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "%s: Stop", i)
	defer func() { logger.Debugf(ctx, "%s: /Stop: %v", i, _err) }()

	var (
		receiver transport.Receiver
		doneChan chan struct{}
	)
	i.locker.Do(ctx, func() {
		if !i.isRunning {
			return
		}
		i.isRunning = false
		i.cancelFn()
		receiver = i.receiver
		doneChan = i.doneChan
		i.receiver = nil
	})
	if receiver == nil {
		return nil
	}

	// Closing the transport unblocks a Receive stuck in a syscall.
	if err := receiver.Close(ctx); err != nil {
		logger.Warnf(ctx, "%s: unable to close the transport: %v", i, err)
	}
	<-doneChan
	return nil
}

// Close is Stop; an input pin holds no other resources.
func (i *Input) Close(ctx context.Context) error {
	return i.Stop(ctx)
}
