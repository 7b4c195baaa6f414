// output.go implements the output pin: Send addrefs and enqueues, a
// dedicated send task drains the FIFO through the transport in order and
// releases the reference after transmission.

package pin

import (
	"context"
	"fmt"
	"time"

	"github.com/eapache/queue"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
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

// flushTimeout bounds how long Stop waits for the queued frames to leave
// through the transport before truncating the queue.
const flushTimeout = 3 * time.Second

// Output is an output pin. The FIFO between Send and the send task is
// unbounded, so Send never blocks on the queue itself; backpressure shows
// up as pool exhaustion on the producing side instead.
type Output struct {
	handle types.PinHandle
	module types.ModuleHandle
	config moduleconfig.Params
	pool   *framepool.Pool

	locker      xsync.Mutex
	sendQueue   *queue.Queue
	queueNotify chan struct{}
	sender      transport.Sender
	cancelFn    context.CancelFunc
	doneChan    chan struct{}
	isRunning   bool
	params      map[types.OutputParameter]any

	FramesSent atomic.Uint64
	BytesSent  atomic.Uint64
}

var _ Abstract = (*Output)(nil)

// NewOutput builds an output pin from its configuration bucket. The
// transport itself is constructed on Start.
func NewOutput(
	ctx context.Context,
	config string,
	handle types.PinHandle,
	module types.ModuleHandle,
	userData any,
) (*Output, error) {
	return NewOutputWithPool(ctx, config, handle, module, userData, framepool.Default)
}

// NewOutputWithPool is NewOutput against an explicit frame pool.
func NewOutputWithPool(
	ctx context.Context,
	config string,
	handle types.PinHandle,
	module types.ModuleHandle,
	userData any,
	pool *framepool.Pool,
) (*Output, error) {
	logger.Debugf(ctx, "NewOutput(%d, '%s')", handle, config)
	return &Output{
		handle:      handle,
		module:      module,
		config:      moduleconfig.ParseParams(config),
		pool:        pool,
		sendQueue:   queue.New(),
		queueNotify: make(chan struct{}, 1),
		params:      map[types.OutputParameter]any{},
	}, nil
}

func (o *Output) String() string {
	return fmt.Sprintf("out#%d", o.handle)
}

func (o *Output) Handle() types.PinHandle {
	return o.handle
}

func (o *Output) Polarity() Polarity {
	return PolarityOutput
}

func (o *Output) Config() moduleconfig.Params {
	return o.config
}

// SetParameter stores an output tunable. Parameters are picked up by the
// transport on the next Start.
func (o *Output) SetParameter(ctx context.Context, param types.OutputParameter, value any) {
	logger.Debugf(ctx, "%s: SetParameter(%s, %v)", o, param, value)
	o.locker.Do(ctx, func() {
		o.params[param] = value
		switch param {
		case types.OutputParameterDestinationHost:
			o.config = overrideParam(o.config, transport.KeyOutHost, fmt.Sprintf("%v", value))
		case types.OutputParameterDestinationPort:
			o.config = overrideParam(o.config, transport.KeyOutPort, fmt.Sprintf("%v", value))
		case types.OutputParameterInterface:
			o.config = overrideParam(o.config, transport.KeyInterface, fmt.Sprintf("%v", value))
		case types.OutputParameterReadBufferSize:
			o.config = overrideParam(o.config, transport.KeyRcvBuf, fmt.Sprintf("%v", value))
		}
	})
}

// Parameter returns a previously set output tunable.
func (o *Output) Parameter(ctx context.Context, param types.OutputParameter) (any, bool) {
	return xsync.DoR2(ctx, &o.locker, func() (any, bool) {
		v, ok := o.params[param]
		return v, ok
	})
}

func overrideParam(p moduleconfig.Params, key, value string) moduleconfig.Params {
	for idx := range p {
		if p[idx].Key == key {
			p[idx].Value = value
			return p
		}
	}
	return append(p, moduleconfig.Param{Key: key, Value: value})
}

// Start constructs the transport sender and spawns the send task.
func (o *Output) Start(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "%s: Start", o)
	defer func() { logger.Debugf(ctx, "%s: /Start: %v", o, _err) }()

	return xsync.DoR1(ctx, &o.locker, func() error {
		if o.isRunning {
			return ErrAlreadyStarted{}
		}

		sender, err := transport.NewSender(ctx, o.config)
		if err != nil {
			return fmt.Errorf("unable to initialize the output transport: %w", err)
		}

		loopCtx, cancelFn := context.WithCancel(xcontext.DetachDone(ctx))
		loopCtx = belt.WithField(loopCtx, "pin", o.String())
		doneChan := make(chan struct{})

		o.sender = sender
		o.cancelFn = cancelFn
		o.doneChan = doneChan
		o.isRunning = true

		observability.Go(loopCtx, func(ctx context.Context) {
			defer close(doneChan)
			o.sendLoop(ctx, sender)
		})
		return nil
	})
}

// Send takes one reference on the frame and enqueues its handle; it returns
// immediately. The reference is released by the send task after the frame
// left through the transport.
func (o *Output) Send(ctx context.Context, h types.FrameHandle) (_err error) {
	logger.Tracef(ctx, "%s: Send(%d)", o, h)
	defer func() { logger.Tracef(ctx, "%s: /Send(%d): %v", o, h, _err) }()

	if ret := o.pool.AddRef(ctx, h); ret < 0 {
		return framepool.ErrHandleNotFound{Handle: h}
	}
	o.locker.Do(ctx, func() {
		o.sendQueue.Add(h)
	})
	select {
	case o.queueNotify <- struct{}{}:
	default:
	}
	return nil
}

// QueueLength returns the number of frames waiting in the send queue.
func (o *Output) QueueLength(ctx context.Context) int {
	return xsync.DoR1(ctx, &o.locker, func() int {
		return o.sendQueue.Length()
	})
}

func (o *Output) popQueue(ctx context.Context) (types.FrameHandle, bool) {
	return xsync.DoR2(ctx, &o.locker, func() (types.FrameHandle, bool) {
		if o.sendQueue.Length() == 0 {
			return types.InvalidFrameHandle, false
		}
		return o.sendQueue.Remove().(types.FrameHandle), true
	})
}

func (o *Output) sendLoop(ctx context.Context, sender transport.Sender) {
	logger.Debugf(ctx, "%s: sendLoop", o)
	defer logger.Debugf(ctx, "%s: /sendLoop", o)

	for {
		if ctx.Err() != nil {
			o.flush(ctx, sender)
			return
		}
		h, ok := o.popQueue(ctx)
		if !ok {
			select {
			case <-ctx.Done():
				o.flush(ctx, sender)
				return
			case <-o.queueNotify:
				continue
			}
		}
		o.transmit(ctx, sender, h)
	}
}

func (o *Output) transmit(ctx context.Context, sender transport.Sender, h types.FrameHandle) {
	defer o.pool.Release(ctx, h)

	f := o.pool.Get(ctx, h)
	if f == nil {
		logger.Errorf(ctx, "%s: frame [%d] disappeared from the pool before transmission", o, h)
		return
	}
	if err := sender.Send(ctx, &f.Headers, f.Buffer); err != nil {
		if ctx.Err() == nil && !transport.IsClosed(err) {
			errmon.ObserveErrorCtx(ctx, err)
			logger.Errorf(ctx, "%s: unable to send frame [%d]: %v", o, h, err)
		}
		return
	}
	o.FramesSent.Inc()
	o.BytesSent.Add(uint64(len(f.Buffer)))
}

// flush drains what is still queued after a stop was requested; frames that
// do not make it out before flushTimeout are released unsent.
func (o *Output) flush(ctx context.Context, sender transport.Sender) {
	flushCtx, cancelFn := context.WithTimeout(xcontext.DetachDone(ctx), flushTimeout)
	defer cancelFn()

	for {
		h, ok := o.popQueue(flushCtx)
		if !ok {
			return
		}
		if flushCtx.Err() != nil {
			logger.Warnf(ctx, "%s: truncating the send queue, dropping frame [%d]", o, h)
			o.pool.Release(flushCtx, h)
			continue
		}
		o.transmit(flushCtx, sender, h)
	}
}

// Stop cancels the send task, lets it flush the queue and waits for it to
// exit, then closes the transport. Idempotent.
func (o *Output) Stop(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "%s: Stop", o)
	defer func() { logger.Debugf(ctx, "%s: /Stop: %v", o, _err) }()

	var (
		sender   transport.Sender
		doneChan chan struct{}
	)
	o.locker.Do(ctx, func() {
		if !o.isRunning {
			return
		}
		o.isRunning = false
		o.cancelFn()
		sender = o.sender
		doneChan = o.doneChan
		o.sender = nil
	})
	if sender == nil {
		return nil
	}

	<-doneChan
	return sender.Close(ctx)
}

// Close is Stop; any frames still queued were already released by the
// flush.
func (o *Output) Close(ctx context.Context) error {
	return o.Stop(ctx)
}
