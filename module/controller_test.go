package module

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/mediamodule/framepool"
	"github.com/xaionaro-go/mediamodule/pin"
	"github.com/xaionaro-go/mediamodule/types"
)

func newTestController(
	t *testing.T,
	ctx context.Context,
	callback pin.Callback,
	queueName string,
) *Controller {
	t.Helper()
	if callback == nil {
		callback = func(context.Context, any, types.ModuleHandle, types.PinHandle, types.FrameHandle, types.Command) {}
	}
	c := NewController(ctx, 0, callback, "type=test", nil, framepool.NewPool(0))
	Register(ctx, c)

	_, err := c.CreateInput(ctx, "in_type=queue,queue_name="+queueName)
	require.NoError(t, err)
	_, err = c.CreateOutput(ctx, "out_type=queue,queue_name="+queueName+"-out")
	require.NoError(t, err)
	require.NoError(t, c.Init(ctx))
	return c
}

func TestControllerLifecycle(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	var (
		mu       sync.Mutex
		commands []types.Command
	)
	callback := func(ctx context.Context, userData any, module types.ModuleHandle, pinH types.PinHandle, frameH types.FrameHandle, cmd types.Command) {
		mu.Lock()
		defer mu.Unlock()
		commands = append(commands, cmd)
		require.Equal(t, types.InvalidFrameHandle, frameH)
	}

	c := newTestController(t, ctx, callback, "lifecycle")
	require.Equal(t, StateInitialized, c.State(ctx))

	// CommandStart arrives synchronously, before Start returns.
	require.NoError(t, c.Start(ctx))
	require.Equal(t, StateStarted, c.State(ctx))
	mu.Lock()
	require.Equal(t, []types.Command{types.CommandStart}, commands)
	mu.Unlock()

	require.NoError(t, c.Stop(ctx))
	require.Equal(t, StateStopped, c.State(ctx))
	mu.Lock()
	require.Equal(t, []types.Command{types.CommandStart, types.CommandStop}, commands)
	mu.Unlock()

	// Stop is idempotent.
	require.NoError(t, c.Stop(ctx))

	// A stopped module can be started again.
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Close(ctx))
	require.Equal(t, StateClosed, c.State(ctx))
	require.Nil(t, Get(ctx, c.Handle()))
}

func TestControllerAccessors(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	c := newTestController(t, ctx, nil, "accessors")
	defer c.Close(ctx)

	require.Equal(t, 1, c.InputCount(ctx))
	require.Equal(t, 1, c.OutputCount(ctx))

	hIn := c.InputHandleAt(ctx, 0)
	require.True(t, hIn.IsValid())
	hOut := c.OutputHandleAt(ctx, 0)
	require.True(t, hOut.IsValid())
	require.NotEqual(t, hIn, hOut)

	require.Equal(t, types.InvalidPinHandle, c.InputHandleAt(ctx, 5))
	require.Equal(t, types.InvalidPinHandle, c.OutputHandleAt(ctx, -1))

	require.NotNil(t, c.Input(ctx, hIn))
	require.Nil(t, c.Input(ctx, hOut))
	require.NotNil(t, c.Output(ctx, hOut))
}

func TestControllerSend(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	pool := framepool.NewPool(0)
	c := NewController(ctx, 0, func(context.Context, any, types.ModuleHandle, types.PinHandle, types.FrameHandle, types.Command) {
	}, "type=test", nil, pool)
	Register(ctx, c)
	hOutPin, err := c.CreateOutput(ctx, "out_type=queue,queue_name=controller-send")
	require.NoError(t, err)
	require.NoError(t, c.Init(ctx))
	require.NoError(t, c.Start(ctx))
	defer c.Close(ctx)

	h, err := pool.Acquire(ctx)
	require.NoError(t, err)

	// A missing output pin is success-no-op (historical behavior); an
	// unknown frame is an error.
	require.NoError(t, c.Send(ctx, types.PinHandle(12345), h))
	require.ErrorAs(t, c.Send(ctx, hOutPin, types.FrameHandle(54321)), &framepool.ErrHandleNotFound{})

	require.NoError(t, c.Send(ctx, hOutPin, h))
	require.Equal(t, 1, pool.Release(ctx, h))
}

func TestControllerCallbackReentrancy(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	var c *Controller
	var reentrantErr error
	callback := func(ctx context.Context, userData any, module types.ModuleHandle, pinH types.PinHandle, frameH types.FrameHandle, cmd types.Command) {
		if cmd == types.CommandStart {
			reentrantErr = c.Stop(ctx)
		}
	}

	c = newTestController(t, ctx, callback, "reentrancy")
	require.NoError(t, c.Start(ctx))
	defer c.Close(ctx)

	require.ErrorAs(t, reentrantErr, &ErrCalledFromCallback{})
	require.Equal(t, StateStarted, c.State(ctx))
}

func TestControllerStatusLine(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	c := newTestController(t, ctx, nil, "status")
	defer c.Close(ctx)

	line := c.StatusLine(ctx)
	require.Contains(t, line, "state=initialized")
	require.Contains(t, line, "uuid="+c.InstanceID().String())
	require.Contains(t, line, "inputs=1")
	require.Contains(t, line, "outputs=1")
}
