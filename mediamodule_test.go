package mediamodule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/mediamodule/types"
)

// Two modules joined by the in-process loopback transport: whatever the
// producer sends through its output pin arrives at the consumer's callback
// in send order.
func TestLoopbackPipeline(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	var (
		mu       sync.Mutex
		received []byte
	)
	gotAll := make(chan struct{})
	sinkCallback := func(ctx context.Context, userData any, hModule ModuleHandle, hPin PinHandle, hFrame FrameHandle, cmd Command) {
		if cmd != CommandTick {
			return
		}
		require.Equal(t, "sink-user-data", userData)
		buf := GetFrameBuffer(ctx, hFrame)
		mu.Lock()
		defer mu.Unlock()
		received = append(received, buf[0])
		if len(received) == 2 {
			close(gotAll)
		}
	}

	hSink := CreateModuleExt(ctx, 0, sinkCallback, "type=sink,in_type=queue,queue_name=api-e2e", "sink-user-data")
	require.NotEqual(t, InvalidModuleHandle, hSink)
	defer Close(ctx, hSink)

	noopCallback := func(context.Context, any, ModuleHandle, PinHandle, FrameHandle, Command) {}
	hSource := CreateModule(ctx, 0, noopCallback, "type=source,out_type=queue,queue_name=api-e2e")
	require.NotEqual(t, InvalidModuleHandle, hSource)
	defer Close(ctx, hSource)

	require.Equal(t, 1, GetInputCount(ctx, hSink))
	require.Equal(t, 0, GetOutputCount(ctx, hSink))
	require.Equal(t, 1, GetOutputCount(ctx, hSource))

	require.Equal(t, 0, StartModule(ctx, hSink))
	require.Equal(t, 0, StartModule(ctx, hSource))

	hOut := GetOutputHandle(ctx, hSource, 0)
	require.True(t, hOut.IsValid())

	for _, payload := range []byte{'a', 'b'} {
		hFrame := FrameCreateExt(ctx, FrameInit{
			MediaFormat: types.MediaFormatData,
			MediaSize:   1,
		})
		require.NotEqual(t, InvalidFrameHandle, hFrame)
		GetFrameBuffer(ctx, hFrame)[0] = payload
		require.Equal(t, 0, Send(ctx, hSource, hOut, hFrame))
		FrameRelease(ctx, hFrame)
	}

	select {
	case <-gotAll:
	case <-ctx.Done():
		t.Fatal("timed out waiting for the frames")
	}
	mu.Lock()
	require.Equal(t, []byte{'a', 'b'}, received)
	mu.Unlock()

	require.Equal(t, 0, StopModule(ctx, hSource))
	require.Equal(t, 0, StopModule(ctx, hSink))
}

func TestFrameSurface(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	h := FrameCreateExt(ctx, FrameInit{
		MediaFormat: types.MediaFormatVideo,
		Width:       1920,
		Height:      1080,
		Depth:       8,
		SamplingFmt: types.SamplingFormatYCbCr422,
	})
	require.NotEqual(t, InvalidFrameHandle, h)
	require.Equal(t, 4147200, FrameGetSize(ctx, h))

	require.Equal(t, int64(1920), GetFrameHeaders(ctx, h, types.HeaderKindWidth))
	SetFrameHeaders(ctx, h, types.HeaderKindTimestamp, 90000)
	require.Equal(t, int64(90000), GetFrameHeaders(ctx, h, types.HeaderKindTimestamp))

	require.Equal(t, 2, FrameAddRef(ctx, h))
	require.Equal(t, 1, FrameRelease(ctx, h))
	require.Equal(t, 0, FrameRelease(ctx, h))
	require.Equal(t, -1, FrameRelease(ctx, h))

	// An audio frame without an explicit media size is rejected.
	require.Equal(t, InvalidFrameHandle, FrameCreateExt(ctx, FrameInit{
		MediaFormat: types.MediaFormatAudio,
	}))
}

func TestParameters(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	maxBefore := GetParameter(ctx, ParameterMaxFramesInList)
	require.Greater(t, maxBefore, 0)
	defer SetParameter(ctx, ParameterMaxFramesInList, maxBefore)

	SetParameter(ctx, ParameterMaxFramesInList, maxBefore+5)
	require.Equal(t, maxBefore+5, GetParameter(ctx, ParameterMaxFramesInList))

	require.GreaterOrEqual(t, GetParameter(ctx, ParameterCurFramesInList), 0)
}

func TestUnknownModuleHandle(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	require.Equal(t, -1, StartModule(ctx, ModuleHandle(12345)))
	require.Equal(t, -1, StopModule(ctx, ModuleHandle(12345)))
	require.Equal(t, -1, Close(ctx, ModuleHandle(12345)))
	require.Equal(t, -1, GetInputCount(ctx, ModuleHandle(12345)))
	require.Equal(t, InvalidPinHandle, GetInputHandle(ctx, ModuleHandle(12345), 0))
}
