package transport

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/mediamodule/frame"
	"github.com/xaionaro-go/mediamodule/moduleconfig"
	"github.com/xaionaro-go/mediamodule/types"
)

func TestTCPTransport(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	receiver, err := newTCPReceiver(ctx, moduleconfig.ParseParams("in_type=tcp,in_port=0"))
	require.NoError(t, err)
	defer receiver.Close(ctx)
	port := receiver.Addr().(*net.TCPAddr).Port

	sender, err := newTCPSender(ctx, moduleconfig.ParseParams(
		fmt.Sprintf("out_type=tcp,out_host=127.0.0.1,out_port=%d", port),
	))
	require.NoError(t, err)
	defer sender.Close(ctx)

	hdrs := frame.Headers{
		MediaFormat: types.MediaFormatData,
		MediaSize:   3,
		FrameIndex:  1,
	}
	require.NoError(t, sender.Send(ctx, &hdrs, []byte{1, 2, 3}))

	gotHdrs, gotPayload, err := receiver.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, hdrs, gotHdrs)
	require.Equal(t, []byte{1, 2, 3}, gotPayload)

	// The stream keeps framing across multiple sends.
	hdrs.FrameIndex = 2
	require.NoError(t, sender.Send(ctx, &hdrs, []byte{4, 5, 6}))
	gotHdrs, gotPayload, err = receiver.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), gotHdrs.FrameIndex)
	require.Equal(t, []byte{4, 5, 6}, gotPayload)
}

func TestUDPTransport(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	receiver, err := newUDPReceiver(ctx, moduleconfig.ParseParams("in_type=udp,in_addr=127.0.0.1,in_port=0"))
	require.NoError(t, err)
	defer receiver.Close(ctx)
	port := receiver.Addr().(*net.UDPAddr).Port

	sender, err := newUDPSender(ctx, moduleconfig.ParseParams(
		fmt.Sprintf("out_type=udp,out_host=127.0.0.1,out_port=%d", port),
	))
	require.NoError(t, err)
	defer sender.Close(ctx)

	hdrs := frame.Headers{
		MediaFormat: types.MediaFormatAudio,
		MediaSize:   2,
		Timestamp:   48000,
	}
	require.NoError(t, sender.Send(ctx, &hdrs, []byte{9, 8}))

	gotHdrs, gotPayload, err := receiver.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, hdrs, gotHdrs)
	require.Equal(t, []byte{9, 8}, gotPayload)
}

func TestQueueTransport(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	cfg := moduleconfig.ParseParams("in_type=queue,queue_name=transport-test")
	receiver, err := newQueueReceiver(ctx, cfg)
	require.NoError(t, err)
	defer receiver.Close(ctx)

	sender, err := newQueueSender(ctx, moduleconfig.ParseParams("out_type=queue,queue_name=transport-test"))
	require.NoError(t, err)
	defer sender.Close(ctx)

	hdrs := frame.Headers{MediaFormat: types.MediaFormatData, MediaSize: 1}
	payload := []byte{42}
	require.NoError(t, sender.Send(ctx, &hdrs, payload))

	// The hand-off copies the payload: mutating the sender's buffer after
	// Send must not affect what the receiver observes.
	payload[0] = 0

	gotHdrs, gotPayload, err := receiver.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, hdrs, gotHdrs)
	require.Equal(t, []byte{42}, gotPayload)
}

func TestFileTransport(t *testing.T) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFn()

	path := t.TempDir() + "/frames.bin"
	cfg := moduleconfig.ParseParams("out_type=file,file_path=" + path)
	sender, err := newFileSender(ctx, cfg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		hdrs := frame.Headers{MediaFormat: types.MediaFormatData, MediaSize: 1, FrameIndex: int64(i)}
		require.NoError(t, sender.Send(ctx, &hdrs, []byte{byte(i)}))
	}
	require.NoError(t, sender.Close(ctx))

	receiver, err := newFileReceiver(ctx, moduleconfig.ParseParams("in_type=file,file_path="+path))
	require.NoError(t, err)
	defer receiver.Close(ctx)

	for i := 0; i < 3; i++ {
		gotHdrs, gotPayload, err := receiver.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(i), gotHdrs.FrameIndex)
		require.Equal(t, []byte{byte(i)}, gotPayload)
	}
	_, _, err = receiver.Receive(ctx)
	require.Error(t, err)
	require.True(t, IsClosed(err))
}
