package framepool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/mediamodule/types"
)

func TestPoolExhaustion(t *testing.T) {
	ctx := context.Background()
	p := NewPool(3)

	h0, err := p.Acquire(ctx)
	require.NoError(t, err)
	h1, err := p.Acquire(ctx)
	require.NoError(t, err)
	h2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Less(t, h0, h1)
	require.Less(t, h1, h2)

	h3, err := p.Acquire(ctx)
	require.ErrorAs(t, err, &ErrPoolExhausted{})
	require.Equal(t, types.InvalidFrameHandle, h3)
	require.Equal(t, 3, p.Len(ctx))

	// Releasing the middle frame frees its slot for reuse under a fresh
	// handle; the slot count stays the same.
	require.Equal(t, 0, p.Release(ctx, h1))
	h4, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Greater(t, h4, h2)
	require.Equal(t, 3, p.Len(ctx))
}

func TestPoolAcquireReleaseRestoresState(t *testing.T) {
	ctx := context.Background()
	p := NewPool(3)

	h0, err := p.Acquire(ctx)
	require.NoError(t, err)
	lenBefore := p.Len(ctx)

	h1, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, p.Release(ctx, h1))
	require.Equal(t, lenBefore+1, p.Len(ctx))

	// The freed slot is reused by the next acquire instead of growing the
	// pool.
	h2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, lenBefore+1, p.Len(ctx))

	require.Equal(t, 0, p.Release(ctx, h2))
	require.Equal(t, 0, p.Release(ctx, h0))
}

func TestPoolAddRefRelease(t *testing.T) {
	ctx := context.Background()
	p := NewPool(0)

	h, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, p.Get(ctx, h).RefCount())

	require.Equal(t, 2, p.AddRef(ctx, h))
	require.Equal(t, 1, p.Release(ctx, h))
	require.Equal(t, 1, p.Get(ctx, h).RefCount())

	require.Equal(t, 0, p.Release(ctx, h))
	require.Nil(t, p.Get(ctx, h))
}

func TestPoolUnknownHandle(t *testing.T) {
	ctx := context.Background()
	p := NewPool(0)

	h, err := p.Acquire(ctx)
	require.NoError(t, err)
	lenBefore := p.Len(ctx)

	require.Equal(t, -1, p.AddRef(ctx, types.FrameHandle(12345)))
	require.Equal(t, -1, p.Release(ctx, types.FrameHandle(12345)))
	require.Equal(t, -1, p.MediaSize(ctx, types.FrameHandle(12345)))
	require.Nil(t, p.Buffer(ctx, types.FrameHandle(12345)))
	require.Equal(t, lenBefore, p.Len(ctx))
	require.Equal(t, 1, p.Get(ctx, h).RefCount())
}

func TestPoolHandleNotReusedWhileLive(t *testing.T) {
	ctx := context.Background()
	p := NewPool(2)

	h0, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, p.Release(ctx, h0))

	// The slot is reused, the handle is not.
	h1, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NotEqual(t, h0, h1)
	require.Equal(t, -1, p.Release(ctx, h0))
}

func TestAcquireWithInitVideoSizing(t *testing.T) {
	ctx := context.Background()
	p := NewPool(0)

	h, err := p.AcquireWithInit(ctx, FrameInit{
		MediaFormat: types.MediaFormatVideo,
		Width:       1920,
		Height:      1080,
		Depth:       8,
		SamplingFmt: types.SamplingFormatYCbCr422,
	})
	require.NoError(t, err)
	require.Equal(t, 1920*1080*2*8/8, p.MediaSize(ctx, h))
	require.Len(t, p.Buffer(ctx, h), 4147200)
}

func TestAcquireWithInitVideoSizeMismatch(t *testing.T) {
	ctx := context.Background()
	p := NewPool(0)

	h, err := p.AcquireWithInit(ctx, FrameInit{
		MediaFormat: types.MediaFormatVideo,
		MediaSize:   123,
		Width:       1920,
		Height:      1080,
		Depth:       8,
		SamplingFmt: types.SamplingFormatYCbCr422,
	})
	require.ErrorAs(t, err, &ErrInvalidArgument{})
	require.Equal(t, types.InvalidFrameHandle, h)
	require.Equal(t, 0, p.Len(ctx))
}

func TestAcquireWithInitAudioRequiresSize(t *testing.T) {
	ctx := context.Background()
	p := NewPool(0)

	h, err := p.AcquireWithInit(ctx, FrameInit{
		MediaFormat: types.MediaFormatAudio,
	})
	require.ErrorAs(t, err, &ErrInvalidArgument{})
	require.Equal(t, types.InvalidFrameHandle, h)

	h, err = p.AcquireWithInit(ctx, FrameInit{
		MediaFormat: types.MediaFormatAudio,
		MediaSize:   1024,
	})
	require.NoError(t, err)
	require.Equal(t, 1024, p.MediaSize(ctx, h))
}

func TestDoubleReleaseIsReported(t *testing.T) {
	ctx := context.Background()
	p := NewPool(0)

	h, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, p.Release(ctx, h))

	// The handle is cleared at refcount zero, so a second release on the
	// same handle reports "not found" rather than going negative.
	require.Equal(t, -1, p.Release(ctx, h))
}

func TestPoolHeaders(t *testing.T) {
	ctx := context.Background()
	p := NewPool(0)

	h, err := p.AcquireWithInit(ctx, FrameInit{
		MediaFormat: types.MediaFormatVideo,
		Width:       16,
		Height:      16,
		Depth:       8,
		SamplingFmt: types.SamplingFormatRGB,
	})
	require.NoError(t, err)

	v, err := p.GetHeader(ctx, h, types.HeaderKindWidth)
	require.NoError(t, err)
	require.Equal(t, int64(16), v)

	require.NoError(t, p.SetHeader(ctx, h, types.HeaderKindTimestamp, 90000))
	v, err = p.GetHeader(ctx, h, types.HeaderKindTimestamp)
	require.NoError(t, err)
	require.Equal(t, int64(90000), v)

	err = p.SetHeader(ctx, types.FrameHandle(12345), types.HeaderKindWidth, 1)
	require.ErrorAs(t, err, &ErrHandleNotFound{})
}
