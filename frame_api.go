// frame_api.go is the handle-typed frame surface: all operations run
// against the process-wide frame pool and fold errors into sentinel
// returns plus a log entry, so nothing ever throws across this interface.

package mediamodule

import (
	"context"

	"github.com/xaionaro-go/mediamodule/framepool"
	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/types"
)

// FrameCreate returns a handle to an available frame (reusing a free pool
// slot if any), with its reference counter at 1. It returns
// InvalidFrameHandle if the pool is exhausted.
func FrameCreate(ctx context.Context) types.FrameHandle {
	h, err := framepool.Default.Acquire(ctx)
	if err != nil {
		return types.InvalidFrameHandle
	}
	return h
}

// FrameCreateExt is FrameCreate plus header initialization: the frame's
// headers are populated from init and the buffer is sized accordingly.
// Invalid parameters yield InvalidFrameHandle.
func FrameCreateExt(ctx context.Context, init FrameInit) types.FrameHandle {
	h, err := framepool.Default.AcquireWithInit(ctx, init)
	if err != nil {
		return types.InvalidFrameHandle
	}
	return h
}

// FrameAddRef increments the frame's reference counter and returns the new
// value, or -1 if the handle is unknown.
func FrameAddRef(ctx context.Context, h types.FrameHandle) int {
	return framepool.Default.AddRef(ctx, h)
}

// FrameRelease decrements the frame's reference counter and returns the
// new value, or -1 if the handle is unknown. At zero the frame slot is
// recycled and the handle becomes invalid.
func FrameRelease(ctx context.Context, h types.FrameHandle) int {
	return framepool.Default.Release(ctx, h)
}

// FrameGetSize returns the media size in bytes of the frame, or -1 if the
// handle is unknown.
func FrameGetSize(ctx context.Context, h types.FrameHandle) int {
	return framepool.Default.MediaSize(ctx, h)
}

// GetFrameBuffer returns the frame's media buffer, or nil if the handle is
// unknown. The slice is borrowed: it stays valid while the caller holds at
// least one reference on the frame.
func GetFrameBuffer(ctx context.Context, h types.FrameHandle) []byte {
	return framepool.Default.Buffer(ctx, h)
}

// GetFrameHeaders returns the header value addressed by kind, or 0 (plus a
// log entry) if the handle or the kind is unknown.
func GetFrameHeaders(ctx context.Context, h types.FrameHandle, kind types.HeaderKind) int64 {
	v, err := framepool.Default.GetHeader(ctx, h, kind)
	if err != nil {
		logger.Errorf(ctx, "unable to get header %s of frame [%d]: %v", kind, h, err)
		return 0
	}
	return v
}

// SetFrameHeaders sets the header value addressed by kind; an unknown
// handle or kind is logged and ignored.
func SetFrameHeaders(ctx context.Context, h types.FrameHandle, kind types.HeaderKind, value int64) {
	if err := framepool.Default.SetHeader(ctx, h, kind, value); err != nil {
		logger.Errorf(ctx, "unable to set header %s of frame [%d]: %v", kind, h, err)
	}
}

// GetParameter returns a library-instance parameter value, or -1 for an
// unknown parameter.
func GetParameter(ctx context.Context, param types.Parameter) int {
	switch param {
	case types.ParameterMaxFramesInList:
		return framepool.Default.MaxFrames(ctx)
	case types.ParameterCurFramesInList:
		return framepool.Default.Len(ctx)
	default:
		logger.Errorf(ctx, "unknown parameter %s", param)
		return -1
	}
}

// SetParameter sets a library-instance parameter; read-only and unknown
// parameters are logged and ignored.
func SetParameter(ctx context.Context, param types.Parameter, value int) {
	switch param {
	case types.ParameterMaxFramesInList:
		framepool.Default.SetMaxFrames(ctx, value)
	default:
		logger.Errorf(ctx, "parameter %s is not settable", param)
	}
}
