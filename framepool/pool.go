// pool.go implements the handle-addressed, reference-counted frame pool.

// Package framepool provides a bounded pool of reference-counted media
// frames addressed by opaque handles. Producers acquire a frame, transports
// and callbacks addref/release it, and at refcount zero the slot is recycled
// for the next acquire. The mutex covers only the slot table; buffer I/O
// happens outside of it.
package framepool

import (
	"context"

	"github.com/xaionaro-go/mediamodule/frame"
	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/types"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// DefaultMaxFrames is the default cap of a pool.
const DefaultMaxFrames = 10

// slotItem binds a handle to its frame. The handle field is meaningful only
// while the slot is in use; a free slot keeps its frame object (and buffer)
// for reuse but carries the invalid handle.
type slotItem struct {
	handle types.FrameHandle
	frame  *frame.Frame
	free   bool
}

// Pool is a bounded set of frame slots. The zero value is not usable;
// construct with NewPool.
type Pool struct {
	locker     xsync.Mutex
	slots      []slotItem
	maxFrames  int
	nextHandle atomic.Int64
}

func NewPool(maxFrames int) *Pool {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	return &Pool{
		maxFrames: maxFrames,
	}
}

// Default is the process-wide pool backing the package-level API surface.
var Default = NewPool(DefaultMaxFrames)

// Acquire returns a handle to an available frame, reusing the first free
// slot or growing the pool up to the cap. The frame starts with refcount 1.
func (p *Pool) Acquire(ctx context.Context) (types.FrameHandle, error) {
	return xsync.DoR2(ctx, &p.locker, func() (types.FrameHandle, error) {
		// First, search for a free slot to reuse.
		for i := range p.slots {
			it := &p.slots[i]
			if !it.free {
				continue
			}
			it.handle = types.FrameHandle(p.nextHandle.Inc() - 1)
			it.frame.AddRef()
			it.free = false
			logger.Debugf(ctx, "re-using a slot with new handle [%d], pool size=%d", it.handle, len(p.slots))
			return it.handle, nil
		}

		if len(p.slots) >= p.maxFrames {
			err := ErrPoolExhausted{Size: len(p.slots)}
			logger.Errorf(ctx, "unable to acquire a frame: %v", err)
			return types.InvalidFrameHandle, err
		}

		// No free slot, create a new one.
		f := &frame.Frame{}
		f.AddRef()
		it := slotItem{
			handle: types.FrameHandle(p.nextHandle.Inc() - 1),
			frame:  f,
		}
		p.slots = append(p.slots, it)
		logger.Infof(ctx, "created a new slot with handle [%d], pool size=%d", it.handle, len(p.slots))
		return it.handle, nil
	})
}

// FrameInit carries the parameters of AcquireWithInit. Integer fields with
// values <= 0 count as unset, matching the handle-based public surface.
type FrameInit struct {
	MediaFormat types.MediaFormat
	MediaSize   int
	Width       int
	Height      int
	Depth       int
	SamplingFmt types.SamplingFormat
}

// AcquireWithInit validates init, acquires a frame and populates its headers,
// sizing the buffer accordingly.
//
// For video with a fully specified geometry and an explicit media size the
// two must agree; with no explicit size the size is derived from the
// geometry. An audio frame must always carry an explicit media size.
func (p *Pool) AcquireWithInit(ctx context.Context, init FrameInit) (types.FrameHandle, error) {
	hdrs := frame.Headers{
		MediaFormat: init.MediaFormat,
	}
	if init.MediaSize > 0 {
		hdrs.MediaSize = init.MediaSize
	}
	switch init.MediaFormat {
	case types.MediaFormatVideo:
		if init.Width > 0 {
			hdrs.Width = init.Width
		}
		if init.Height > 0 {
			hdrs.Height = init.Height
		}
		if init.Depth > 0 {
			hdrs.Depth = init.Depth
		}
		if init.SamplingFmt > 0 {
			hdrs.SamplingFmt = init.SamplingFmt
		}
		if init.MediaSize <= 0 {
			hdrs.MediaSize = hdrs.DeriveMediaSize()
			if hdrs.MediaSize < 0 {
				err := ErrInvalidArgument{Reason: "unable to derive the media size: unsupported sampling format"}
				logger.Errorf(ctx, "%v", err)
				return types.InvalidFrameHandle, err
			}
		} else if init.Width > 0 && init.Height > 0 && init.Depth > 0 && init.SamplingFmt > 0 {
			if calcSize := hdrs.DeriveMediaSize(); calcSize != init.MediaSize {
				err := ErrInvalidArgument{Reason: "the calculated media size does not equal the provided media size"}
				logger.Errorf(ctx, "%v", err)
				return types.InvalidFrameHandle, err
			}
		}
	case types.MediaFormatAudio:
		if init.MediaSize <= 0 {
			err := ErrInvalidArgument{Reason: "a media size is required for an audio frame"}
			logger.Errorf(ctx, "%v", err)
			return types.InvalidFrameHandle, err
		}
	}

	h, err := p.Acquire(ctx)
	if err != nil {
		return types.InvalidFrameHandle, err
	}
	f := p.Get(ctx, h)
	f.Create(&hdrs)
	return h, nil
}

// AddRef increments the reference counter of the frame identified by its
// handle and returns the new counter, or -1 if the handle is unknown.
func (p *Pool) AddRef(ctx context.Context, h types.FrameHandle) int {
	return xsync.DoR1(ctx, &p.locker, func() int {
		for i := range p.slots {
			it := &p.slots[i]
			if it.free || it.handle != h {
				continue
			}
			ret := it.frame.AddRef()
			logger.Debugf(ctx, "refcounter for frame handle [%d] is %d", h, ret)
			return ret
		}
		return -1
	})
}

// Release decrements the reference counter of the frame identified by its
// handle and returns the new counter, or -1 if the handle is unknown. When
// the counter reaches zero the slot is marked free and its handle cleared;
// the frame object (and its buffer) stays on the slot for reuse. A negative
// counter is a double release: it is logged and returned, the slot is left
// untouched.
func (p *Pool) Release(ctx context.Context, h types.FrameHandle) int {
	return xsync.DoR1(ctx, &p.locker, func() int {
		logger.Debugf(ctx, "release frame handle [%d], pool size=%d", h, len(p.slots))
		for i := range p.slots {
			it := &p.slots[i]
			if it.free || it.handle != h {
				continue
			}
			ret := it.frame.ReleaseRef()
			if ret < 0 {
				logger.Errorf(ctx, "refcount=%d for frame [%d], this should never happen", ret, h)
				return ret
			}
			if ret == 0 {
				it.free = true
				it.handle = types.InvalidFrameHandle
			}
			logger.Debugf(ctx, "refcounter for frame handle [%d] is %d", h, ret)
			return ret
		}
		return -1
	})
}

// Get returns the frame identified by its handle, or nil if the handle is
// unknown. The reference is borrowed: it stays valid for as long as the
// caller holds at least one ref on the handle; the pool never moves the
// frame object while a ref is live.
func (p *Pool) Get(ctx context.Context, h types.FrameHandle) *frame.Frame {
	return xsync.DoR1(ctx, &p.locker, func() *frame.Frame {
		for i := range p.slots {
			it := &p.slots[i]
			if !it.free && it.handle == h {
				return it.frame
			}
		}
		return nil
	})
}

// MediaSize returns the media size in bytes of the frame identified by its
// handle, or -1 if the handle is unknown.
func (p *Pool) MediaSize(ctx context.Context, h types.FrameHandle) int {
	f := p.Get(ctx, h)
	if f == nil {
		return -1
	}
	return f.MediaSize()
}

// Buffer returns the media buffer of the frame identified by its handle, or
// nil if the handle is unknown. The slice is borrowed under the same rules
// as Get.
func (p *Pool) Buffer(ctx context.Context, h types.FrameHandle) []byte {
	f := p.Get(ctx, h)
	if f == nil {
		return nil
	}
	return f.Buffer
}

// GetHeader returns the header value of the frame identified by its handle.
func (p *Pool) GetHeader(ctx context.Context, h types.FrameHandle, kind types.HeaderKind) (int64, error) {
	f := p.Get(ctx, h)
	if f == nil {
		return 0, ErrHandleNotFound{Handle: h}
	}
	return f.Headers.Get(kind)
}

// SetHeader sets the header value of the frame identified by its handle.
func (p *Pool) SetHeader(ctx context.Context, h types.FrameHandle, kind types.HeaderKind, value int64) error {
	f := p.Get(ctx, h)
	if f == nil {
		return ErrHandleNotFound{Handle: h}
	}
	return f.Headers.Set(kind, value)
}

// Len returns the current number of slots (free or not).
func (p *Pool) Len(ctx context.Context) int {
	return xsync.DoR1(ctx, &p.locker, func() int {
		return len(p.slots)
	})
}

// MaxFrames returns the pool cap.
func (p *Pool) MaxFrames(ctx context.Context) int {
	return xsync.DoR1(ctx, &p.locker, func() int {
		return p.maxFrames
	})
}

// SetMaxFrames changes the pool cap. Already-existing slots above the new
// cap are not reclaimed; only new growth is limited.
func (p *Pool) SetMaxFrames(ctx context.Context, v int) {
	p.locker.Do(ctx, func() {
		p.maxFrames = v
	})
}
