// frame.go defines the Frame record: a media buffer plus headers plus a
// reference counter.

package frame

import (
	"github.com/xaionaro-go/mediamodule/types"
)

// Frame holds one media buffer and its headers. The reference counter is
// manipulated only by the owning pool (under the pool's lock); the buffer
// pointer is stable across ref changes, a release-for-reuse does not move it.
type Frame struct {
	Headers Headers
	Buffer  []byte

	refCount int
}

// Create (re)initializes the frame for the given headers: the headers are
// copied in, the buffer is grown to MediaSize if needed, and the reference
// counter is set to 1.
func (f *Frame) Create(headers *Headers) {
	f.Headers = *headers
	if headers.Extra != nil {
		f.Headers.Extra = make(map[types.HeaderKind]int64, len(headers.Extra))
		for k, v := range headers.Extra {
			f.Headers.Extra[k] = v
		}
	}
	f.EnsureBuffer(headers.MediaSize)
	f.refCount = 1
}

// EnsureBuffer grows the buffer to at least size bytes, reusing the existing
// allocation when it is already large enough.
func (f *Frame) EnsureBuffer(size int) {
	if size <= 0 {
		return
	}
	if cap(f.Buffer) >= size {
		f.Buffer = f.Buffer[:size]
		return
	}
	f.Buffer = make([]byte, size)
}

// AddRef increments the reference counter and returns the new value.
func (f *Frame) AddRef() int {
	f.refCount++
	return f.refCount
}

// ReleaseRef decrements the reference counter and returns the new value.
// A negative result means a double release; the pool logs it and leaves the
// slot untouched.
func (f *Frame) ReleaseRef() int {
	f.refCount--
	return f.refCount
}

// RefCount returns the current reference counter.
func (f *Frame) RefCount() int {
	return f.refCount
}

// MediaSize returns the media size in bytes from the headers.
func (f *Frame) MediaSize() int {
	return f.Headers.MediaSize
}
