// headers.go defines the Headers record attached to every media frame.

// Package frame provides the reference-counted media frame record and its
// headers. Frames are owned by a framepool and addressed by handles; this
// package holds only the per-frame state.
package frame

import (
	"fmt"

	"github.com/xaionaro-go/mediamodule/types"
)

// Headers is the structured header block of a frame. The fixed fields cover
// what every transport needs to size and interpret the media buffer; anything
// else travels in Extra, addressed by a vendor HeaderKind.
type Headers struct {
	MediaFormat types.MediaFormat
	MediaSize   int
	Width       int
	Height      int
	Depth       int
	SamplingFmt types.SamplingFormat
	Timestamp   int64
	FrameIndex  int64

	Extra map[types.HeaderKind]int64
}

// DeriveMediaSize computes the media size in bytes from the video geometry,
// or -1 when the sampling format does not determine a pixel size (then the
// size must be provided externally).
func (h *Headers) DeriveMediaSize() int {
	pixelBits := h.SamplingFmt.PixelSizeInBits(h.Depth)
	if pixelBits < 0 {
		return -1
	}
	return h.Width * h.Height * pixelBits / 8
}

// Get returns the header value addressed by kind.
func (h *Headers) Get(kind types.HeaderKind) (int64, error) {
	switch kind {
	case types.HeaderKindMediaFormat:
		return int64(h.MediaFormat), nil
	case types.HeaderKindMediaSize:
		return int64(h.MediaSize), nil
	case types.HeaderKindWidth:
		return int64(h.Width), nil
	case types.HeaderKindHeight:
		return int64(h.Height), nil
	case types.HeaderKindDepth:
		return int64(h.Depth), nil
	case types.HeaderKindSamplingFmt:
		return int64(h.SamplingFmt), nil
	case types.HeaderKindTimestamp:
		return h.Timestamp, nil
	case types.HeaderKindFrameIndex:
		return h.FrameIndex, nil
	}
	if v, ok := h.Extra[kind]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown header kind %s", kind)
}

// Set stores the header value addressed by kind. Kinds at or above
// HeaderKindUser land in Extra.
func (h *Headers) Set(kind types.HeaderKind, value int64) error {
	switch kind {
	case types.HeaderKindMediaFormat:
		h.MediaFormat = types.MediaFormat(value)
	case types.HeaderKindMediaSize:
		h.MediaSize = int(value)
	case types.HeaderKindWidth:
		h.Width = int(value)
	case types.HeaderKindHeight:
		h.Height = int(value)
	case types.HeaderKindDepth:
		h.Depth = int(value)
	case types.HeaderKindSamplingFmt:
		h.SamplingFmt = types.SamplingFormat(value)
	case types.HeaderKindTimestamp:
		h.Timestamp = value
	case types.HeaderKindFrameIndex:
		h.FrameIndex = value
	default:
		if kind < types.HeaderKindUser {
			return fmt.Errorf("unknown header kind %s", kind)
		}
		if h.Extra == nil {
			h.Extra = map[types.HeaderKind]int64{}
		}
		h.Extra[kind] = value
	}
	return nil
}

func (h *Headers) String() string {
	return fmt.Sprintf(
		"%s %dB %dx%d depth=%d %s pts=%d idx=%d",
		h.MediaFormat, h.MediaSize, h.Width, h.Height,
		h.Depth, h.SamplingFmt, h.Timestamp, h.FrameIndex,
	)
}
