// header_kind.go defines the HeaderKind tags used to address frame headers.

package types

import "fmt"

// HeaderKind addresses one field of a frame's headers record in the
// GetHeader/SetHeader dispatch. The set is open: transports may define
// vendor kinds above HeaderKindUser.
type HeaderKind int

const (
	HeaderKindMediaFormat = HeaderKind(0x0)
	HeaderKindMediaSize   = HeaderKind(0x1)
	HeaderKindWidth       = HeaderKind(0x2)
	HeaderKindHeight      = HeaderKind(0x3)
	HeaderKindDepth       = HeaderKind(0x4)
	HeaderKindSamplingFmt = HeaderKind(0x5)
	HeaderKindTimestamp   = HeaderKind(0x6)
	HeaderKindFrameIndex  = HeaderKind(0x7)

	HeaderKindUser = HeaderKind(0x100)
)

func (k HeaderKind) String() string {
	switch k {
	case HeaderKindMediaFormat:
		return "media_format"
	case HeaderKindMediaSize:
		return "media_size"
	case HeaderKindWidth:
		return "width"
	case HeaderKindHeight:
		return "height"
	case HeaderKindDepth:
		return "depth"
	case HeaderKindSamplingFmt:
		return "sampling_fmt"
	case HeaderKindTimestamp:
		return "timestamp"
	case HeaderKindFrameIndex:
		return "frame_index"
	default:
		return "HeaderKind(" + fmt.Sprintf("%d", int(k)) + ")"
	}
}
