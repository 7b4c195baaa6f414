// sampling_format.go defines the SamplingFormat enum and the pixel size table.

package types

import "fmt"

type SamplingFormat int

const (
	SamplingFormatUnknown  = SamplingFormat(0x0)
	SamplingFormatBGRA     = SamplingFormat(0x1)
	SamplingFormatRGBA     = SamplingFormat(0x2)
	SamplingFormatBGR      = SamplingFormat(0x3)
	SamplingFormatRGB      = SamplingFormat(0x4)
	SamplingFormatYCbCr422 = SamplingFormat(0x5)
)

func SamplingFormats() []SamplingFormat {
	return []SamplingFormat{
		SamplingFormatBGRA,
		SamplingFormatRGBA,
		SamplingFormatBGR,
		SamplingFormatRGB,
		SamplingFormatYCbCr422,
	}
}

// PixelSizeInBits returns the size of one pixel in bits for the given
// per-component depth, or -1 if the sampling format is not supported
// (in which case the media size must be provided externally).
func (f SamplingFormat) PixelSizeInBits(depth int) int {
	switch f {
	case SamplingFormatBGRA, SamplingFormatRGBA:
		return 4 * depth
	case SamplingFormatBGR, SamplingFormatRGB:
		return 3 * depth
	case SamplingFormatYCbCr422:
		return 2 * depth
	default:
		return -1
	}
}

func (f SamplingFormat) String() string {
	switch f {
	case SamplingFormatBGRA:
		return "BGRA"
	case SamplingFormatRGBA:
		return "RGBA"
	case SamplingFormatBGR:
		return "BGR"
	case SamplingFormatRGB:
		return "RGB"
	case SamplingFormatYCbCr422:
		return "YCbCr_4:2:2"
	case SamplingFormatUnknown:
		return "unknown"
	default:
		return "SamplingFormat(" + fmt.Sprintf("%d", int(f)) + ")"
	}
}
