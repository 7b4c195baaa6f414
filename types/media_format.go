// media_format.go defines the MediaFormat enum and its methods.

package types

import "fmt"

type MediaFormat int

const (
	MediaFormatUnknown = MediaFormat(-0x1)
	MediaFormatVideo   = MediaFormat(0x0)
	MediaFormatAudio   = MediaFormat(0x1)
	MediaFormatData    = MediaFormat(0x2)
)

func MediaFormats() []MediaFormat {
	return []MediaFormat{
		MediaFormatVideo,
		MediaFormatAudio,
		MediaFormatData,
	}
}

func (f MediaFormat) String() string {
	switch f {
	case MediaFormatVideo:
		return "video"
	case MediaFormatAudio:
		return "audio"
	case MediaFormatData:
		return "data"
	case MediaFormatUnknown:
		return "unknown"
	default:
		return "MediaFormat(" + fmt.Sprintf("%d", int(f)) + ")"
	}
}
