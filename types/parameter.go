// parameter.go defines the library-level and output-pin parameter tags.

package types

import "fmt"

// Parameter addresses a library-instance parameter in GetParameter /
// SetParameter.
type Parameter int

const (
	// ParameterMaxFramesInList is the frame pool capacity (read-write).
	ParameterMaxFramesInList = Parameter(0x0)
	// ParameterCurFramesInList is the current number of pool slots (read-only).
	ParameterCurFramesInList = Parameter(0x1)
)

func (p Parameter) String() string {
	switch p {
	case ParameterMaxFramesInList:
		return "MAX_FRAMES_IN_LIST"
	case ParameterCurFramesInList:
		return "CUR_FRAMES_IN_LIST"
	default:
		return "Parameter(" + fmt.Sprintf("%d", int(p)) + ")"
	}
}

// OutputParameter addresses a tunable of an output pin. The set is open:
// transports may define vendor parameters above OutputParameterUser.
type OutputParameter int

const (
	OutputParameterBitrate         = OutputParameter(0x0)
	OutputParameterDestinationHost = OutputParameter(0x1)
	OutputParameterDestinationPort = OutputParameter(0x2)
	OutputParameterInterface       = OutputParameter(0x3)
	OutputParameterReadBufferSize  = OutputParameter(0x4)

	OutputParameterUser = OutputParameter(0x100)
)

func (p OutputParameter) String() string {
	switch p {
	case OutputParameterBitrate:
		return "bitrate"
	case OutputParameterDestinationHost:
		return "destination_host"
	case OutputParameterDestinationPort:
		return "destination_port"
	case OutputParameterInterface:
		return "interface"
	case OutputParameterReadBufferSize:
		return "read_buffer_size"
	default:
		return "OutputParameter(" + fmt.Sprintf("%d", int(p)) + ")"
	}
}
