// command.go defines the Command enum delivered to module callbacks.

package types

import "fmt"

// Command tells the callback why it is being invoked. CommandTick carries a
// valid frame handle; the lifecycle commands carry InvalidFrameHandle.
type Command int

const (
	CommandStart = Command(0x0)
	CommandStop  = Command(0x1)
	CommandQuit  = Command(0x2)
	CommandTick  = Command(0x3)
)

func (c Command) String() string {
	switch c {
	case CommandStart:
		return "START"
	case CommandStop:
		return "STOP"
	case CommandQuit:
		return "QUIT"
	case CommandTick:
		return "TICK"
	default:
		return "Command(" + fmt.Sprintf("%d", int(c)) + ")"
	}
}
