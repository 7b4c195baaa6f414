package framepool

import (
	"fmt"

	"github.com/xaionaro-go/mediamodule/types"
)

type ErrPoolExhausted struct {
	Size int
}

func (e ErrPoolExhausted) Error() string {
	return fmt.Sprintf("too many frames in the pool, current size is %d", e.Size)
}

type ErrInvalidArgument struct {
	Reason string
}

func (e ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Reason)
}

type ErrHandleNotFound struct {
	Handle types.FrameHandle
}

func (e ErrHandleNotFound) Error() string {
	return fmt.Sprintf("frame handle %d is not known to the pool", e.Handle)
}
