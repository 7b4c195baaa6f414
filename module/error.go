package module

import (
	"fmt"

	"github.com/xaionaro-go/mediamodule/types"
)

type ErrInvalidState struct {
	State State
	Op    string
}

func (e ErrInvalidState) Error() string {
	return fmt.Sprintf("unable to %s a module in state '%s'", e.Op, e.State)
}

type ErrCalledFromCallback struct {
	Op string
}

func (e ErrCalledFromCallback) Error() string {
	return fmt.Sprintf("'%s' must not be invoked from inside the module's own callback; post to another task instead", e.Op)
}

type ErrModuleNotFound struct {
	Handle types.ModuleHandle
}

func (e ErrModuleNotFound) Error() string {
	return fmt.Sprintf("module handle %d is not known to the registry", e.Handle)
}
