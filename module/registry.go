// registry.go implements the process-wide module registry. A module handle
// is an index into this registry; closed modules leave a tombstone so the
// indices of the surviving modules stay stable for the whole run.

package module

import (
	"context"

	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/types"
	"github.com/xaionaro-go/xsync"
)

type registryT struct {
	locker  xsync.Mutex
	modules []*Controller
}

var registry registryT

// Register adds the controller to the process-wide registry and assigns
// its module handle.
func Register(ctx context.Context, c *Controller) types.ModuleHandle {
	return xsync.DoR1(ctx, &registry.locker, func() types.ModuleHandle {
		handle := types.ModuleHandle(len(registry.modules))
		c.handle = handle
		registry.modules = append(registry.modules, c)
		logger.Debugf(ctx, "registered module#%d", handle)
		return handle
	})
}

// Get returns the controller for the given handle, or nil when the handle
// is out of range or the module was closed.
func Get(ctx context.Context, h types.ModuleHandle) *Controller {
	return xsync.DoR1(ctx, &registry.locker, func() *Controller {
		if h < 0 || int(h) >= len(registry.modules) {
			return nil
		}
		return registry.modules[h]
	})
}

func unregister(ctx context.Context, h types.ModuleHandle) {
	registry.locker.Do(ctx, func() {
		if h < 0 || int(h) >= len(registry.modules) {
			return
		}
		registry.modules[h] = nil
		logger.Debugf(ctx, "unregistered module#%d", h)
	})
}
