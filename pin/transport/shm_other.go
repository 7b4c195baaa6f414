//go:build !unix
// +build !unix

package transport

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/mediamodule/moduleconfig"
)

func newSHMReceiver(ctx context.Context, cfg moduleconfig.Params) (Receiver, error) {
	return nil, fmt.Errorf("the shm transport is not supported on this platform")
}

func newSHMSender(ctx context.Context, cfg moduleconfig.Params) (Sender, error) {
	return nil, fmt.Errorf("the shm transport is not supported on this platform")
}
