// queue.go implements the in-process loopback transport variant: an output
// pin of one module feeds an input pin of another module in the same
// process through a named channel.

package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/xaionaro-go/mediamodule/frame"
	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/moduleconfig"
	"github.com/xaionaro-go/xsync"
)

const defaultQueueSize = 64

type queueItem struct {
	hdrs    frame.Headers
	payload []byte
}

// queueRegistry maps `queue_name` values to their channels, process-wide.
// The channel is created by whichever side comes first and is never closed:
// receivers leave via their context, so a late re-attach (stop/start
// cycles) keeps working.
type queueRegistry struct {
	locker xsync.Mutex
	queues map[string]chan queueItem
}

var defaultQueueRegistry = &queueRegistry{
	queues: map[string]chan queueItem{},
}

func (r *queueRegistry) get(ctx context.Context, name string, size int) chan queueItem {
	return xsync.DoR1(ctx, &r.locker, func() chan queueItem {
		if ch, ok := r.queues[name]; ok {
			return ch
		}
		ch := make(chan queueItem, size)
		r.queues[name] = ch
		logger.Debugf(ctx, "created in-process queue '%s' (size: %d)", name, size)
		return ch
	})
}

type queueReceiver struct {
	name string
	ch   chan queueItem

	closeChan chan struct{}
}

var _ Receiver = (*queueReceiver)(nil)

func newQueueReceiver(ctx context.Context, cfg moduleconfig.Params) (*queueReceiver, error) {
	name, ok := cfg.Get(KeyQueueName)
	if !ok {
		name = "default"
	}
	return &queueReceiver{
		name:      name,
		ch:        defaultQueueRegistry.get(ctx, name, cfg.GetInt(KeyQueueSize, defaultQueueSize)),
		closeChan: make(chan struct{}),
	}, nil
}

func (t *queueReceiver) String() string {
	return fmt.Sprintf("queue-in(%s)", t.name)
}

func (t *queueReceiver) Receive(ctx context.Context) (frame.Headers, []byte, error) {
	select {
	case <-ctx.Done():
		return frame.Headers{}, nil, ctx.Err()
	case <-t.closeChan:
		return frame.Headers{}, nil, net.ErrClosed
	case item := <-t.ch:
		return item.hdrs, item.payload, nil
	}
}

func (t *queueReceiver) Close(ctx context.Context) error {
	select {
	case <-t.closeChan:
	default:
		close(t.closeChan)
	}
	return nil
}

type queueSender struct {
	name string
	ch   chan queueItem
}

var _ Sender = (*queueSender)(nil)

func newQueueSender(ctx context.Context, cfg moduleconfig.Params) (*queueSender, error) {
	name, ok := cfg.Get(KeyQueueName)
	if !ok {
		name = "default"
	}
	return &queueSender{
		name: name,
		ch:   defaultQueueRegistry.get(ctx, name, cfg.GetInt(KeyQueueSize, defaultQueueSize)),
	}, nil
}

func (t *queueSender) String() string {
	return fmt.Sprintf("queue-out(%s)", t.name)
}

func (t *queueSender) SendPolicy() SendPolicy {
	return SendPolicyBlock
}

func (t *queueSender) Send(ctx context.Context, hdrs *frame.Headers, payload []byte) error {
	// The receiving pin copies the payload into a pool frame, while our
	// caller reuses its buffer right after Send returns, so the hand-off
	// needs its own copy.
	item := queueItem{
		hdrs:    *hdrs,
		payload: append([]byte(nil), payload...),
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case t.ch <- item:
		return nil
	}
}

func (t *queueSender) Close(ctx context.Context) error {
	return nil
}
