// file.go implements the flat-file transport variant: an output pin appends
// length-prefixed frames to a file, an input pin replays one. Useful for
// recording a pipeline stage and feeding it back offline.

package transport

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/xaionaro-go/mediamodule/frame"
	"github.com/xaionaro-go/mediamodule/logger"
	"github.com/xaionaro-go/mediamodule/moduleconfig"
)

type fileReceiver struct {
	file *os.File
	r    *bufio.Reader
	buf  []byte
}

var _ Receiver = (*fileReceiver)(nil)

func newFileReceiver(ctx context.Context, cfg moduleconfig.Params) (_ret *fileReceiver, _err error) {
	path, ok := cfg.Get(KeyFilePath)
	if !ok {
		return nil, fmt.Errorf("the file transport requires the '%s' key", KeyFilePath)
	}
	logger.Debugf(ctx, "newFileReceiver('%s')", path)
	defer func() { logger.Debugf(ctx, "/newFileReceiver('%s'): %v", path, _err) }()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	return &fileReceiver{
		file: f,
		r:    bufio.NewReader(f),
	}, nil
}

func (t *fileReceiver) String() string {
	return fmt.Sprintf("file-in(%s)", t.file.Name())
}

func (t *fileReceiver) Receive(ctx context.Context) (frame.Headers, []byte, error) {
	hdrs, payload, err := readFrame(t.r, t.buf)
	t.buf = payload
	if err != nil {
		// io.EOF at the end of the recording shuts the pin down in order.
		return frame.Headers{}, nil, err
	}
	return hdrs, payload, nil
}

func (t *fileReceiver) Close(ctx context.Context) error {
	return t.file.Close()
}

type fileSender struct {
	file *os.File
	w    *bufio.Writer
}

var _ Sender = (*fileSender)(nil)

func newFileSender(ctx context.Context, cfg moduleconfig.Params) (_ret *fileSender, _err error) {
	path, ok := cfg.Get(KeyFilePath)
	if !ok {
		return nil, fmt.Errorf("the file transport requires the '%s' key", KeyFilePath)
	}
	logger.Debugf(ctx, "newFileSender('%s')", path)
	defer func() { logger.Debugf(ctx, "/newFileSender('%s'): %v", path, _err) }()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	return &fileSender{
		file: f,
		w:    bufio.NewWriter(f),
	}, nil
}

func (t *fileSender) String() string {
	return fmt.Sprintf("file-out(%s)", t.file.Name())
}

func (t *fileSender) SendPolicy() SendPolicy {
	return SendPolicyBlock
}

func (t *fileSender) Send(ctx context.Context, hdrs *frame.Headers, payload []byte) error {
	if err := writeFrame(t.w, hdrs, payload); err != nil {
		return err
	}
	return t.w.Flush()
}

func (t *fileSender) Close(ctx context.Context) error {
	if err := t.w.Flush(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}
