package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/mediamodule/frame"
	"github.com/xaionaro-go/mediamodule/types"
)

func TestWireStreamFraming(t *testing.T) {
	hdrs := frame.Headers{
		MediaFormat: types.MediaFormatVideo,
		MediaSize:   4,
		Width:       2,
		Height:      1,
		Depth:       8,
		SamplingFmt: types.SamplingFormatYCbCr422,
		Timestamp:   90000,
		FrameIndex:  7,
	}
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, &hdrs, payload))
	require.Equal(t, HeaderBlockSize+len(payload), buf.Len())

	gotHdrs, gotPayload, err := readFrame(&buf, nil)
	require.NoError(t, err)
	require.Equal(t, hdrs, gotHdrs)
	require.Equal(t, payload, gotPayload)
}

func TestWireRejectsGarbage(t *testing.T) {
	_, _, err := unmarshalFrame(make([]byte, HeaderBlockSize))
	require.Error(t, err)

	_, _, err = unmarshalFrame([]byte{1, 2, 3})
	require.Error(t, err)

	// A valid header block with a payload length pointing past the buffer.
	hdrs := frame.Headers{MediaSize: 100}
	buf := marshalFrame(nil, &hdrs, make([]byte, 100))
	_, _, err = unmarshalFrame(buf[:HeaderBlockSize+10])
	require.Error(t, err)
}
