package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/mediamodule/types"
)

func TestHeadersDispatch(t *testing.T) {
	var h Headers
	require.NoError(t, h.Set(types.HeaderKindMediaFormat, int64(types.MediaFormatVideo)))
	require.NoError(t, h.Set(types.HeaderKindWidth, 1280))
	require.NoError(t, h.Set(types.HeaderKindHeight, 720))
	require.NoError(t, h.Set(types.HeaderKindDepth, 8))
	require.NoError(t, h.Set(types.HeaderKindSamplingFmt, int64(types.SamplingFormatBGRA)))
	require.NoError(t, h.Set(types.HeaderKindTimestamp, 3600))

	require.Equal(t, types.MediaFormatVideo, h.MediaFormat)
	require.Equal(t, 1280, h.Width)
	require.Equal(t, int64(3600), h.Timestamp)

	v, err := h.Get(types.HeaderKindSamplingFmt)
	require.NoError(t, err)
	require.Equal(t, int64(types.SamplingFormatBGRA), v)

	_, err = h.Get(types.HeaderKind(99))
	require.Error(t, err)
	require.Error(t, h.Set(types.HeaderKind(99), 1))
}

func TestHeadersExtraKinds(t *testing.T) {
	var h Headers
	vendorKind := types.HeaderKindUser + 7
	require.NoError(t, h.Set(vendorKind, 42))
	v, err := h.Get(vendorKind)
	require.NoError(t, err)
	require.Equal(t, int64(42), v)
}

func TestDeriveMediaSize(t *testing.T) {
	h := Headers{
		Width:       1920,
		Height:      1080,
		Depth:       8,
		SamplingFmt: types.SamplingFormatYCbCr422,
	}
	require.Equal(t, 4147200, h.DeriveMediaSize())

	h.SamplingFmt = types.SamplingFormatBGRA
	require.Equal(t, 1920*1080*4, h.DeriveMediaSize())

	h.SamplingFmt = types.SamplingFormatUnknown
	require.Equal(t, -1, h.DeriveMediaSize())
}

func TestFrameCreateReusesBuffer(t *testing.T) {
	var f Frame
	f.Create(&Headers{MediaFormat: types.MediaFormatData, MediaSize: 1024})
	require.Equal(t, 1, f.RefCount())
	require.Len(t, f.Buffer, 1024)

	bufPtr := &f.Buffer[0]
	f.Create(&Headers{MediaFormat: types.MediaFormatData, MediaSize: 512})
	require.Len(t, f.Buffer, 512)
	require.Same(t, bufPtr, &f.Buffer[0])
}
