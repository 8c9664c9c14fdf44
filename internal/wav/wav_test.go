// Package wav_test tests WAV encoding.
package wav_test

import (
	"encoding/binary"
	"testing"

	"github.com/di-osc/qwen3-design-api/internal/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_HeaderFields(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 100, -100, 32767, -32768}

	data, err := wav.Encode(samples, 24000)
	require.NoError(t, err)

	header, err := wav.ParseHeader(data)
	require.NoError(t, err)

	assert.Equal(t, 24000, header.SampleRate)
	assert.Equal(t, 1, header.Channels)
	assert.Equal(t, 16, header.BitsPerSample)
	assert.Equal(t, len(samples)*2, header.DataSize)
	assert.Len(t, data, 44+len(samples)*2)
}

func TestEncode_SamplesLittleEndian(t *testing.T) {
	t.Parallel()

	data, err := wav.Encode([]int16{0x0102}, 16000)
	require.NoError(t, err)

	got := binary.LittleEndian.Uint16(data[44:46])
	assert.Equal(t, uint16(0x0102), got)
}

func TestEncode_EmptySamples(t *testing.T) {
	t.Parallel()

	data, err := wav.Encode(nil, 22050)
	require.NoError(t, err)

	header, err := wav.ParseHeader(data)
	require.NoError(t, err)

	assert.Equal(t, 0, header.DataSize)
	assert.Len(t, data, 44)
}

func TestEncode_InvalidSampleRate(t *testing.T) {
	t.Parallel()

	_, err := wav.Encode([]int16{1, 2, 3}, 0)
	require.ErrorIs(t, err, wav.ErrSampleRateInvalid)
}

func TestParseHeader_Truncated(t *testing.T) {
	t.Parallel()

	_, err := wav.ParseHeader([]byte("RIFF"))
	require.ErrorIs(t, err, wav.ErrDataTruncated)
}

func TestParseHeader_NotWAV(t *testing.T) {
	t.Parallel()

	_, err := wav.ParseHeader(make([]byte, 44))
	require.ErrorIs(t, err, wav.ErrNotWAV)
}
