// Package wav encodes raw PCM samples into single-pass WAV byte streams.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// WAV container layout constants for 16-bit mono PCM.
const (
	headerSize     = 44
	fmtChunkSize   = 16
	pcmFormat      = 1
	numChannels    = 1
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
)

// Static errors.
var (
	ErrSampleRateInvalid = errors.New("sample rate must be positive")
	ErrDataTruncated     = errors.New("wav data truncated")
	ErrNotWAV            = errors.New("not a RIFF/WAVE stream")
)

// Encode serializes mono 16-bit PCM samples into a complete WAV file.
// The output is a finite byte stream suitable for writing as a whole
// response body. An empty sample slice encodes to a header-only file.
func Encode(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrSampleRateInvalid, sampleRate)
	}

	dataSize := len(samples) * bytesPerSample
	buf := bytes.NewBuffer(make([]byte, 0, headerSize+dataSize))

	buf.WriteString("RIFF")
	writeUint32(buf, uint32(headerSize-8+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeUint32(buf, fmtChunkSize)
	writeUint16(buf, pcmFormat)
	writeUint16(buf, numChannels)
	writeUint32(buf, uint32(sampleRate))
	writeUint32(buf, uint32(sampleRate*numChannels*bytesPerSample))
	writeUint16(buf, numChannels*bytesPerSample)
	writeUint16(buf, bitsPerSample)

	buf.WriteString("data")
	writeUint32(buf, uint32(dataSize))

	err := binary.Write(buf, binary.LittleEndian, samples)
	if err != nil {
		return nil, fmt.Errorf("failed to write samples: %w", err)
	}

	return buf.Bytes(), nil
}

// Header holds the fields parsed from a WAV stream that matter for
// verifying generated audio.
type Header struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int
}

// ParseHeader decodes the fixed 44-byte header of a PCM WAV stream.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTruncated, len(data))
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	return &Header{
		SampleRate:    int(binary.LittleEndian.Uint32(data[24:28])),
		Channels:      int(binary.LittleEndian.Uint16(data[22:24])),
		BitsPerSample: int(binary.LittleEndian.Uint16(data[34:36])),
		DataSize:      int(binary.LittleEndian.Uint32(data[40:44])),
	}, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte

	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte

	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}
