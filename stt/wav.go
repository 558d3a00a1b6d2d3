package stt

import (
	"encoding/binary"
	"io"
)

// encodeWAV writes samples as a 16-bit mono PCM WAV stream. Samples outside
// [-1, 1] are clamped.
func encodeWAV(w io.Writer, samples []float32, sampleRate int) error {
	dataSize := len(samples) * 2

	var header [44]byte
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+dataSize))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:], 1) // mono
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(header[32:], 2)  // block align
	binary.LittleEndian.PutUint16(header[34:], 16) // bits per sample
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(dataSize))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	buf := make([]byte, 0, dataSize)
	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(s*32767)))
	}
	_, err := w.Write(buf)
	return err
}
