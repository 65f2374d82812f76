package acrcloud

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"

	"github.com/satriahrh/acrbridge/domain/entities"
)

// EncodeWAV wraps 16-bit little-endian PCM in a canonical 44-byte WAV header
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// Volume returns the RMS level of a PCM frame normalised to [0, 1]
func Volume(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	rms := math.Sqrt(sum/float64(samples)) / 32768
	return math.Min(rms, 1)
}

// pcmBytes converts a duration into a whole number of 16-bit frames
func pcmBytes(d time.Duration, config entities.SessionConfig) int {
	frame := config.Channels * 2
	n := int(d.Seconds() * float64(config.BytesPerSecond()))
	return n / frame * frame
}
