package capture

import (
	"encoding/binary"
	"strings"
)

// WrapWAV converts a raw PCM clip into a WAV container so the clip
// carries a media type the model accepts. Clips that are not raw PCM are
// returned unchanged.
func WrapWAV(clip Clip) Clip {
	if !strings.HasPrefix(clip.MIMEType, "audio/l16") {
		return clip
	}
	return Clip{
		Bytes:    encodeWAV(clip.Bytes, sampleRate, channels),
		MIMEType: "audio/wav",
		Duration: clip.Duration,
	}
}

// encodeWAV prepends a minimal header to little-endian 16-bit PCM.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	header := make([]byte, 44)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], []byte("WAVE"))
	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	return append(header, pcm...)
}
