// Package audio provides payload helpers for inbound call audio: decoding
// telephony codecs to the linear PCM the recognizer expects, and duration
// arithmetic over raw chunks.
package audio

import (
	"fmt"
	"time"

	"github.com/zaf/g711"
)

// Encoding identifies the wire format of inbound audio chunks.
type Encoding string

const (
	// EncodingPCM16 is raw little-endian signed 16-bit linear PCM.
	EncodingPCM16 Encoding = "pcm16"

	// EncodingULaw is G.711 µ-law, the common North American telephony codec.
	EncodingULaw Encoding = "ulaw"

	// EncodingALaw is G.711 A-law, the common European telephony codec.
	EncodingALaw Encoding = "alaw"
)

// IsValid reports whether e is a recognised encoding.
func (e Encoding) IsValid() bool {
	switch e {
	case EncodingPCM16, EncodingULaw, EncodingALaw:
		return true
	}
	return false
}

// Decode converts a chunk in the given encoding to little-endian PCM16.
// PCM16 input is returned unchanged (zero allocation). Returns an error for
// unknown encodings or PCM16 chunks with an odd byte count.
func Decode(enc Encoding, chunk []byte) ([]byte, error) {
	switch enc {
	case EncodingPCM16, "":
		if len(chunk)%2 != 0 {
			return nil, fmt.Errorf("audio: odd byte count %d in PCM16 chunk", len(chunk))
		}
		return chunk, nil
	case EncodingULaw:
		return g711.DecodeUlaw(chunk), nil
	case EncodingALaw:
		return g711.DecodeAlaw(chunk), nil
	default:
		return nil, fmt.Errorf("audio: unknown encoding %q", enc)
	}
}

// PCMDuration returns the play time of a PCM16 chunk at the given sample
// rate. Returns zero for a non-positive rate.
func PCMDuration(chunk []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(chunk) / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
