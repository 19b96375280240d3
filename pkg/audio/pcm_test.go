package audio

import (
	"testing"
	"time"
)

func TestDecode_PCMPassthrough(t *testing.T) {
	t.Parallel()

	in := []byte{0x01, 0x02, 0x03, 0x04}
	out, err := Decode(EncodingPCM16, in)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if &out[0] != &in[0] {
		t.Error("PCM16 input should be returned without copying")
	}
}

func TestDecode_OddPCMRejected(t *testing.T) {
	t.Parallel()

	if _, err := Decode(EncodingPCM16, []byte{0x01, 0x02, 0x03}); err == nil {
		t.Error("odd-length PCM16 chunk should be rejected")
	}
}

func TestDecode_ULawExpands(t *testing.T) {
	t.Parallel()

	in := make([]byte, 160) // 20ms of 8kHz µ-law
	out, err := Decode(EncodingULaw, in)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(out) != 2*len(in) {
		t.Errorf("decoded length = %d, want %d", len(out), 2*len(in))
	}
}

func TestDecode_ALawExpands(t *testing.T) {
	t.Parallel()

	in := make([]byte, 160)
	out, err := Decode(EncodingALaw, in)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(out) != 2*len(in) {
		t.Errorf("decoded length = %d, want %d", len(out), 2*len(in))
	}
}

func TestDecode_UnknownEncoding(t *testing.T) {
	t.Parallel()

	if _, err := Decode("opus", nil); err == nil {
		t.Error("unknown encoding should be rejected")
	}
}

func TestPCMDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    int
		rate int
		want time.Duration
	}{
		{"20ms at 8k", 320, 8000, 20 * time.Millisecond},
		{"one second at 16k", 32000, 16000, time.Second},
		{"zero rate", 320, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := PCMDuration(make([]byte, tt.n), tt.rate); got != tt.want {
				t.Errorf("PCMDuration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncoding_IsValid(t *testing.T) {
	t.Parallel()

	for _, e := range []Encoding{EncodingPCM16, EncodingULaw, EncodingALaw} {
		if !e.IsValid() {
			t.Errorf("%q should be valid", e)
		}
	}
	if Encoding("gsm").IsValid() {
		t.Error("gsm should be invalid")
	}
}
