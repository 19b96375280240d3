package server

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/centinelalabs/centinela/internal/session"
	"github.com/centinelalabs/centinela/pkg/audio"
)

// analyzeRequest is the body of POST /v1/analyze: a complete recording
// classified in one round trip instead of a streamed session.
type analyzeRequest struct {
	// Audio is the base64-encoded recording.
	Audio string `json:"audio"`

	SampleRate int      `json:"sample_rate,omitempty"`
	Language   string   `json:"language,omitempty"`
	Encoding   string   `json:"encoding,omitempty"`
	Phrases    []string `json:"phrases,omitempty"`
}

// analyzeChunkBytes is the slice size for feeding a one-shot recording into
// the recognizer stream. 8000 bytes is 250ms of 16kHz PCM16.
const analyzeChunkBytes = 8000

// handleAnalyze classifies a complete recording. It runs an internal session
// against the recognizer, feeds the whole payload, and blocks until the
// decision lands or the decision deadline passes.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Audio == "" {
		writeError(w, http.StatusBadRequest, "audio is required")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio is not valid base64")
		return
	}
	if req.Encoding != "" && !audio.Encoding(req.Encoding).IsValid() {
		writeError(w, http.StatusBadRequest, "encoding must be pcm16, ulaw, or alaw")
		return
	}

	id := "analyze-" + uuid.NewString()
	sess, err := s.createSession(r, id, func(c *session.Config) {
		if req.SampleRate > 0 {
			c.SampleRate = req.SampleRate
		}
		if req.Language != "" {
			c.Language = req.Language
		}
		if req.Encoding != "" {
			c.Encoding = audio.Encoding(req.Encoding)
		}
		if req.Phrases != nil {
			c.Phrases = req.Phrases
		}
	})
	if err != nil {
		writeSessionError(w, r, s.metrics, err)
		return
	}
	defer s.manager.Remove(id)

	for off := 0; off < len(raw); off += analyzeChunkBytes {
		end := min(off+analyzeChunkBytes, len(raw))
		if err := sess.PushAudio(raw[off:end]); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	s.metrics.RecordAudioBytes(r.Context(), len(raw))

	// The recording is complete, so flush the recognizer. Without this a
	// backend that buffers until end of input would hold its last hypothesis
	// past the deadline.
	if err := sess.EndAudio(); err != nil {
		slog.Warn("recognizer flush failed", "session_id", id, "error", err)
	}

	// The session resolves on its own: phrase hit, trailing pause, or the
	// deadline. Wait a little past the deadline for the timer to fire.
	wait := time.Until(sess.DeadlineAt()) + time.Second
	select {
	case <-sess.Done():
	case <-time.After(wait):
		writeError(w, http.StatusGatewayTimeout, "no decision before deadline")
		return
	case <-r.Context().Done():
		return
	}

	d, _ := sess.Decision()
	writeJSON(w, http.StatusOK, toDecisionResponse(id, d))
}
