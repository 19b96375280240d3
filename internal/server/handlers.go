package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/centinelalabs/centinela/internal/detect"
	"github.com/centinelalabs/centinela/internal/observe"
	"github.com/centinelalabs/centinela/internal/session"
	"github.com/centinelalabs/centinela/pkg/audio"
)

// maxAudioChunkBytes caps a single POSTed audio chunk. One second of 48kHz
// 16-bit stereo PCM is under 200 KiB; anything past 1 MiB is a client bug.
const maxAudioChunkBytes = 1 << 20

// createSessionRequest is the body of POST /v1/sessions.
type createSessionRequest struct {
	CallID        string   `json:"call_id"`
	SampleRate    int      `json:"sample_rate,omitempty"`
	Language      string   `json:"language,omitempty"`
	Encoding      string   `json:"encoding,omitempty"`
	DeadlineMs    int      `json:"deadline_ms,omitempty"`
	Phrases       []string `json:"phrases,omitempty"`
	MatchPartials *bool    `json:"match_partials,omitempty"`
}

// createSessionResponse is the 201 body of POST /v1/sessions.
type createSessionResponse struct {
	SessionID  string `json:"session_id"`
	State      string `json:"state"`
	DeadlineMs int64  `json:"deadline_ms"`
}

// decisionResponse is the wire form of a terminal decision.
type decisionResponse struct {
	SessionID      string   `json:"session_id"`
	Result         string   `json:"result"`
	Confidence     float64  `json:"confidence"`
	Reason         string   `json:"reason"`
	DecidedAtMs    int64    `json:"decided_at_ms"`
	Transcription  string   `json:"transcription"`
	MatchedPhrases []string `json:"matched_phrases"`
}

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error string `json:"error"`
}

// pendingResponse is the 202 body while a session is still undecided.
type pendingResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

func toDecisionResponse(id string, d detect.Decision) decisionResponse {
	matched := d.MatchedPhrases
	if matched == nil {
		matched = []string{}
	}
	return decisionResponse{
		SessionID:      id,
		Result:         string(d.Label),
		Confidence:     d.Confidence,
		Reason:         string(d.Reason),
		DecidedAtMs:    d.DecidedAt.Milliseconds(),
		Transcription:  d.Transcript,
		MatchedPhrases: matched,
	}
}

// handleCreateSession opens a detection session for a call.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.CallID == "" {
		writeError(w, http.StatusBadRequest, "call_id is required")
		return
	}
	if req.Encoding != "" && !audio.Encoding(req.Encoding).IsValid() {
		writeError(w, http.StatusBadRequest, "encoding must be pcm16, ulaw, or alaw")
		return
	}

	sess, err := s.createSession(r, req.CallID, func(c *session.Config) {
		if req.SampleRate > 0 {
			c.SampleRate = req.SampleRate
		}
		if req.Language != "" {
			c.Language = req.Language
		}
		if req.Encoding != "" {
			c.Encoding = audio.Encoding(req.Encoding)
		}
		if req.DeadlineMs > 0 {
			c.Deadline = time.Duration(req.DeadlineMs) * time.Millisecond
		}
		if req.Phrases != nil {
			c.Phrases = req.Phrases
		}
		if req.MatchPartials != nil {
			c.MatchPartials = *req.MatchPartials
		}
	})
	if err != nil {
		writeSessionError(w, r, s.metrics, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:  sess.ID(),
		State:      "awaiting_speech",
		DeadlineMs: time.Until(sess.DeadlineAt()).Milliseconds(),
	})
}

// createSession builds the session with metric hooks attached. Sessions
// outlive the request that created them, so the recognizer stream and the
// decision callback run against a detached context.
func (s *Server) createSession(r *http.Request, id string, overrides func(*session.Config)) (*session.Session, error) {
	bg := context.WithoutCancel(r.Context())
	sess, err := s.manager.Create(bg, id, func(c *session.Config) {
		if overrides != nil {
			overrides(c)
		}
		c.OnDecision = func(d detect.Decision) {
			s.metrics.RecordDecision(bg, string(d.Label), string(d.Reason), d.DecidedAt)
			if d.Reason == detect.ReasonRecognitionError {
				s.metrics.RecordRecognizerError(bg, s.cfg.Recognizer.Name)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ActiveSessions.Add(bg, 1)
	return sess, nil
}

// handlePushAudio ingests one audio chunk for an open session.
func (s *Server) handlePushAudio(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		writeSessionError(w, r, s.metrics, err)
		return
	}

	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioChunkBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "audio chunk too large")
		return
	}
	if len(chunk) == 0 {
		writeError(w, http.StatusBadRequest, "empty audio chunk")
		return
	}

	if err := sess.PushAudio(chunk); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.RecordAudioBytes(r.Context(), len(chunk))
	w.WriteHeader(http.StatusAccepted)
}

// handleGetDecision reports the terminal decision, or 202 while the call is
// still being evaluated.
func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		writeSessionError(w, r, s.metrics, err)
		return
	}

	if d, ok := sess.Decision(); ok {
		writeJSON(w, http.StatusOK, toDecisionResponse(sess.ID(), d))
		return
	}
	writeJSON(w, http.StatusAccepted, pendingResponse{
		SessionID: sess.ID(),
		Status:    "evaluating",
	})
}

// handleDeleteSession tears a session down. Deleting an unknown session
// still returns 204; teardown is idempotent.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.manager.Remove(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// writeSessionError maps manager errors onto HTTP status codes.
func writeSessionError(w http.ResponseWriter, r *http.Request, m *observe.Metrics, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrDuplicateSession):
		m.RecordRejection(r.Context(), "duplicate")
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrCapacityExceeded):
		m.RecordRejection(r.Context(), "capacity")
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, session.ErrManagerClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
