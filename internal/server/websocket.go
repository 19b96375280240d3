package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/centinelalabs/centinela/internal/session"
	"github.com/centinelalabs/centinela/pkg/audio"
)

// streamConfigMessage is the first text frame on /v1/stream: it configures
// the ad-hoc session before any audio is sent.
type streamConfigMessage struct {
	CallID        string   `json:"call_id,omitempty"`
	SampleRate    int      `json:"sample_rate,omitempty"`
	Language      string   `json:"language,omitempty"`
	Encoding      string   `json:"encoding,omitempty"`
	DeadlineMs    int      `json:"deadline_ms,omitempty"`
	Phrases       []string `json:"phrases,omitempty"`
	MatchPartials *bool    `json:"match_partials,omitempty"`
}

// handleSessionStream attaches a WebSocket audio feed to an existing
// session. Binary frames carry audio; the terminal decision is pushed as a
// text frame before the server closes the connection.
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		writeSessionError(w, r, s.metrics, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", sess.ID(), "error", err)
		return
	}
	s.streamSession(r.Context(), conn, sess)
}

// handleAdhocStream creates a session from the first text frame and streams
// audio over the same connection. The session is removed when the
// connection ends.
func (s *Server) handleAdhocStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}

	ctx := r.Context()
	cfg, err := readStreamConfig(ctx, conn)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "first message must be a JSON config frame")
		return
	}
	if cfg.Encoding != "" && !audio.Encoding(cfg.Encoding).IsValid() {
		conn.Close(websocket.StatusPolicyViolation, "encoding must be pcm16, ulaw, or alaw")
		return
	}

	id := cfg.CallID
	if id == "" {
		id = uuid.NewString()
	}

	sess, err := s.createSession(r, id, func(c *session.Config) {
		if cfg.SampleRate > 0 {
			c.SampleRate = cfg.SampleRate
		}
		if cfg.Language != "" {
			c.Language = cfg.Language
		}
		if cfg.Encoding != "" {
			c.Encoding = audio.Encoding(cfg.Encoding)
		}
		if cfg.DeadlineMs > 0 {
			c.Deadline = time.Duration(cfg.DeadlineMs) * time.Millisecond
		}
		if cfg.Phrases != nil {
			c.Phrases = cfg.Phrases
		}
		if cfg.MatchPartials != nil {
			c.MatchPartials = *cfg.MatchPartials
		}
	})
	if err != nil {
		status := websocket.StatusInternalError
		if errors.Is(err, session.ErrDuplicateSession) || errors.Is(err, session.ErrCapacityExceeded) {
			status = websocket.StatusPolicyViolation
		}
		conn.Close(status, err.Error())
		return
	}
	defer s.manager.Remove(sess.ID())

	ready, _ := json.Marshal(map[string]string{"status": "ready", "session_id": sess.ID()})
	if err := conn.Write(ctx, websocket.MessageText, ready); err != nil {
		conn.Close(websocket.StatusInternalError, "ready ack failed")
		return
	}

	s.streamSession(ctx, conn, sess)
}

// readStreamConfig reads and decodes the mandatory first text frame.
func readStreamConfig(ctx context.Context, conn *websocket.Conn) (streamConfigMessage, error) {
	var cfg streamConfigMessage
	typ, data, err := conn.Read(ctx)
	if err != nil {
		return cfg, err
	}
	if typ != websocket.MessageText {
		return cfg, errors.New("expected a text config frame")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// streamSession pumps binary audio frames into the session until the
// decision lands or the client goes away, then pushes the decision frame.
func (s *Server) streamSession(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	readErr := make(chan error, 1)
	go func() {
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			if typ != websocket.MessageBinary {
				continue
			}
			if err := sess.PushAudio(data); err != nil {
				readErr <- err
				return
			}
			s.metrics.RecordAudioBytes(ctx, len(data))
		}
	}()

	select {
	case <-sess.Done():
		d, _ := sess.Decision()
		payload, err := json.Marshal(toDecisionResponse(sess.ID(), d))
		if err == nil {
			writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := conn.Write(writeCtx, websocket.MessageText, payload); err != nil {
				slog.Debug("decision push failed", "session_id", sess.ID(), "error", err)
			}
			cancel()
		}
		conn.Close(websocket.StatusNormalClosure, "decision delivered")

	case err := <-readErr:
		if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
			slog.Debug("stream read ended", "session_id", sess.ID(), "error", err)
		}
		conn.Close(websocket.StatusNormalClosure, "client closed")
	}
}
