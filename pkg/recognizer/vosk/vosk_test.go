package vosk

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/centinelalabs/centinela/pkg/recognizer"
)

// fakeVoskServer accepts one stream, swallows audio, and answers the eof
// frame with a committed final before hanging up, like a real Vosk server.
func fakeVoskServer(t *testing.T, final string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()

		// First frame is the stream config.
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText && bytes.Contains(data, []byte("eof")) {
				_ = conn.Write(ctx, websocket.MessageText, []byte(final))
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}))
}

func TestStream_FlushCommitsFinalAndEndsCleanly(t *testing.T) {
	t.Parallel()

	ts := fakeVoskServer(t, `{
		"text": "si digame",
		"result": [
			{"word": "si",     "start": 0.10, "end": 0.30, "conf": 1.0},
			{"word": "digame", "start": 0.30, "end": 0.70, "conf": 1.0}
		]
	}`)
	defer ts.Close()

	p, err := New("ws" + strings.TrimPrefix(ts.URL, "http"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handle, err := p.StartStream(ctx, recognizer.StreamConfig{SampleRate: 8000})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer handle.Close()

	if err := handle.SendAudio(make([]byte, 160)); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	if err := handle.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var finals []recognizer.Result
	for res := range handle.Results() {
		if res.Final {
			finals = append(finals, res)
		}
	}
	if err := handle.Err(); err != nil {
		t.Errorf("Err after flushed end = %v, want nil", err)
	}
	if len(finals) != 1 || finals[0].Text != "si digame" {
		t.Fatalf("finals = %+v, want one final %q", finals, "si digame")
	}
	if finals[0].End != 700*time.Millisecond {
		t.Errorf("End = %v, want 700ms", finals[0].End)
	}
}

func TestParseResponse_Partial(t *testing.T) {
	t.Parallel()

	res, ok := parseResponse([]byte(`{"partial": "hola bue"}`))
	if !ok {
		t.Fatal("expected partial to parse")
	}
	if res.Final {
		t.Error("partial should not be final")
	}
	if res.Text != "hola bue" {
		t.Errorf("Text = %q, want %q", res.Text, "hola bue")
	}
}

func TestParseResponse_EmptyPartialIgnored(t *testing.T) {
	t.Parallel()

	if _, ok := parseResponse([]byte(`{"partial": ""}`)); ok {
		t.Error("empty partial should be ignored")
	}
}

func TestParseResponse_FinalWithWords(t *testing.T) {
	t.Parallel()

	msg := []byte(`{
		"text": "deje su mensaje",
		"result": [
			{"word": "deje",    "start": 0.30, "end": 0.62, "conf": 1.0},
			{"word": "su",      "start": 0.62, "end": 0.80, "conf": 0.9},
			{"word": "mensaje", "start": 0.80, "end": 1.40, "conf": 0.8}
		]
	}`)

	res, ok := parseResponse(msg)
	if !ok {
		t.Fatal("expected final to parse")
	}
	if !res.Final {
		t.Error("expected Final = true")
	}
	if res.Text != "deje su mensaje" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Start != 300*time.Millisecond {
		t.Errorf("Start = %v, want 300ms", res.Start)
	}
	if res.End != 1400*time.Millisecond {
		t.Errorf("End = %v, want 1.4s", res.End)
	}
	if len(res.Words) != 3 {
		t.Fatalf("len(Words) = %d, want 3", len(res.Words))
	}
	if got, want := res.Confidence, 0.9; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("Confidence = %v, want %v", got, want)
	}
}

func TestParseResponse_Garbage(t *testing.T) {
	t.Parallel()

	if _, ok := parseResponse([]byte(`not json`)); ok {
		t.Error("garbage should not parse")
	}
	if _, ok := parseResponse([]byte(`{}`)); ok {
		t.Error("empty object should be ignored")
	}
}

func TestNew_RequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Error("New(\"\") should fail")
	}
}
