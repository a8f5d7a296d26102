package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type blockingSink struct {
	release chan struct{}
	got     chan Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.got <- e
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatalf("expected nil dispatcher")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatalf("nil dispatcher must report zero counters")
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), got: make(chan Event, 8)}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	if d.Dropped() == 0 {
		t.Fatalf("expected dropped events")
	}

	close(sink.release)
	d.Close()

	if got := d.Delivered() + d.Dropped(); got != 5 {
		t.Fatalf("expected delivered+dropped == 5, got %d", got)
	}
}

func TestDispatcherCloseDrains(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "logout"})
	}
	d.Close()

	if d.Delivered() != 10 {
		t.Fatalf("expected 10 delivered, got %d", d.Delivered())
	}
	if len(sink.Events()) != 10 {
		t.Fatalf("expected 10 buffered events, got %d", len(sink.Events()))
	}

	d.Emit(context.Background(), Event{EventType: "after_close"})
	if len(sink.Events()) != 10 {
		t.Fatalf("emit after close must be ignored")
	}
}

func TestJSONWriterSinkOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Emit(context.Background(), Event{EventType: "login_otp_required", InstanceID: "i-1", AttemptID: "a-1"})
	s.Emit(context.Background(), Event{EventType: "logout", InstanceID: "i-1", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.EventType != "login_otp_required" || first.AttemptID != "a-1" {
		t.Fatalf("unexpected event %+v", first)
	}
}

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSink(zerolog.New(&buf))

	s.Emit(context.Background(), Event{
		Timestamp: time.Unix(0, 0),
		EventType: "login_failure",
		UserID:    "u-1",
		Error:     "invalid credentials",
		Metadata:  map[string]string{"kind": "auth_failure"},
	})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["level"] != "warn" || line["message"] != "login_failure" {
		t.Fatalf("unexpected log line %v", line)
	}
	if line["component"] != "audit" || line["kind"] != "auth_failure" || line["user_id"] != "u-1" {
		t.Fatalf("missing fields in %v", line)
	}
}

func TestDispatcherRedactsSecretMetadata(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	meta := map[string]string{
		"otp_code":            "123456",
		"Login-Session-Token": "lst-1",
		"password_breached":   "true",
		"code":                "EMAIL_NOT_VERIFIED",
	}
	d.Emit(context.Background(), Event{EventType: "login_failure", Metadata: meta})
	d.Close()

	got := <-sink.Events()
	if got.Metadata["otp_code"] != Redacted || got.Metadata["Login-Session-Token"] != Redacted {
		t.Fatalf("secrets reached the sink: %v", got.Metadata)
	}
	if got.Metadata["password_breached"] != "true" || got.Metadata["code"] != "EMAIL_NOT_VERIFIED" {
		t.Fatalf("non-secret metadata altered: %v", got.Metadata)
	}
	if meta["otp_code"] != "123456" {
		t.Fatalf("caller metadata must not be modified")
	}
}
