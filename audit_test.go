package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAuditDispatcher_DeliversToSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: "login_success", Username: "alice"})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "login_success" || ev.Username != "alice" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestAuditDispatcher_CloseDrainsQueue(t *testing.T) {
	sink := NewChannelSink(64)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "logout"})
	}
	d.Close()

	delivered := 0
	for {
		select {
		case <-sink.Events():
			delivered++
		default:
			if delivered != 10 {
				t.Fatalf("expected 10 events after Close, got %d", delivered)
			}
			return
		}
	}
}

func TestAuditDispatcher_DropIfFullCountsDrops(t *testing.T) {
	// A sink that never accepts keeps the buffer full.
	blocked := make(chan struct{})
	sink := blockingSink{release: blocked}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(blocked)
		d.Close()
	}()

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: "login_failure"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
}

func TestAuditDispatcher_DisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled audit should produce a nil dispatcher")
	}
	// Nil receivers must be safe.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestJSONWriterSink_WritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: "register", Username: "carol", Success: true})
	sink.Emit(context.Background(), AuditEvent{EventType: "logout", Username: "carol", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var ev AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("line not valid JSON: %v", err)
	}
	if ev.EventType != "register" || ev.Username != "carol" {
		t.Fatalf("unexpected decoded event: %+v", ev)
	}
}
