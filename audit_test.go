package goNameAuth

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goNameAuth/authdoc"
	"github.com/MrEthical07/goNameAuth/connect"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	return &captureSink{events: make(chan AuditEvent, buffer)}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func auditConfig() Config {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16
	cfg.Audit.DropIfFull = false
	return cfg
}

func collectAudit(t *testing.T, sink *captureSink, want int) []AuditEvent {
	t.Helper()

	events := make([]AuditEvent, 0, want)
	timeout := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case ev := <-sink.events:
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("expected %d audit events, got %d", want, len(events))
		}
	}
	return events
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	engine := buildEngine(t, func(b *Builder) {
		b.WithResolvers(staticResolver("alice.eth", testAddress, inlineDoc(t, testAddress, wcFlow()))).
			WithAuditSink(sink)
	})

	_, _ = engine.Login(context.Background(), LoginRequest{Name: "alice.eth"})
	engine.Close()

	if sink.count.Load() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.count.Load())
	}
}

func TestAuditLoginSuccessFields(t *testing.T) {
	sink := newCaptureSink(8)
	src := inlineDoc(t, testAddress, wcFlow())
	engine := buildEngine(t, func(b *Builder) {
		b.WithConfig(auditConfig()).
			WithResolvers(staticResolver("alice.eth", testAddress, src)).
			WithConnector(authdoc.ConnectionWalletConnect, &stubConnector{address: testAddress}).
			WithAuditSink(sink)
	})

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	res, err := engine.Login(ctx, LoginRequest{Name: "alice.eth", Capabilities: browserCaps()})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	ev := collectAudit(t, sink, 1)[0]
	if ev.EventType != auditEventLoginSuccess || !ev.Success {
		t.Fatalf("expected login_success, got %+v", ev)
	}
	if ev.AttemptID != res.AttemptID || ev.Name != "alice.eth" {
		t.Fatalf("unexpected attempt fields %+v", ev)
	}
	if ev.Address != testAddress || ev.Connection != string(authdoc.ConnectionWalletConnect) {
		t.Fatalf("unexpected identity fields %+v", ev)
	}
	if ev.IP != "198.51.100.33" {
		t.Fatalf("expected client IP, got %q", ev.IP)
	}
	if ev.Metadata["flow_index"] != "0" {
		t.Fatalf("expected flow_index 0, got %+v", ev.Metadata)
	}
}

func TestAuditFailureCarriesStableCode(t *testing.T) {
	sink := newCaptureSink(8)
	src := inlineDoc(t, testAddress, wcFlow())
	engine := buildEngine(t, func(b *Builder) {
		b.WithConfig(auditConfig()).
			WithResolvers(staticResolver("alice.eth", testAddress, src)).
			WithConnector(authdoc.ConnectionWalletConnect, &stubConnector{err: connect.ErrRejected}).
			WithAuditSink(sink)
	})

	if _, err := engine.Login(context.Background(), LoginRequest{Name: "alice.eth", Capabilities: browserCaps()}); err == nil {
		t.Fatalf("expected failure")
	}

	ev := collectAudit(t, sink, 1)[0]
	if ev.EventType != auditEventLoginFailure || ev.Success {
		t.Fatalf("expected login_failure, got %+v", ev)
	}
	if ev.Error != string(auditErrAllFlowsFailed) {
		t.Fatalf("expected %s, got %q", auditErrAllFlowsFailed, ev.Error)
	}
	if ev.Metadata["attempted"] != "1" {
		t.Fatalf("expected one attempted flow, got %+v", ev.Metadata)
	}
}

func TestAuditMismatchWarningEmitted(t *testing.T) {
	sink := newCaptureSink(8)
	src := inlineDoc(t, testAddress, wcFlow())
	engine := buildEngine(t, func(b *Builder) {
		b.WithConfig(auditConfig()).
			WithResolvers(staticResolver("alice.eth", testAddress, src)).
			WithConnector(authdoc.ConnectionWalletConnect, &stubConnector{address: otherAddress}).
			WithAuditSink(sink)
	})

	if _, err := engine.Login(context.Background(), LoginRequest{Name: "alice.eth", Capabilities: browserCaps()}); err != nil {
		t.Fatalf("expected lenient success, got %v", err)
	}

	events := collectAudit(t, sink, 2)
	if events[0].EventType != auditEventAddressMismatch || events[0].Metadata["code"] != WarningSessionAddressMismatch {
		t.Fatalf("expected session mismatch record first, got %+v", events[0])
	}
	if events[1].EventType != auditEventLoginSuccess {
		t.Fatalf("expected login_success second, got %+v", events[1])
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		AttemptID: "a1",
		Name:      "alice.eth",
		Success:   true,
	})

	if !buf.Contains("login_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains(`"attempt_id":"a1"`) {
		t.Fatal("expected JSON log line to contain attempt id")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.buf), v)
}
