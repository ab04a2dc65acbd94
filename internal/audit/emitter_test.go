package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeSink struct {
	name   string
	err    error
	delay  time.Duration
	events []*Event
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Write(ctx context.Context, ev *Event) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeSink) Close() error { return nil }

func newTestEmitter(primary, secondary Sink) *Emitter {
	return NewEmitter(EmitterConfig{
		Primary:   primary,
		Secondary: secondary,
		Logger:    zap.NewNop(),
	})
}

func TestEmit_BothSucceed(t *testing.T) {
	p := &fakeSink{name: "primary"}
	s := &fakeSink{name: "secondary"}
	e := newTestEmitter(p, s)

	if err := e.Emit(context.Background(), NewRecorder("d1").Next(EventRequested, nil)); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(p.events) != 1 || len(s.events) != 1 {
		t.Errorf("both sinks should receive the event, got %d/%d", len(p.events), len(s.events))
	}
}

func TestEmit_OneFailureIsDegradedSuccess(t *testing.T) {
	p := &fakeSink{name: "primary", err: errors.New("down")}
	s := &fakeSink{name: "secondary"}
	e := newTestEmitter(p, s)

	if err := e.Emit(context.Background(), NewRecorder("d1").Next(EventRequested, nil)); err != nil {
		t.Fatalf("one surviving sink must succeed, got %v", err)
	}
}

func TestEmit_BothFailuresUnavailable(t *testing.T) {
	p := &fakeSink{name: "primary", err: errors.New("down")}
	s := &fakeSink{name: "secondary", err: errors.New("also down")}
	e := newTestEmitter(p, s)

	err := e.Emit(context.Background(), NewRecorder("d1").Next(EventRequested, nil))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestEmit_SlowSinkTimesOut(t *testing.T) {
	p := &fakeSink{name: "primary", delay: time.Second}
	s := &fakeSink{name: "secondary"}
	e := NewEmitter(EmitterConfig{
		Primary:     p,
		Secondary:   s,
		SinkTimeout: 20 * time.Millisecond,
		Logger:      zap.NewNop(),
	})

	start := time.Now()
	if err := e.Emit(context.Background(), NewRecorder("d1").Next(EventRequested, nil)); err != nil {
		t.Fatalf("secondary alone should carry the write, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("a slow sink must not stall the decision past its timeout")
	}
}

func TestRecorder_SequenceGapFree(t *testing.T) {
	rec := NewRecorder("d1")
	for want := uint64(1); want <= 5; want++ {
		ev := rec.Next(EventEvaluated, nil)
		if ev.Sequence != want {
			t.Fatalf("sequence %d, want %d", ev.Sequence, want)
		}
		if ev.DecisionID != "d1" {
			t.Fatalf("decision id %q", ev.DecisionID)
		}
	}
}

func TestFileSink_AppendsJSONL(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close() //nolint:errcheck

	rec := NewRecorder("d1")
	for i := 0; i < 3; i++ {
		if err := sink.Write(context.Background(), rec.Next(EventEvaluated, map[string]any{"i": i})); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "audit_events.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close() //nolint:errcheck

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		lines++
		if ev.Sequence != uint64(lines) {
			t.Errorf("line %d has sequence %d", lines, ev.Sequence)
		}
	}
	if lines != 3 {
		t.Errorf("wrote %d lines, want 3", lines)
	}
}
