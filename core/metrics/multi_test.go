package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	count int
	err   error
}

func (r *recordSink) RecordAssignments([]AssignmentRecord) error {
	r.count++
	return r.err
}

func (r *recordSink) RecordBatch(BatchSummary) error {
	r.count++
	return nil
}

// plainSink only implements the base interface.
type plainSink struct{ count int }

func (p *plainSink) RecordAssignments([]AssignmentRecord) error {
	p.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	p := &plainSink{}
	m := NewMultiSink(s1, s2, p)
	if err := m.RecordAssignments(nil); err != nil {
		t.Fatalf("record assignments: %v", err)
	}
	if err := m.RecordBatch(BatchSummary{}); err != nil {
		t.Fatalf("record batch: %v", err)
	}
	if err := m.RecordStatusChange(StatusChange{}); err != nil {
		t.Fatalf("record status: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("results not forwarded")
	}
	if p.count != 1 {
		t.Fatalf("expected plain sink to receive assignments only, got %d", p.count)
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	err := NewMultiSink(s1, s2).RecordAssignments(nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s2.count != 1 {
		t.Fatalf("second sink skipped after error")
	}
}
