package metrics

import "errors"

// MultiSink fans records out to several sinks. Every sink is attempted and
// the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordAssignments(recs []AssignmentRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordAssignments(recs))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordBatch(sum BatchSummary) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(BatchRecorder); ok {
			errs = append(errs, r.RecordBatch(sum))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordStatusChange(ev StatusChange) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(StatusRecorder); ok {
			errs = append(errs, r.RecordStatusChange(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordConflict(ev ConflictEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ConflictRecorder); ok {
			errs = append(errs, r.RecordConflict(ev))
		}
	}
	return errors.Join(errs...)
}
