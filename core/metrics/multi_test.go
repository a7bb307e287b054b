package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	deliveries int
	periods    int
	err        error
}

func (r *recordSink) RecordDelivery(DeliveryEvent) error {
	r.deliveries++
	return r.err
}

func (r *recordSink) RecordPeriod(PeriodEvent) error {
	r.periods++
	return nil
}

// deliveryOnly does not implement PeriodRecorder.
type deliveryOnly struct{ n int }

func (d *deliveryOnly) RecordDelivery(DeliveryEvent) error {
	d.n++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &deliveryOnly{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordDelivery(DeliveryEvent{}); err != nil {
		t.Fatalf("record delivery: %v", err)
	}
	if err := m.RecordPeriod(PeriodEvent{}); err != nil {
		t.Fatalf("record period: %v", err)
	}
	if err := m.RecordIngest(IngestEvent{}); err != nil {
		t.Fatalf("record ingest: %v", err)
	}
	if s1.deliveries != 1 || s1.periods != 1 || s2.n != 1 {
		t.Fatalf("events not forwarded: %+v %+v", s1, s2)
	}
}

func TestMultiSinkStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &deliveryOnly{}
	if err := NewMultiSink(s1, s2).RecordDelivery(DeliveryEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if s2.n != 0 {
		t.Fatal("second sink should not be called")
	}
}
