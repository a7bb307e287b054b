package metrics

// MultiSink fans events out to several sinks.
type MultiSink struct {
	Sinks []DeliverySink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...DeliverySink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDelivery forwards the event to all sinks, returning the first error.
func (m *MultiSink) RecordDelivery(ev DeliveryEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordDelivery(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordPeriod forwards batch summaries to sinks that support them.
func (m *MultiSink) RecordPeriod(ev PeriodEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PeriodRecorder); ok {
			if err := rec.RecordPeriod(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordIngest forwards ingest events to sinks that support them.
func (m *MultiSink) RecordIngest(ev IngestEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(IngestRecorder); ok {
			if err := rec.RecordIngest(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
