package metrics

import (
	"context"

	"github.com/MarcinPiech/DHLAI/core/events"
	"github.com/MarcinPiech/DHLAI/core/logger"
	coremetrics "github.com/MarcinPiech/DHLAI/core/metrics"
)

// Subscriber is the part of the event bus the collector needs.
type Subscriber interface {
	Subscribe() <-chan events.Event
	Unsubscribe(<-chan events.Event)
}

// StartEventCollector subscribes to the bus and forwards pipeline events to
// sink. It stops when the context is canceled or the bus is closed. The
// returned channel is closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus Subscriber, sink coremetrics.DeliverySink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("metrics: record %s: %v", ev.EventName(), err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.DeliverySink, ev events.Event) error {
	switch e := ev.(type) {
	case events.DeliveryAttempted:
		return sink.RecordDelivery(coremetrics.DeliveryEvent{
			BatchID:   e.BatchID,
			PeriodID:  e.PeriodID,
			DraftID:   e.DraftID,
			Category:  e.Category,
			Recipient: e.Recipient,
			Attempt:   e.Attempt,
			Outcome:   e.Outcome,
			Latency:   e.Latency,
			Time:      e.At,
		})
	case events.PeriodDispatched:
		if r, ok := sink.(coremetrics.PeriodRecorder); ok {
			return r.RecordPeriod(coremetrics.PeriodEvent{
				BatchID:    e.BatchID,
				PeriodID:   e.PeriodID,
				Sent:       e.Sent,
				Failed:     e.Failed,
				MarkedSent: e.MarkedSent,
				Time:       e.At,
			})
		}
	case events.IngestCompleted:
		if r, ok := sink.(coremetrics.IngestRecorder); ok {
			return r.RecordIngest(coremetrics.IngestEvent{
				PeriodID:  e.PeriodID,
				Version:   e.Version,
				Records:   e.Records,
				Skipped:   e.Skipped,
				Unchanged: e.Unchanged,
				Time:      e.At,
			})
		}
	}
	return nil
}
