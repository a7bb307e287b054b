package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MarcinPiech/DHLAI/core/events"
	coremetrics "github.com/MarcinPiech/DHLAI/core/metrics"
	"github.com/MarcinPiech/DHLAI/core/model"
	"github.com/MarcinPiech/DHLAI/infra/logger"
	"github.com/MarcinPiech/DHLAI/internal/eventbus"
)

type recordingSink struct {
	mu         sync.Mutex
	deliveries []coremetrics.DeliveryEvent
	periods    []coremetrics.PeriodEvent
}

func (s *recordingSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, ev)
	return nil
}

func (s *recordingSink) RecordPeriod(ev coremetrics.PeriodEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = append(s.periods, ev)
	return nil
}

func TestEventCollectorForwardsEvents(t *testing.T) {
	bus := eventbus.New[events.Event]()
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, sink, logger.NopLogger{})

	now := time.Now()
	bus.Publish(events.DeliveryAttempted{BatchID: "b", DraftID: 3, Category: model.CategoryBags, Outcome: model.OutcomeFailed, At: now})
	bus.Publish(events.IngestCompleted{PeriodID: 1, Records: 5, At: now})
	bus.Publish(events.PeriodDispatched{BatchID: "b", PeriodID: 1, Sent: 2, At: now})

	deadline := time.After(time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.periods)
		sink.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("collector did not forward events")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if len(sink.deliveries) != 1 || sink.deliveries[0].DraftID != 3 || sink.deliveries[0].Outcome != model.OutcomeFailed {
		t.Fatalf("unexpected deliveries %+v", sink.deliveries)
	}
	if sink.periods[0].Sent != 2 {
		t.Fatalf("unexpected period %+v", sink.periods[0])
	}
}

func TestEventCollectorStopsOnBusClose(t *testing.T) {
	bus := eventbus.New[events.Event]()
	done := StartEventCollector(context.Background(), bus, coremetrics.NopSink{}, logger.NopLogger{})
	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector still running after bus close")
	}
}

func TestPromSinkGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	again, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink on same registry: %v", err)
	}

	_ = s.RecordIngest(coremetrics.IngestEvent{PeriodID: 7, Records: 40, Skipped: 2})
	_ = again.RecordPeriod(coremetrics.PeriodEvent{Failed: 1, Time: time.Unix(1756108800, 0)})
	_ = s.RecordDelivery(coremetrics.DeliveryEvent{Category: model.CategoryAuto, Outcome: model.OutcomeSent, Attempt: 1})

	if v := testutil.ToFloat64(s.records.WithLabelValues("7")); v != 40 {
		t.Errorf("records = %v", v)
	}
	if v := testutil.ToFloat64(s.skipped.WithLabelValues("7")); v != 2 {
		t.Errorf("skipped = %v", v)
	}
	if v := testutil.ToFloat64(s.failed); v != 1 {
		t.Errorf("failed = %v", v)
	}
	if v := testutil.ToFloat64(s.lastBatch); v != 1756108800 {
		t.Errorf("last batch = %v", v)
	}
	if n := testutil.CollectAndCount(s.attempts); n != 1 {
		t.Errorf("attempt series = %d", n)
	}
}
