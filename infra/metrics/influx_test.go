package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/MarcinPiech/DHLAI/core/metrics"
	"github.com/MarcinPiech/DHLAI/core/model"
)

func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(data)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func TestInfluxSink_RecordDelivery(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()

	ev := coremetrics.DeliveryEvent{
		BatchID:  "b-1",
		PeriodID: 7,
		DraftID:  42,
		Category: model.CategoryAuto,
		Attempt:  1,
		Outcome:  model.OutcomeSent,
		Latency:  1500 * time.Microsecond,
		Time:     now,
	}
	if err := sink.RecordDelivery(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("delivery_attempt").
		AddTag("category", "transport_auto").
		AddTag("outcome", "sent").
		AddTag("batch_id", "b-1").
		AddTag("period_id", "7").
		AddField("draft_id", int64(42)).
		AddField("attempt", 1).
		AddField("latency_ms", 1.5).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	got := bodies()
	if len(got) != 1 || got[0] != expected {
		t.Errorf("unexpected body: %v\nwant %s", got, expected)
	}
}

func TestInfluxSink_RecordPeriodAndIngest(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	now := time.Now()

	if err := sink.RecordPeriod(coremetrics.PeriodEvent{BatchID: "b-2", PeriodID: 7, Sent: 3, MarkedSent: true, Time: now}); err != nil {
		t.Fatalf("record period: %v", err)
	}
	if err := sink.RecordIngest(coremetrics.IngestEvent{PeriodID: 7, Version: 2, Records: 40, Skipped: 1, Time: now}); err != nil {
		t.Fatalf("record ingest: %v", err)
	}
	got := bodies()
	if len(got) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(got))
	}
	if !strings.HasPrefix(got[0], "dispatch_batch,batch_id=b-2,period_id=7 ") || !strings.Contains(got[0], "marked_sent=true") {
		t.Errorf("unexpected batch line: %s", got[0])
	}
	if !strings.HasPrefix(got[1], "plan_ingest,period_id=7 ") || !strings.Contains(got[1], "records=40i") {
		t.Errorf("unexpected ingest line: %s", got[1])
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
