package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcinPiech/DHLAI/core/dispatch"
	"github.com/MarcinPiech/DHLAI/core/dispatch/journal"
	"github.com/MarcinPiech/DHLAI/core/model"
	"github.com/MarcinPiech/DHLAI/infra/logger"
)

type memJournal struct{ recs []journal.Record }

func (m *memJournal) Append(_ context.Context, r journal.Record) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memJournal) Query(_ context.Context, q journal.Query) ([]journal.Record, error) {
	var out []journal.Record
	for _, r := range m.recs {
		if q.PeriodID != 0 && r.PeriodID != q.PeriodID {
			continue
		}
		if q.Outcome != "" && r.Outcome != q.Outcome {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memJournal) Close() error { return nil }

type fakeEngine struct {
	opened   []int64
	receipts []int64
	stats    map[int64]model.DeliveryStats
	limit    int
	pingErr  error
}

func (f *fakeEngine) ReceiptByDraft(_ context.Context, id int64) (bool, error) {
	if id == 404 {
		return false, fmt.Errorf("dispatch: delivery of draft %d: %w", id, model.ErrNotFound)
	}
	f.receipts = append(f.receipts, id)
	return len(f.receipts) == 1, nil
}

func (f *fakeEngine) Ping(context.Context) error { return f.pingErr }

func (f *fakeEngine) OpenByDraft(_ context.Context, id int64) (bool, error) {
	if id == 404 {
		return false, model.ErrNotFound
	}
	f.opened = append(f.opened, id)
	return len(f.opened) == 1, nil
}

func (f *fakeEngine) DeliveryLogs(_ context.Context, periodID int64, limit int) ([]model.DeliveryLogEntry, error) {
	f.limit = limit
	if periodID != 7 {
		return nil, nil
	}
	return []model.DeliveryLogEntry{{ID: 2, PeriodID: 7, Outcome: model.OutcomeSent}, {ID: 1, PeriodID: 7, Outcome: model.OutcomeFailed}}, nil
}

func (f *fakeEngine) Stats(_ context.Context, id int64) (model.DeliveryStats, error) {
	return f.stats[id], nil
}

func newTestMux() (*http.ServeMux, *fakeEngine) {
	eng := &fakeEngine{stats: map[int64]model.DeliveryStats{7: {Total: 4, Sent: 3, Failed: 1, Opened: 1}}}
	store := &memJournal{recs: []journal.Record{
		{Timestamp: time.Now(), PeriodID: 7, DraftID: 1, Outcome: model.OutcomeSent},
		{Timestamp: time.Now(), PeriodID: 7, DraftID: 2, Outcome: model.OutcomeFailed},
		{Timestamp: time.Now(), PeriodID: 8, DraftID: 3, Outcome: model.OutcomeSent},
	}}
	return NewMux(eng, eng, eng, store, eng, "tok", logger.NopLogger{}), eng
}

func TestTrackAlwaysReturnsPixel(t *testing.T) {
	mux, eng := newTestMux()
	for _, id := range []string{dispatch.TrackingID(12), dispatch.TrackingID(12), "not-base64!", dispatch.TrackingID(404)} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/track?id="+id, nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "image/gif", rr.Header().Get("Content-Type"))
		assert.Equal(t, pixel, rr.Body.Bytes())
	}
	assert.Equal(t, []int64{12, 12}, eng.opened)
}

func TestDeliveriesRequireToken(t *testing.T) {
	mux, _ := newTestMux()
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deliveries", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJournalFilters(t *testing.T) {
	mux, _ := newTestMux()
	req := httptest.NewRequest(http.MethodGet, "/journal?period_id=7&outcome=failed", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got []journal.Record
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].DraftID)
}

func TestPeriodStats(t *testing.T) {
	mux, _ := newTestMux()
	req := httptest.NewRequest(http.MethodGet, "/periods/7/stats", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var s model.DeliveryStats
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&s))
	assert.Equal(t, model.DeliveryStats{Total: 4, Sent: 3, Failed: 1, Opened: 1}, s)

	req = httptest.NewRequest(http.MethodGet, "/periods/abc/stats", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeliveriesFromStore(t *testing.T) {
	mux, eng := newTestMux()
	req := httptest.NewRequest(http.MethodGet, "/deliveries?period=7", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got []model.DeliveryLogEntry
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, defaultLimit, eng.limit)

	req = httptest.NewRequest(http.MethodGet, "/deliveries?period=9&limit=5", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, "[]\n", rr.Body.String())
	assert.Equal(t, 5, eng.limit)
}

func TestReadReceipt(t *testing.T) {
	mux, eng := newTestMux()
	post := func(path, token string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusUnauthorized, post("/drafts/12/receipt", ""))
	assert.Equal(t, http.StatusNoContent, post("/drafts/12/receipt", "tok"))
	assert.Equal(t, http.StatusNoContent, post("/drafts/12/receipt", "tok"))
	assert.Equal(t, http.StatusNotFound, post("/drafts/404/receipt", "tok"))
	assert.Equal(t, http.StatusBadRequest, post("/drafts/x/receipt", "tok"))
	assert.Equal(t, []int64{12, 12}, eng.receipts)
}

func TestHealthPingsStore(t *testing.T) {
	mux, eng := newTestMux()
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	eng.pingErr = errors.New("database is closed")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
