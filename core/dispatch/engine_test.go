package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcinPiech/DHLAI/core/model"
	"github.com/MarcinPiech/DHLAI/infra/logger"
)

type memStore struct {
	mu      sync.Mutex
	periods map[int64]*model.Period
	drafts  []*model.EmailDraft
	logs    []*model.DeliveryLogEntry
}

func newMemStore(drafts ...model.EmailDraft) *memStore {
	s := &memStore{periods: map[int64]*model.Period{1: {ID: 1, Label: "T35", Year: 2025, Status: model.PeriodDraft}}}
	for i := range drafts {
		d := drafts[i]
		s.drafts = append(s.drafts, &d)
	}
	return s
}

func (s *memStore) Period(_ context.Context, id int64) (*model.Period, error) {
	p, ok := s.periods[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) UpdatePeriod(_ context.Context, p *model.Period) error {
	cp := *p
	s.periods[p.ID] = &cp
	return nil
}

func (s *memStore) Draft(_ context.Context, id int64) (*model.EmailDraft, error) {
	for _, d := range s.drafts {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *memStore) SendableDrafts(_ context.Context, periodID int64) ([]model.EmailDraft, error) {
	var out []model.EmailDraft
	for _, d := range s.drafts {
		if d.PeriodID == periodID && d.Sendable() {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *memStore) UpdateDraft(_ context.Context, d *model.EmailDraft) error {
	for i, cur := range s.drafts {
		if cur.ID == d.ID {
			cp := *d
			s.drafts[i] = &cp
			return nil
		}
	}
	return model.ErrNotFound
}

func (s *memStore) InsertDeliveryLog(_ context.Context, e *model.DeliveryLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = int64(len(s.logs) + 1)
	cp := *e
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *memStore) LatestSentLog(_ context.Context, draftID int64) (*model.DeliveryLogEntry, error) {
	for i := len(s.logs) - 1; i >= 0; i-- {
		l := s.logs[i]
		if l.DraftID == draftID && l.Outcome != model.OutcomeFailed {
			cp := *l
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *memStore) MarkOpened(_ context.Context, id int64, at time.Time) (bool, error) {
	for _, l := range s.logs {
		if l.ID == id {
			if l.OpenedAt != nil {
				return false, nil
			}
			l.OpenedAt = &at
			l.Outcome = model.OutcomeOpened
			return true, nil
		}
	}
	return false, model.ErrNotFound
}

func (s *memStore) MarkReadReceipt(_ context.Context, id int64, at time.Time) (bool, error) {
	for _, l := range s.logs {
		if l.ID == id {
			if l.ReadReceiptAt != nil {
				return false, nil
			}
			l.ReadReceiptAt = &at
			return true, nil
		}
	}
	return false, model.ErrNotFound
}

func (s *memStore) DeliveryStats(context.Context, int64) (model.DeliveryStats, error) {
	var st model.DeliveryStats
	for _, l := range s.logs {
		st.Total++
		switch l.Outcome {
		case model.OutcomeFailed:
			st.Failed++
		case model.OutcomeOpened:
			st.Opened++
			st.Sent++
		default:
			st.Sent++
		}
	}
	return st, nil
}

func (s *memStore) logsFor(draftID int64) []model.DeliveryOutcome {
	var out []model.DeliveryOutcome
	for _, l := range s.logs {
		if l.DraftID == draftID {
			out = append(out, l.Outcome)
		}
	}
	return out
}

// scriptedRelay fails the listed number of first attempts per draft.
type scriptedRelay struct {
	failures map[int64]int
	calls    map[int64]int
	sent     []*OutboundMessage
}

func (r *scriptedRelay) Send(_ context.Context, msg *OutboundMessage) (string, error) {
	if r.calls == nil {
		r.calls = map[int64]int{}
	}
	r.calls[msg.DraftID]++
	if r.calls[msg.DraftID] <= r.failures[msg.DraftID] {
		return "", errors.New("421 service not available")
	}
	r.sent = append(r.sent, msg)
	return "<id@dhlai>", nil
}

type recordedSleep struct{ waits []time.Duration }

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func readyDraft(id int64) model.EmailDraft {
	return model.EmailDraft{
		ID:             id,
		PeriodID:       1,
		RecipientEmail: "crew@example.com",
		Subject:        "Plan prac T35 - Serwis",
		Category:       model.CategoryService,
		BodyHTML:       "<html><body><p>plan</p></body></html>",
		BodyPlain:      "plan",
		Status:         model.DraftReady,
	}
}

func newTestEngine(t *testing.T, store Store, relay Relay, cfg Config) (*Engine, *recordedSleep) {
	t.Helper()
	ResetMetrics(nil)
	e, err := NewEngine(store, relay, nil, cfg, logger.NopLogger{})
	require.NoError(t, err)
	rs := &recordedSleep{}
	e.SetClock(nil, rs.sleep)
	return e, rs
}

func TestSendPeriodRetriesTransientFailure(t *testing.T) {
	store := newMemStore(readyDraft(1), readyDraft(2), readyDraft(3))
	relay := &scriptedRelay{failures: map[int64]int{2: 1}}
	e, rs := newTestEngine(t, store, relay, Config{RetryFailed: true, MaxRetries: 3})

	res, err := e.SendPeriod(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, 0, res.Failed)
	assert.Empty(t, res.Errors)
	assert.True(t, res.MarkedSent)
	assert.Equal(t, []model.DeliveryOutcome{model.OutcomeFailed, model.OutcomeSent}, store.logsFor(2))
	assert.Equal(t, []time.Duration{2 * time.Second}, rs.waits)

	p, _ := store.Period(context.Background(), 1)
	assert.Equal(t, model.PeriodSent, p.Status)
	assert.NotNil(t, p.SentAt)
	for _, d := range store.drafts {
		assert.Equal(t, model.DraftSent, d.Status, "draft %d", d.ID)
	}
}

func TestSendPeriodMixedBatchKeepsPeriodOpen(t *testing.T) {
	store := newMemStore(readyDraft(1), readyDraft(2))
	relay := &scriptedRelay{failures: map[int64]int{2: 10}}
	e, rs := newTestEngine(t, store, relay, Config{RetryFailed: true, MaxRetries: 3})

	res, err := e.SendPeriod(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, int64(2), res.Errors[0].DraftID)
	assert.False(t, res.MarkedSent)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, rs.waits)
	assert.Len(t, store.logsFor(2), 4)

	p, _ := store.Period(context.Background(), 1)
	assert.Equal(t, model.PeriodDraft, p.Status)

	// the failed draft is picked up by the next pass
	relay.failures = nil
	res, err = e.SendPeriod(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.True(t, res.MarkedSent)
}

func TestSendPeriodRejectsSentPeriod(t *testing.T) {
	store := newMemStore()
	store.periods[1].Status = model.PeriodSent
	e, _ := newTestEngine(t, store, &scriptedRelay{}, Config{})
	_, err := e.SendPeriod(context.Background(), 1)
	assert.ErrorIs(t, err, ErrPeriodSent)
}

func TestSendOne(t *testing.T) {
	t.Run("exhausted retries report failure without error", func(t *testing.T) {
		d := readyDraft(1)
		store := newMemStore(d)
		e, _ := newTestEngine(t, store, &scriptedRelay{failures: map[int64]int{1: 10}}, Config{RetryFailed: true, MaxRetries: 1})
		ok, err := e.SendOne(context.Background(), &d)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, model.DraftFailed, d.Status)
	})
	t.Run("retry disabled returns the relay error", func(t *testing.T) {
		d := readyDraft(1)
		store := newMemStore(d)
		e, rs := newTestEngine(t, store, &scriptedRelay{failures: map[int64]int{1: 1}}, Config{})
		ok, err := e.SendOne(context.Background(), &d)
		var derr *DeliveryError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, 0, derr.Attempt)
		assert.False(t, ok)
		assert.Empty(t, rs.waits)
	})
	t.Run("already sent", func(t *testing.T) {
		d := readyDraft(1)
		d.Status = model.DraftSent
		relay := &scriptedRelay{}
		e, _ := newTestEngine(t, newMemStore(d), relay, Config{})
		_, err := e.SendOne(context.Background(), &d)
		assert.ErrorIs(t, err, ErrAlreadySent)
		assert.Empty(t, relay.calls)
	})
}

func TestMessageCarriesPixelAndReceiptHeaders(t *testing.T) {
	d := readyDraft(42)
	relay := &scriptedRelay{}
	e, _ := newTestEngine(t, newMemStore(d), relay, Config{
		FromAddress:     "planowanie@example.com",
		TrackingBaseURL: "https://dhlai.example.com/",
		TrackingPixel:   true,
		ReadReceipt:     true,
	})
	d.Attachments = []model.Attachment{{Path: "/nonexistent/photo.jpg", Name: "photo.jpg"}}

	ok, err := e.SendOne(context.Background(), &d)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, relay.sent, 1)
	msg := relay.sent[0]

	pixel := `<img src="https://dhlai.example.com/track?id=` + TrackingID(42) + `"`
	assert.Contains(t, msg.HTML, pixel)
	assert.True(t, strings.HasSuffix(msg.HTML, "</body></html>"))
	assert.Equal(t, "planowanie@example.com", msg.Headers["Disposition-Notification-To"])
	assert.Equal(t, "planowanie@example.com", msg.Headers["Return-Receipt-To"])
	assert.Empty(t, msg.Attachments)

	id, err := ParseTrackingID(TrackingID(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestMarkOpenedIsIdempotent(t *testing.T) {
	d := readyDraft(1)
	store := newMemStore(d)
	e, _ := newTestEngine(t, store, &scriptedRelay{}, Config{})
	clock := time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return clock }, nil)

	_, err := e.SendOne(context.Background(), &d)
	require.NoError(t, err)

	first, err := e.OpenByDraft(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, first)
	opened := *store.logs[0].OpenedAt

	clock = clock.Add(time.Hour)
	again, err := e.MarkOpened(context.Background(), store.logs[0].ID)
	require.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, opened, *store.logs[0].OpenedAt)

	st, err := e.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStats{Total: 1, Sent: 1, Opened: 1}, st)
}

func TestReceiptByDraft(t *testing.T) {
	d := readyDraft(1)
	store := newMemStore(d)
	e, _ := newTestEngine(t, store, &scriptedRelay{}, Config{})
	clock := time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return clock }, nil)

	_, err := e.ReceiptByDraft(context.Background(), 1)
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = e.SendOne(context.Background(), &d)
	require.NoError(t, err)

	first, err := e.ReceiptByDraft(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, first)
	clock = clock.Add(time.Hour)
	again, err := e.ReceiptByDraft(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, again)
	require.NotNil(t, store.logs[0].ReadReceiptAt)
	assert.Equal(t, time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC), *store.logs[0].ReadReceiptAt)
}

func TestParseTrackingIDRejectsGarbage(t *testing.T) {
	for _, id := range []string{"", "!!", TrackingID(0), "YWJj"} {
		if _, err := ParseTrackingID(id); err == nil {
			t.Errorf("expected error for %q", id)
		}
	}
}
