// Package delivery exposes the delivery journal, period statistics, read
// receipts and the open-tracking pixel over HTTP.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MarcinPiech/DHLAI/core/dispatch"
	"github.com/MarcinPiech/DHLAI/core/dispatch/journal"
	"github.com/MarcinPiech/DHLAI/core/logger"
	"github.com/MarcinPiech/DHLAI/core/model"
)

// pixel is a transparent 1x1 GIF.
var pixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Opener records that a draft's message was opened.
type Opener interface {
	OpenByDraft(ctx context.Context, draftID int64) (bool, error)
}

// ReceiptRecorder records a returned read receipt for a draft.
type ReceiptRecorder interface {
	ReceiptByDraft(ctx context.Context, draftID int64) (bool, error)
}

// Pinger reports whether the backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsSource aggregates the delivery log of a period.
type StatsSource interface {
	Stats(ctx context.Context, periodID int64) (model.DeliveryStats, error)
}

// LogSource lists stored delivery log entries, newest first.
type LogSource interface {
	DeliveryLogs(ctx context.Context, periodID int64, limit int) ([]model.DeliveryLogEntry, error)
}

const defaultLimit = 100

// NewTrackHandler serves the tracking pixel via GET /track?id=<tracking id>.
// The pixel is returned for every request; unknown or malformed ids are only
// logged.
func NewTrackHandler(opener Opener, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := dispatch.ParseTrackingID(r.URL.Query().Get("id")); err != nil {
			log.Debugf("track: %v", err)
		} else if first, err := opener.OpenByDraft(r.Context(), id); err != nil {
			if !errors.Is(err, model.ErrNotFound) {
				log.Warnf("track draft %d: %v", id, err)
			}
		} else if first {
			log.Infof("draft %d opened", id)
		}
		w.Header().Set("Content-Type", "image/gif")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Content-Length", strconv.Itoa(len(pixel)))
		_, _ = w.Write(pixel)
	})
}

// NewReceiptHandler serves POST /drafts/{id}/receipt. It answers 204 when
// the receipt was stored or had been stored before.
func NewReceiptHandler(receipts ReceiptRecorder, token string, log logger.Logger) http.Handler {
	return requireToken(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid draft id", http.StatusBadRequest)
			return
		}
		first, err := receipts.ReceiptByDraft(r.Context(), id)
		switch {
		case errors.Is(err, model.ErrNotFound):
			http.Error(w, "no delivery for draft", http.StatusNotFound)
			return
		case err != nil:
			log.Warnf("receipt draft %d: %v", id, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		case !first:
			log.Debugf("draft %d receipt already recorded", id)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}

// NewHealthHandler serves GET /healthz: 204 while the store answers, 503
// otherwise.
func NewHealthHandler(db Pinger, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.Errorf("health: %v", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// NewDeliveriesHandler serves GET /deliveries?period=<id>&limit=<n> from the
// stored delivery log.
func NewDeliveriesHandler(logs LogSource, token string) http.Handler {
	return requireToken(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := r.URL.Query()
		periodID, _ := strconv.ParseInt(v.Get("period"), 10, 64)
		limit, err := strconv.Atoi(v.Get("limit"))
		if err != nil || limit <= 0 {
			limit = defaultLimit
		}
		entries, err := logs.DeliveryLogs(r.Context(), periodID, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []model.DeliveryLogEntry{}
		}
		writeJSON(w, entries)
	}))
}

// NewLogHandler returns an HTTP handler exposing the delivery journal via
// GET /journal. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewLogHandler(store journal.Store, token string) http.Handler {
	return requireToken(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := journal.Query{}
		v := r.URL.Query()
		if s := v.Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := v.Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.PeriodID, _ = strconv.ParseInt(v.Get("period_id"), 10, 64)
		q.DraftID, _ = strconv.ParseInt(v.Get("draft_id"), 10, 64)
		q.Outcome = model.DeliveryOutcome(v.Get("outcome"))

		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []journal.Record{}
		}
		writeJSON(w, records)
	}))
}

// NewStatsHandler serves GET /periods/{id}/stats.
func NewStatsHandler(stats StatsSource, token string) http.Handler {
	return requireToken(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid period id", http.StatusBadRequest)
			return
		}
		s, err := stats.Stats(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, s)
	}))
}

// Tracker records opens and read receipts of sent drafts.
type Tracker interface {
	Opener
	ReceiptRecorder
}

// NewMux mounts every handler of the package.
func NewMux(tracker Tracker, stats StatsSource, logs LogSource, store journal.Store, db Pinger, token string, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /track", NewTrackHandler(tracker, log))
	mux.Handle("POST /drafts/{id}/receipt", NewReceiptHandler(tracker, token, log))
	mux.Handle("GET /deliveries", NewDeliveriesHandler(logs, token))
	mux.Handle("GET /journal", NewLogHandler(store, token))
	mux.Handle("GET /periods/{id}/stats", NewStatsHandler(stats, token))
	mux.Handle("GET /healthz", NewHealthHandler(db, log))
	return mux
}

func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
