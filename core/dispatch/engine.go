// Package dispatch delivers approved drafts through a relay with rate
// limiting, bounded retry and an audit log of every attempt.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/MarcinPiech/DHLAI/core/events"
	"github.com/MarcinPiech/DHLAI/core/logger"
	"github.com/MarcinPiech/DHLAI/core/model"
	"github.com/MarcinPiech/DHLAI/core/monitoring"
)

// Store is the persistence used by the engine.
type Store interface {
	Period(ctx context.Context, id int64) (*model.Period, error)
	UpdatePeriod(ctx context.Context, p *model.Period) error
	Draft(ctx context.Context, id int64) (*model.EmailDraft, error)
	// SendableDrafts returns the ready and failed drafts of a period in
	// insertion order.
	SendableDrafts(ctx context.Context, periodID int64) ([]model.EmailDraft, error)
	UpdateDraft(ctx context.Context, d *model.EmailDraft) error
	InsertDeliveryLog(ctx context.Context, e *model.DeliveryLogEntry) error
	LatestSentLog(ctx context.Context, draftID int64) (*model.DeliveryLogEntry, error)
	// MarkOpened sets the open timestamp of a log entry unless one is set
	// and reports whether it did.
	MarkOpened(ctx context.Context, logID int64, at time.Time) (bool, error)
	MarkReadReceipt(ctx context.Context, logID int64, at time.Time) (bool, error)
	DeliveryStats(ctx context.Context, periodID int64) (model.DeliveryStats, error)
}

// DraftFailure pairs a draft with the error that stopped it.
type DraftFailure struct {
	DraftID int64  `json:"draft_id"`
	Message string `json:"message"`
}

// BatchResult summarises one SendPeriod call.
type BatchResult struct {
	BatchID    string         `json:"batch_id"`
	Sent       int            `json:"sent"`
	Failed     int            `json:"failed"`
	Errors     []DraftFailure `json:"errors"`
	MarkedSent bool           `json:"marked_sent"`
}

// Engine sends drafts. One Engine owns one rate limiter; share the Engine
// (or a shared RateLimiter) to enforce a process-wide ceiling.
type Engine struct {
	store     Store
	relay     Relay
	limiter   RateLimiter
	cfg       Config
	log       logger.Logger
	publisher events.Publisher
	now       func() time.Time
	sleep     SleepFunc
}

// NewEngine creates an engine. A nil limiter means no rate limit.
func NewEngine(store Store, relay Relay, limiter RateLimiter, cfg Config, log logger.Logger) (*Engine, error) {
	if store == nil || relay == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewEngine")
	}
	if limiter == nil {
		limiter = Unlimited{}
	}
	if n, ok := limiter.(interface{ OnWait(func(time.Duration)) }); ok {
		n.OnWait(func(time.Duration) { rateLimitWaits.Inc() })
	}
	return &Engine{
		store:     store,
		relay:     relay,
		limiter:   limiter,
		cfg:       cfg,
		log:       log,
		publisher: events.NopPublisher{},
		now:       time.Now,
		sleep:     Sleep,
	}, nil
}

// SetPublisher configures the event publisher.
func (e *Engine) SetPublisher(p events.Publisher) {
	if p != nil {
		e.publisher = p
	}
}

// SetClock replaces the clock and the backoff sleep.
func (e *Engine) SetClock(now func() time.Time, sleep SleepFunc) {
	if now != nil {
		e.now = now
	}
	if sleep != nil {
		e.sleep = sleep
	}
}

// SendPeriod sends every ready or previously failed draft of the period in
// insertion order. A failing draft is recorded in the result and does not
// stop the batch. The period is marked sent only when at least one draft
// was sent and none failed.
//
// A cancelled context stops the batch between drafts; the returned result
// covers the drafts handled so far.
func (e *Engine) SendPeriod(ctx context.Context, periodID int64) (*BatchResult, error) {
	p, err := e.store.Period(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load period %d: %w", periodID, err)
	}
	if p.IsSent() {
		return nil, fmt.Errorf("dispatch: %s: %w", p, ErrPeriodSent)
	}
	drafts, err := e.store.SendableDrafts(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load drafts: %w", err)
	}

	res := &BatchResult{BatchID: uuid.NewString(), Errors: []DraftFailure{}}
	log := e.log.With("batch_id", res.BatchID)
	log.Infof("sending %d drafts for %s", len(drafts), p)

	for i := range drafts {
		d := &drafts[i]
		if err := e.limiter.Acquire(ctx); err != nil {
			return res, fmt.Errorf("dispatch: rate limiter: %w", err)
		}
		if err := e.send(ctx, res.BatchID, d); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, DraftFailure{DraftID: d.ID, Message: err.Error()})
			log.Warnf("draft %d to %s failed: %v", d.ID, d.RecipientEmail, err)
			continue
		}
		res.Sent++
	}

	if res.Sent > 0 && res.Failed == 0 {
		at := e.now()
		p.Status = model.PeriodSent
		p.SentAt = &at
		p.UpdatedAt = at
		if err := e.store.UpdatePeriod(ctx, p); err != nil {
			return res, fmt.Errorf("dispatch: mark period sent: %w", err)
		}
		res.MarkedSent = true
		periodsDelivered.Inc()
	}
	log.Infof("%s: %d sent, %d failed", p, res.Sent, res.Failed)
	e.publisher.Publish(events.PeriodDispatched{
		BatchID:    res.BatchID,
		PeriodID:   periodID,
		Sent:       res.Sent,
		Failed:     res.Failed,
		MarkedSent: res.MarkedSent,
		At:         e.now(),
	})
	return res, nil
}

// SendOne sends a single draft. It returns false without an error when
// retries are enabled and all of them failed; with retries disabled the
// relay error is returned.
func (e *Engine) SendOne(ctx context.Context, d *model.EmailDraft) (bool, error) {
	err := e.send(ctx, uuid.NewString(), d)
	if err == nil {
		return true, nil
	}
	var derr *DeliveryError
	if errors.As(err, &derr) && e.cfg.RetryFailed {
		return false, nil
	}
	return false, err
}

func (e *Engine) send(ctx context.Context, batchID string, d *model.EmailDraft) error {
	if d.IsSent() {
		return ErrAlreadySent
	}
	msg := e.message(d)
	msgID, err := e.deliver(ctx, batchID, d, msg)
	now := e.now()
	d.UpdatedAt = now
	if err != nil {
		d.Status = model.DraftFailed
		if uerr := e.store.UpdateDraft(ctx, d); uerr != nil {
			e.log.Errorf("draft %d: record failure: %v", d.ID, uerr)
		}
		var derr *DeliveryError
		if errors.As(err, &derr) {
			monitoring.Capture(err, "dispatch", "deliver")
		}
		return err
	}
	d.Status = model.DraftSent
	d.SentAt = &now
	if err := e.store.UpdateDraft(ctx, d); err != nil {
		return fmt.Errorf("dispatch: mark draft %d sent (message %s): %w", d.ID, msgID, err)
	}
	return nil
}

// deliver runs the attempt loop: one initial attempt plus up to MaxRetries
// retries when retry is enabled, waiting 2^attempt seconds before each
// retry.
func (e *Engine) deliver(ctx context.Context, batchID string, d *model.EmailDraft, msg *OutboundMessage) (string, error) {
	retries := 0
	if e.cfg.RetryFailed {
		retries = e.cfg.maxRetries()
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			retriesTotal.Inc()
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			e.log.Debugf("draft %d: retry %d/%d in %s", d.ID, attempt, retries, backoff)
			if err := e.sleep(ctx, backoff); err != nil {
				return "", &DeliveryError{DraftID: d.ID, Attempt: attempt - 1, Err: lastErr}
			}
		}
		msgID, err := e.attempt(ctx, batchID, d, msg, attempt)
		if err == nil {
			return msgID, nil
		}
		lastErr = &DeliveryError{DraftID: d.ID, Attempt: attempt, Err: err}
	}
	return "", lastErr
}

func (e *Engine) attempt(ctx context.Context, batchID string, d *model.EmailDraft, msg *OutboundMessage, attempt int) (string, error) {
	start := e.now()
	msgID, sendErr := e.relay.Send(ctx, msg)
	latency := e.now().Sub(start)

	entry := &model.DeliveryLogEntry{
		DraftID:              d.ID,
		PeriodID:             d.PeriodID,
		Recipient:            d.RecipientEmail,
		Subject:              d.Subject,
		Outcome:              model.OutcomeSent,
		MessageID:            msgID,
		Attempt:              attempt,
		ReadReceiptRequested: e.cfg.ReadReceipt,
		AttemptedAt:          e.now(),
	}
	if sendErr != nil {
		entry.Outcome = model.OutcomeFailed
		entry.Error = sendErr.Error()
	}
	if err := e.store.InsertDeliveryLog(ctx, entry); err != nil {
		e.log.Errorf("draft %d: write delivery log: %v", d.ID, err)
	}

	deliveriesTotal.WithLabelValues(string(d.Category), string(entry.Outcome)).Inc()
	deliveryLatency.WithLabelValues(string(d.Category)).Observe(latency.Seconds())
	e.publisher.Publish(events.DeliveryAttempted{
		BatchID:   batchID,
		DraftID:   d.ID,
		PeriodID:  d.PeriodID,
		Category:  d.Category,
		Recipient: d.RecipientEmail,
		Attempt:   attempt,
		Outcome:   entry.Outcome,
		MessageID: msgID,
		Err:       entry.Error,
		Latency:   latency,
		At:        entry.AttemptedAt,
	})
	return msgID, sendErr
}

// message builds the outbound message. Attachments missing on disk are
// left out.
func (e *Engine) message(d *model.EmailDraft) *OutboundMessage {
	msg := &OutboundMessage{
		DraftID:     d.ID,
		FromAddress: e.cfg.FromAddress,
		FromName:    e.cfg.FromName,
		To:          d.RecipientEmail,
		ToName:      d.RecipientName,
		CC:          d.CC,
		Subject:     d.Subject,
		HTML:        d.BodyHTML,
		Plain:       d.BodyPlain,
		Headers:     map[string]string{},
	}
	if e.cfg.TrackingPixel && e.cfg.TrackingBaseURL != "" {
		msg.HTML = withPixel(msg.HTML, trackingPixel(e.cfg.TrackingBaseURL, d.ID))
	}
	if e.cfg.ReadReceipt && e.cfg.FromAddress != "" {
		for _, h := range []string{"Disposition-Notification-To", "Return-Receipt-To", "X-Confirm-Reading-To"} {
			msg.Headers[h] = e.cfg.FromAddress
		}
	}
	for _, a := range d.Attachments {
		if _, err := os.Stat(a.Path); err != nil {
			e.log.Warnf("draft %d: attachment %s skipped: %v", d.ID, a.Name, err)
			continue
		}
		msg.Attachments = append(msg.Attachments, a)
	}
	return msg
}

// MarkOpened records the first open of a delivery. Later calls leave the
// first timestamp untouched and return false.
func (e *Engine) MarkOpened(ctx context.Context, logID int64) (bool, error) {
	ok, err := e.store.MarkOpened(ctx, logID, e.now())
	if err != nil {
		return false, fmt.Errorf("dispatch: mark opened %d: %w", logID, err)
	}
	if ok {
		deliveriesTotal.WithLabelValues("", string(model.OutcomeOpened)).Inc()
	}
	return ok, nil
}

// OpenByDraft marks the latest successful delivery of a draft as opened.
func (e *Engine) OpenByDraft(ctx context.Context, draftID int64) (bool, error) {
	entry, err := e.store.LatestSentLog(ctx, draftID)
	if err != nil {
		return false, fmt.Errorf("dispatch: delivery of draft %d: %w", draftID, err)
	}
	return e.MarkOpened(ctx, entry.ID)
}

// ReceiptByDraft records a returned read receipt on the latest successful
// delivery of a draft. Only the first receipt is kept.
func (e *Engine) ReceiptByDraft(ctx context.Context, draftID int64) (bool, error) {
	entry, err := e.store.LatestSentLog(ctx, draftID)
	if err != nil {
		return false, fmt.Errorf("dispatch: delivery of draft %d: %w", draftID, err)
	}
	ok, err := e.store.MarkReadReceipt(ctx, entry.ID, e.now())
	if err != nil {
		return false, fmt.Errorf("dispatch: mark read receipt %d: %w", entry.ID, err)
	}
	if ok {
		e.log.Infof("read receipt for draft %d", draftID)
	}
	return ok, nil
}

// Stats aggregates the delivery log of a period.
func (e *Engine) Stats(ctx context.Context, periodID int64) (model.DeliveryStats, error) {
	return e.store.DeliveryStats(ctx, periodID)
}
