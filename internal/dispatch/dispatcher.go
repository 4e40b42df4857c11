// Package dispatch submits imported games to the backend one at a time with
// a fixed delay between submissions.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/thruflo/gamecheck/internal/logging"
	"github.com/thruflo/gamecheck/internal/metrics"
	"github.com/thruflo/gamecheck/internal/model"
	"github.com/thruflo/gamecheck/internal/stream"
)

// Submitter sends one game to the backend.
type Submitter interface {
	SubmitGame(ctx context.Context, req stream.SubmitRequest) (*stream.SubmitResponse, error)
}

// Failure records a submission that was rejected.
type Failure struct {
	ItemID string
	Err    error
}

// Result summarises a dispatch run.
type Result struct {
	RunID string
	// Submitted counts submissions issued, whatever their outcome.
	Submitted int
	// Acknowledged counts submissions that returned a test ID.
	Acknowledged int
	// Skipped counts items without a catalogue ID.
	Skipped  int
	Failures []Failure
}

// Dispatcher paces submissions. The zero value is not usable; use New.
type Dispatcher struct {
	submitter Submitter
	delay     time.Duration
	priority  int
	logger    *logging.Logger
	metrics   *metrics.Metrics

	// OnAccepted, if set, is called with the item ID and test ID of every
	// acknowledged submission.
	OnAccepted func(itemID, testID string)

	// after is time.After, replaceable in tests
	after func(time.Duration) <-chan time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPriority sets the queue priority sent with each submission.
func WithPriority(p int) Option {
	return func(d *Dispatcher) {
		d.priority = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a Dispatcher that waits delay between submissions.
func New(submitter Submitter, delay time.Duration, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		submitter: submitter,
		delay:     delay,
		priority:  1,
		logger:    logging.Component("dispatch"),
		after:     time.After,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run submits every eligible item in input order, waiting the configured
// delay between consecutive submissions. A rejected submission is recorded
// and the queue moves on. Items without a catalogue ID are skipped without
// consuming a delay slot.
//
// Canceling ctx stops further submissions and abandons the pending delay;
// Run then returns the partial result and ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, items []model.Item) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := d.logger.With("run", res.RunID)

	pending := 0
	for _, it := range items {
		if it.Eligible() {
			pending++
		}
	}
	log.Info("dispatch started", "items", len(items), "eligible", pending, "delay", d.delay)

	for _, it := range items {
		if !it.Eligible() {
			res.Skipped++
			d.metrics.IncSubmission(metrics.OutcomeSkipped)
			log.Debug("skipping item without catalogue id", "item", it.ID)
			continue
		}

		if res.Submitted > 0 {
			select {
			case <-ctx.Done():
				log.Warn("dispatch canceled", "submitted", res.Submitted, "remaining", pending)
				return res, ctx.Err()
			case <-d.after(d.delay):
			}
		} else if err := ctx.Err(); err != nil {
			return res, err
		}

		d.submit(ctx, log, it, &res)
		pending--
	}

	log.Info("dispatch finished",
		"submitted", res.Submitted,
		"acknowledged", res.Acknowledged,
		"failed", len(res.Failures),
		"skipped", res.Skipped,
	)
	return res, nil
}

func (d *Dispatcher) submit(ctx context.Context, log *logging.Logger, it model.Item, res *Result) {
	res.Submitted++

	resp, err := d.submitter.SubmitGame(ctx, stream.NewSubmitRequest(it, d.priority))
	if err != nil {
		res.Failures = append(res.Failures, Failure{ItemID: it.ID, Err: err})
		d.metrics.IncSubmission(metrics.OutcomeFailed)
		log.Warn("submission failed", "item", it.ID, "catalogue_id", it.CatalogueGameID, "error", err)
		return
	}

	if !resp.Acknowledged() {
		d.metrics.IncSubmission(metrics.OutcomeNoAck)
		log.Info("submission not acknowledged", "item", it.ID)
		return
	}

	res.Acknowledged++
	d.metrics.IncSubmission(metrics.OutcomeAccepted)
	log.Info("submission accepted", "item", it.ID, "test_id", resp.TestID)
	if d.OnAccepted != nil {
		d.OnAccepted(it.ID, resp.TestID)
	}
}
