package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/gamecheck/internal/metrics"
	"github.com/thruflo/gamecheck/internal/model"
	"github.com/thruflo/gamecheck/internal/stream"
)

type call struct {
	req stream.SubmitRequest
	at  time.Time
}

// fakeSubmitter records submissions and answers from a per-catalogue table.
type fakeSubmitter struct {
	mu     sync.Mutex
	calls  []call
	fail   map[string]bool
	noAck  map[string]bool
	onCall func(n int)
}

func (f *fakeSubmitter) SubmitGame(_ context.Context, req stream.SubmitRequest) (*stream.SubmitResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{req: req, at: time.Now()})
	n := len(f.calls)
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if f.fail[req.CatalogueGameID] {
		return nil, errors.New("backend unavailable")
	}
	if f.noAck[req.CatalogueGameID] {
		return &stream.SubmitResponse{}, nil
	}
	return &stream.SubmitResponse{TestID: "test-" + req.CatalogueGameID}, nil
}

func (f *fakeSubmitter) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.req.CatalogueGameID
	}
	return out
}

func items(catalogueIDs ...string) []model.Item {
	out := make([]model.Item, len(catalogueIDs))
	for i, id := range catalogueIDs {
		out[i] = model.Item{ID: "item-" + id, Name: "Game " + id, CatalogueGameID: id}
	}
	return out
}

// instant returns an after func that records requested waits and fires
// immediately.
func instant(waits *[]time.Duration, mu *sync.Mutex) func(time.Duration) <-chan time.Time {
	return func(d time.Duration) <-chan time.Time {
		mu.Lock()
		*waits = append(*waits, d)
		mu.Unlock()
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
}

func TestRunSubmitsInOrderWithDelayBetween(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{fail: map[string]bool{"2": true}}
	var waits []time.Duration
	var mu sync.Mutex

	d := New(sub, 30*time.Second, WithPriority(1))
	d.after = instant(&waits, &mu)

	res, err := d.Run(context.Background(), items("1", "2", "3"))
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, sub.ids())
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, waits,
		"one wait between each consecutive pair, none after the last")

	assert.Equal(t, 3, res.Submitted)
	assert.Equal(t, 2, res.Acknowledged)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "item-2", res.Failures[0].ItemID)
	assert.NotEmpty(t, res.RunID)
}

func TestRunSpacesSubmissionsInRealTime(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{fail: map[string]bool{"b": true}}
	delay := 60 * time.Millisecond

	res, err := New(sub, delay).Run(context.Background(), items("a", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Submitted)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.Len(t, sub.calls, 3)
	for i := 1; i < len(sub.calls); i++ {
		gap := sub.calls[i].at.Sub(sub.calls[i-1].at)
		assert.GreaterOrEqual(t, gap, delay, "gap %d", i)
	}
}

func TestRunEmptyInputIsImmediate(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	d := New(sub, time.Hour)
	d.after = func(time.Duration) <-chan time.Time {
		t.Fatal("no wait expected for empty input")
		return nil
	}

	start := time.Now()
	res, err := d.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, res.Submitted)
	assert.Empty(t, sub.ids())
}

func TestRunSingleItemHasNoTrailingWait(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	d := New(sub, time.Hour)
	d.after = func(time.Duration) <-chan time.Time {
		t.Fatal("no wait expected after the only submission")
		return nil
	}

	res, err := d.Run(context.Background(), items("only"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Acknowledged)
}

func TestRunSkipsIneligibleWithoutDelay(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	var waits []time.Duration
	var mu sync.Mutex

	m := metrics.New()
	d := New(sub, 10*time.Second, WithMetrics(m))
	d.after = instant(&waits, &mu)

	in := items("1", "", "2", "  ")
	res, err := d.Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, sub.ids())
	assert.Len(t, waits, 1)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 2, res.Submitted)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues(metrics.OutcomeSkipped)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues(metrics.OutcomeAccepted)))
}

func TestRunCancelHaltsPendingDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := &fakeSubmitter{onCall: func(n int) {
		if n == 1 {
			cancel()
		}
	}}
	d := New(sub, time.Hour)

	done := make(chan struct{})
	var res Result
	var err error
	go func() {
		res, err = d.Run(ctx, items("1", "2", "3"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Submitted)
	assert.Equal(t, []string{"1"}, sub.ids())
}

func TestRunAlreadyCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sub := &fakeSubmitter{}
	res, err := New(sub, time.Millisecond).Run(ctx, items("1"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Submitted)
	assert.Empty(t, sub.ids())
}

func TestRunReportsAcceptedAndUnacknowledged(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{noAck: map[string]bool{"2": true}}
	var waits []time.Duration
	var mu sync.Mutex

	m := metrics.New()
	d := New(sub, time.Second, WithPriority(2), WithMetrics(m))
	d.after = instant(&waits, &mu)

	accepted := map[string]string{}
	d.OnAccepted = func(itemID, testID string) {
		accepted[itemID] = testID
	}

	res, err := d.Run(context.Background(), items("1", "2"))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Acknowledged)
	assert.Empty(t, res.Failures)
	assert.Equal(t, map[string]string{"item-1": "test-1"}, accepted)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues(metrics.OutcomeNoAck)))

	sub.mu.Lock()
	defer sub.mu.Unlock()
	for _, c := range sub.calls {
		assert.Equal(t, 2, c.req.Priority)
		require.NotNil(t, c.req.Game)
	}
	assert.Equal(t, "Game 1", sub.calls[0].req.Game.Name)
}
