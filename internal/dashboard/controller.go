// Package dashboard keeps the local game collection in step with the backend.
//
// A Controller owns the Store. It loads full state on demand, folds pushed
// updates into it while watching, imports spreadsheets and paces their
// submission, and hands every new view of the data to a Renderer.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thruflo/gamecheck/internal/dispatch"
	"github.com/thruflo/gamecheck/internal/importer"
	"github.com/thruflo/gamecheck/internal/logging"
	"github.com/thruflo/gamecheck/internal/metrics"
	"github.com/thruflo/gamecheck/internal/model"
	"github.com/thruflo/gamecheck/internal/store"
	"github.com/thruflo/gamecheck/internal/stream"
)

// LoadingTimeout hides a launch that stopped reporting progress.
const LoadingTimeout = 60 * time.Second

// ErrNotFound is returned for an item ID that is not in the collection.
var ErrNotFound = errors.New("game not found")

// API is the subset of the backend client the controller uses.
type API interface {
	dispatch.Submitter
	GetGameStats(ctx context.Context) (*stream.TestUpdate, error)
	Subscribe(ctx context.Context) (<-chan *stream.Envelope, <-chan error)
	Retry(ctx context.Context, catalogueGameID string) (*stream.SubmitResponse, error)
}

// View is a consistent snapshot handed to a Renderer.
type View struct {
	Items   []model.Item
	Stats   model.Stats
	Loading *model.Loading
	Conn    stream.ConnState
}

// Renderer displays a View. Render may be called concurrently from the
// Watch loop, dispatch acknowledgements and connection state changes, so
// implementations must be safe for concurrent use and return promptly.
type Renderer interface {
	Render(View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(View)

// Render calls f(v).
func (f RendererFunc) Render(v View) { f(v) }

// Options configures a Controller.
type Options struct {
	Policy        store.Policy
	DispatchDelay time.Duration
	Priority      int
	RefreshDelay  time.Duration
	Renderer      Renderer
	Logger        *logging.Logger
	Metrics       *metrics.Metrics
}

// Controller coordinates the store, the backend and the view.
type Controller struct {
	api      API
	store    *store.Store
	tracker  *store.LoadingTracker
	renderer Renderer
	logger   *logging.Logger
	metrics  *metrics.Metrics

	dispatchDelay time.Duration
	priority      int
	refreshDelay  time.Duration

	connMu sync.RWMutex
	conn   stream.ConnState

	// after is time.After, replaceable in tests
	after func(time.Duration) <-chan time.Time
}

// New creates a Controller.
func New(api API, opts Options) (*Controller, error) {
	tracker, err := store.NewLoadingTracker(store.DefaultLoadingCapacity)
	if err != nil {
		return nil, err
	}
	if opts.Policy == "" {
		opts.Policy = store.PolicyLastWriteWins
	}
	if opts.Priority == 0 {
		opts.Priority = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.Component("dashboard")
	}
	if opts.Renderer == nil {
		opts.Renderer = RendererFunc(func(View) {})
	}

	return &Controller{
		api:           api,
		store:         store.New(opts.Policy),
		tracker:       tracker,
		renderer:      opts.Renderer,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		dispatchDelay: opts.DispatchDelay,
		priority:      opts.Priority,
		refreshDelay:  opts.RefreshDelay,
		conn:          stream.StateDisconnected,
		after:         time.After,
	}, nil
}

// Store exposes the underlying collection.
func (c *Controller) Store() *store.Store {
	return c.store
}

// Tracker exposes launch progress.
func (c *Controller) Tracker() *store.LoadingTracker {
	return c.tracker
}

// ObserveConnState records the push channel state and re-renders. It is
// meant to be registered with stream.WithStateHook.
func (c *Controller) ObserveConnState(s stream.ConnState) {
	c.connMu.Lock()
	c.conn = s
	c.connMu.Unlock()
	c.render()
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.tracker.Prune(LoadingTimeout)

	v := View{
		Items: c.store.Snapshot(),
		Stats: c.store.Stats(),
	}
	if l, ok := c.tracker.Current(); ok {
		v.Loading = &l
	}
	c.connMu.RLock()
	v.Conn = c.conn
	c.connMu.RUnlock()
	return v
}

func (c *Controller) render() {
	c.renderer.Render(c.View())
}

// Refresh replaces the collection with the backend's full state.
func (c *Controller) Refresh(ctx context.Context) error {
	upd, err := c.api.GetGameStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh game stats: %w", err)
	}

	c.store.Replace(upd.Items())
	stats := c.store.Stats()
	if upd.Stats != nil && *upd.Stats != stats {
		c.logger.Debug("backend counts differ from derived counts",
			"backend", fmt.Sprintf("%+v", *upd.Stats), "derived", fmt.Sprintf("%+v", stats))
	}
	c.logger.Info("refreshed", "items", c.store.Len())
	c.render()
	return nil
}

// Watch loads full state and then follows the push channel until ctx is
// canceled or the channel gives up. A failed initial load is logged; the
// reconnect refresh will retry it.
func (c *Controller) Watch(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("initial refresh failed", "error", err)
	}

	envCh, errCh := c.api.Subscribe(ctx)

	var refreshC <-chan time.Time
	var completed []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			return fmt.Errorf("event stream ended: %w", err)

		case env, ok := <-envCh:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// The error, if any, is still buffered.
				if err, ok := <-errCh; ok && err != nil {
					return fmt.Errorf("event stream ended: %w", err)
				}
				return nil
			}

			switch env.Type {
			case stream.MessageTypeTestUpdate:
				c.handleTestUpdate(env)

			case stream.MessageTypeGameLoading:
				l, ok := c.handleGameLoading(env)
				if ok && l.Complete() {
					completed = append(completed, trackerKey(l))
					if refreshC == nil {
						refreshC = c.after(c.refreshDelay)
					}
				}

			case stream.MessageTypeReconnected:
				c.logger.Info("event stream reopened, refreshing")
				if err := c.Refresh(ctx); err != nil {
					c.logger.Warn("refresh after reconnect failed", "error", err)
				}

			default:
				c.logger.Debug("ignoring push", "type", env.Type)
			}

		case <-refreshC:
			refreshC = nil
			for _, key := range completed {
				c.tracker.Done(key)
			}
			completed = nil
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("refresh after launch failed", "error", err)
				c.render()
			}
		}
	}
}

func (c *Controller) handleTestUpdate(env *stream.Envelope) {
	upd, err := env.TestUpdateData()
	if err != nil {
		c.metrics.IncError(stream.KindDecode)
		c.logger.Warn("dropping malformed test update", "error", err)
		return
	}

	res, stats := c.store.ApplyMerge(upd.Items())
	c.metrics.AddMerged("updated", res.Updated)
	c.metrics.AddMerged("added", res.Added)
	c.metrics.AddMerged("stale", res.Stale)
	c.metrics.AddMerged("dropped", res.Dropped)
	c.logger.Debug("merged test update",
		"updated", res.Updated, "added", res.Added, "stale", res.Stale, "dropped", res.Dropped,
		"success", stats.Success, "failed", stats.Failed, "pending", stats.Pending)
	c.render()
}

func (c *Controller) handleGameLoading(env *stream.Envelope) (model.Loading, bool) {
	gl, err := env.GameLoadingData()
	if err != nil {
		c.metrics.IncError(stream.KindDecode)
		c.logger.Warn("dropping malformed loading update", "error", err)
		return model.Loading{}, false
	}

	l := c.tracker.Observe(gl.Loading())
	c.render()
	return l, true
}

func trackerKey(l model.Loading) string {
	if l.TestID != "" {
		return l.TestID
	}
	return l.GameID
}

// Import reads a catalogue file, adds its games to the collection and
// submits the eligible ones in file order. It blocks for the whole
// dispatch; cancel ctx to stop early.
func (c *Controller) Import(ctx context.Context, path string) (dispatch.Result, error) {
	rows, err := importer.ReadFile(path)
	if err != nil {
		return dispatch.Result{}, err
	}
	items := importer.RowsToItems(rows)
	added := c.store.ApplyImport(items)
	c.logger.Info("imported catalogue", "path", path, "rows", len(items), "added", added)
	c.render()

	return c.Dispatch(ctx, items)
}

// Dispatch submits items in order with the configured delay.
func (c *Controller) Dispatch(ctx context.Context, items []model.Item) (dispatch.Result, error) {
	d := dispatch.New(c.api, c.dispatchDelay,
		dispatch.WithPriority(c.priority),
		dispatch.WithLogger(c.logger.With("component", "dispatch")),
		dispatch.WithMetrics(c.metrics),
	)
	d.OnAccepted = func(itemID, testID string) {
		c.store.SetSubmissionID(itemID, testID)
		c.render()
	}
	return d.Run(ctx, items)
}

// Retry resubmits an item at retry priority. The item is reset to queued
// first so the next push can move it forward again.
func (c *Controller) Retry(ctx context.Context, id string) (*stream.SubmitResponse, error) {
	it, ok := c.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	catalogueID := it.CatalogueGameID
	if catalogueID == "" {
		catalogueID = it.ID
	}

	c.store.MarkQueued(id)
	c.render()

	resp, err := c.api.Retry(ctx, catalogueID)
	if err != nil {
		c.metrics.IncSubmission(metrics.OutcomeFailed)
		return nil, fmt.Errorf("failed to retry %s: %w", id, err)
	}
	if resp.Acknowledged() {
		c.metrics.IncSubmission(metrics.OutcomeAccepted)
		c.store.SetSubmissionID(id, resp.TestID)
		c.render()
	} else {
		c.metrics.IncSubmission(metrics.OutcomeNoAck)
	}
	c.logger.Info("retry submitted", "item", id, "test_id", resp.TestID)
	return resp, nil
}
