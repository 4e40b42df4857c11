package devserver

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thruflo/gamecheck/internal/logging"
	"github.com/thruflo/gamecheck/internal/model"
	"github.com/thruflo/gamecheck/internal/stream"
)

// ErrMissingCatalogueID is returned for submissions without a catalogue id.
var ErrMissingCatalogueID = errors.New("catalogueGameId is required")

// gameStatus values in the encoding the real backend uses.
var (
	statusQueued  = json.RawMessage(`"in-progress"`)
	statusTesting = json.RawMessage(`"testing"`)
	statusPassed  = json.RawMessage(`true`)
	statusFailed  = json.RawMessage(`false`)
)

// loadingSteps are the progress values pushed while a game launches.
var loadingSteps = []float64{0, 25, 50, 75, 100}

const subscriberBuffer = 64

type game struct {
	status      stream.GameStatus
	catalogueID string
	priority    int
	seq         int
	started     time.Time
}

// Backend is an in-memory game test runner. Submissions queue by priority
// (higher first, then submission order) and launch one at a time. Every
// change is pushed to subscribers as a test-update envelope carrying the
// full state; launches also push game-loading progress.
type Backend struct {
	step      time.Duration
	failEvery int
	logger    *logging.Logger

	mu       sync.Mutex
	games    []*game
	index    map[string]*game
	queue    []*game
	seq      int
	finished int
	wake     chan struct{}

	subMu sync.Mutex
	subs  map[chan []byte]struct{}
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithStepInterval sets the time between launch progress steps.
func WithStepInterval(d time.Duration) BackendOption {
	return func(b *Backend) {
		b.step = d
	}
}

// WithFailEvery makes every nth finished test fail. 0 disables failures.
func WithFailEvery(n int) BackendOption {
	return func(b *Backend) {
		b.failEvery = n
	}
}

// WithBackendLogger sets the logger.
func WithBackendLogger(l *logging.Logger) BackendOption {
	return func(b *Backend) {
		b.logger = l
	}
}

// NewBackend creates an empty Backend. Call Run to start processing.
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{
		step:   500 * time.Millisecond,
		logger: logging.Component("devserver"),
		index:  make(map[string]*game),
		wake:   make(chan struct{}, 1),
		subs:   make(map[chan []byte]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit queues a game for testing. A game that is already queued or
// running keeps its place and test id.
func (b *Backend) Submit(req stream.SubmitRequest) (stream.SubmitResponse, error) {
	catalogueID := strings.TrimSpace(req.CatalogueGameID)
	if catalogueID == "" {
		return stream.SubmitResponse{}, ErrMissingCatalogueID
	}
	priority := req.Priority
	if priority <= 0 {
		priority = 1
	}

	b.mu.Lock()
	g, ok := b.index[catalogueID]
	if ok && isActive(g.status.GameStatus) {
		resp := submitResponse(g.status)
		b.mu.Unlock()
		return resp, nil
	}
	if !ok {
		g = &game{catalogueID: catalogueID, status: stream.GameStatus{ID: catalogueID, CatalogueGameID: catalogueID}}
		b.index[catalogueID] = g
		b.games = append(b.games, g)
	}
	if req.Game != nil {
		applyPayload(&g.status, *req.Game)
	}

	b.seq++
	g.seq = b.seq
	g.priority = priority
	g.status.TestID = uuid.NewString()
	g.status.GameStatus = statusQueued
	g.status.Error = ""
	g.status.ErrorCategory = ""
	g.status.EndTime = stream.Timestamp{}
	g.status.DurationMillis = 0
	b.enqueue(g)
	resp := submitResponse(g.status)
	b.mu.Unlock()

	b.logger.Info("game queued", "game", g.status.ID, "test", resp.TestID, "priority", priority)
	b.publishState()
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return resp, nil
}

func applyPayload(s *stream.GameStatus, p stream.GamePayload) {
	if p.Name != "" {
		s.ID = p.Name
		s.Name = p.Name
	}
	if p.DisplayName != "" {
		s.DisplayName = p.DisplayName
	}
	if p.ProviderName != "" {
		s.ProviderName = p.ProviderName
	}
	if p.Category != "" {
		s.Category = p.Category
	}
	if p.Image != "" {
		s.Image = p.Image
	}
}

func submitResponse(s stream.GameStatus) stream.SubmitResponse {
	info, _ := json.Marshal(s)
	return stream.SubmitResponse{TestID: s.TestID, GameInfo: info}
}

func isActive(raw json.RawMessage) bool {
	st := model.ParseLegacyStatus(raw)
	return st == model.StatusQueued || st == model.StatusInProgress
}

// enqueue inserts g keeping the queue ordered. Callers hold b.mu.
func (b *Backend) enqueue(g *game) {
	b.queue = append(b.queue, g)
	sort.SliceStable(b.queue, func(i, j int) bool {
		if b.queue[i].priority != b.queue[j].priority {
			return b.queue[i].priority > b.queue[j].priority
		}
		return b.queue[i].seq < b.queue[j].seq
	})
}

// Run launches queued games one at a time until ctx is canceled.
func (b *Backend) Run(ctx context.Context) {
	for {
		g := b.next()
		if g == nil {
			select {
			case <-ctx.Done():
				return
			case <-b.wake:
				continue
			}
		}
		if err := b.launch(ctx, g); err != nil {
			return
		}
	}
}

// next pops the head of the queue and marks it as testing.
func (b *Backend) next() *game {
	b.mu.Lock()
	if len(b.queue) == 0 {
		b.mu.Unlock()
		return nil
	}
	g := b.queue[0]
	b.queue = b.queue[1:]
	g.status.GameStatus = statusTesting
	g.started = time.Now()
	b.mu.Unlock()

	b.publishState()
	return g
}

// launch pushes progress for g and then records its result. A reset while
// the launch is running discards the result.
func (b *Backend) launch(ctx context.Context, g *game) error {
	b.mu.Lock()
	info := stream.GameLoading{
		TestID:    g.status.TestID,
		GameID:    g.status.ID,
		GameName:  g.status.DisplayName,
		GameImage: g.status.Image,
		Provider:  g.status.ProviderName,
	}
	b.mu.Unlock()

	for _, p := range loadingSteps {
		info.Progress = p
		info.Status = loadingStatus(p)
		b.publish(stream.MessageTypeGameLoading, info)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.step):
		}
	}

	b.mu.Lock()
	if b.index[g.catalogueID] != g || g.status.TestID != info.TestID {
		b.mu.Unlock()
		return nil
	}
	b.finished++
	now := time.Now()
	g.status.EndTime = stream.Timestamp(now.UTC())
	g.status.DurationMillis = float64(now.Sub(g.started).Milliseconds())
	passed := b.failEvery <= 0 || b.finished%b.failEvery != 0
	if !passed {
		g.status.GameStatus = statusFailed
		g.status.Error = "game did not finish loading"
		g.status.ErrorCategory = "timeout"
	} else {
		g.status.GameStatus = statusPassed
	}
	id := g.status.ID
	b.mu.Unlock()

	b.logger.Info("test finished", "game", id, "test", info.TestID, "passed", passed)
	b.publishState()
	return nil
}

func loadingStatus(progress float64) string {
	switch {
	case progress <= 0:
		return "Opening lobby"
	case progress < 100:
		return "Loading game"
	default:
		return "Game loaded"
	}
}

// Snapshot returns the full state in the game-stats format.
func (b *Backend) Snapshot() stream.TestUpdate {
	b.mu.Lock()
	u := stream.TestUpdate{GameStatus: make([]stream.GameStatus, 0, len(b.games))}
	for _, g := range b.games {
		u.GameStatus = append(u.GameStatus, g.status)
	}
	b.mu.Unlock()

	stats := model.ComputeStats(u.Items())
	u.Stats = &stats
	return u
}

// Reset drops every game and queued test.
func (b *Backend) Reset() {
	b.mu.Lock()
	b.games = nil
	b.queue = nil
	b.index = make(map[string]*game)
	b.finished = 0
	b.mu.Unlock()

	b.logger.Info("backend reset")
	b.publishState()
}

// Subscribe registers a push listener. The returned function unregisters
// it and closes the channel. Slow listeners miss envelopes.
func (b *Backend) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	b.subMu.Lock()
	b.subs[ch] = struct{}{}
	b.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.subMu.Lock()
			delete(b.subs, ch)
			b.subMu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of registered listeners.
func (b *Backend) Subscribers() int {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	return len(b.subs)
}

func (b *Backend) publishState() {
	u := b.Snapshot()
	b.publish(stream.MessageTypeTestUpdate, u)
}

func (b *Backend) publish(t stream.MessageType, data any) {
	env, err := stream.NewEnvelope(t, data)
	if err != nil {
		b.logger.Error("failed to build push", "type", t, "error", err)
		return
	}
	raw, err := env.Marshal()
	if err != nil {
		b.logger.Error("failed to encode push", "type", t, "error", err)
		return
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- raw:
		default:
			b.logger.Warn("dropping push for slow subscriber", "type", t)
		}
	}
}

// historyHeader is the header row of the CSV report.
var historyHeader = []string{"id", "catalogueGameId", "provider", "category", "result", "error", "endTime", "durationMs", "testId"}

// WriteHistoryCSV writes every finished test as CSV.
func (b *Backend) WriteHistoryCSV(w io.Writer) error {
	b.mu.Lock()
	var rows [][]string
	for _, g := range b.games {
		st := model.ParseLegacyStatus(g.status.GameStatus)
		if !st.IsTerminal() {
			continue
		}
		rows = append(rows, []string{
			g.status.ID,
			g.catalogueID,
			g.status.ProviderName,
			g.status.Category,
			st.String(),
			string(g.status.Error),
			time.Time(g.status.EndTime).Format(time.RFC3339),
			strconv.FormatFloat(g.status.DurationMillis, 'f', 0, 64),
			g.status.TestID,
		})
	}
	b.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write(historyHeader); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
