package telegram

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/edmondantes/salary-bot/core/logger"
	"github.com/edmondantes/salary-bot/telegram/netutil"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// UpdatesSource is the blocking getUpdates call the fetcher loops over.
// A nil offset requests the oldest unconfirmed updates.
type UpdatesSource interface {
	Fetch(ctx context.Context, offset *int64, timeoutSec int) ([]tele.Update, error)
}

// Handler consumes a single update. Errors and panics are isolated per
// update and never affect siblings in the same batch.
type Handler interface {
	HandleUpdate(ctx context.Context, upd tele.Update) error
}

// FetcherOptions bounds the fetch loop and its shutdown.
type FetcherOptions struct {
	TimeoutSeconds int
	// StopGrace is how long Stop waits for the loop to exit on its own.
	StopGrace time.Duration
	// InterruptGrace is how long Stop waits after cancelling the in-flight fetch.
	InterruptGrace time.Duration
}

// Fetcher runs the long-poll loop: it pulls update batches, tracks the
// next-offset watermark and hands each update to the handler. The watermark
// advances once per batch, so a crash mid-batch redelivers the whole batch.
type Fetcher struct {
	source  UpdatesSource
	handler Handler
	opts    FetcherOptions

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewFetcher builds a fetcher; zeroed options get defaults.
func NewFetcher(source UpdatesSource, handler Handler, opts FetcherOptions) *Fetcher {
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = 5
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 5 * time.Second
	}
	if opts.InterruptGrace <= 0 {
		opts.InterruptGrace = 5 * time.Second
	}
	return &Fetcher{
		source:  source,
		handler: handler,
		opts:    opts,
	}
}

// Start launches the fetch loop on its own goroutine. Exactly one loop runs
// per fetcher; subsequent calls are no-ops.
func (f *Fetcher) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return
	}
	f.started = true

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.stop = make(chan struct{})
	f.done = make(chan struct{})

	logger.Fetch.Info("fetch loop started",
		slog.String("event", "start"),
		slog.Int("timeout_seconds", f.opts.TimeoutSeconds),
	)
	go f.loop(ctx)
}

func (f *Fetcher) loop(ctx context.Context) {
	defer close(f.done)
	var offset *int64
	for {
		select {
		case <-f.stop:
			logger.Fetch.Info("fetch loop stopped",
				slog.String("event", "stop"),
			)
			return
		default:
		}
		offset = f.fetchOnce(ctx, offset)
	}
}

// fetchOnce performs one getUpdates round and returns the advanced
// watermark. Failures yield the previous watermark so the next round
// re-requests from the same position.
func (f *Fetcher) fetchOnce(ctx context.Context, offset *int64) *int64 {
	updates, err := f.source.Fetch(ctx, offset, f.opts.TimeoutSeconds)
	if err != nil {
		// Elapsed long-poll waits and interrupts are normal; anything else
		// is worth a warning but never kills the loop.
		if !netutil.IsTimeout(err) {
			logger.Fetch.Warn("can not get updates",
				slog.String("event", "fetch.fail"),
				slog.String("err", err.Error()),
			)
		}
		return offset
	}

	if len(updates) == 0 {
		return offset
	}

	newOffset := int64(math.MinInt64)
	if offset != nil {
		newOffset = *offset
	}

	for _, upd := range updates {
		if next := int64(upd.ID) + 1; next > newOffset {
			newOffset = next
		}
		f.handle(ctx, upd)
	}

	if logger.ShouldSampleDebug() {
		logger.Fetch.Debug("batch handled",
			slog.String("event", "fetch.batch"),
			slog.Int("batch", len(updates)),
			slog.Int64("offset", newOffset),
		)
	}
	return &newOffset
}

func (f *Fetcher) handle(ctx context.Context, upd tele.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Fetch.Error("handler panic",
				slog.String("event", "handle.panic"),
				slog.Int64("update_id", int64(upd.ID)),
				slog.String("handler", fmt.Sprintf("%T", f.handler)),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	if err := f.handler.HandleUpdate(ctx, upd); err != nil {
		logger.Fetch.Error("can not handle update",
			slog.String("event", "handle.fail"),
			slog.Int64("update_id", int64(upd.ID)),
			slog.String("handler", fmt.Sprintf("%T", f.handler)),
			slog.String("err", err.Error()),
		)
	}
}

// Stop requests cooperative shutdown, escalating to interrupting the
// in-flight fetch after StopGrace and giving up after InterruptGrace.
// Failure to stop is logged, not fatal.
func (f *Fetcher) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	stop, done, cancel := f.stop, f.done, f.cancel
	f.mu.Unlock()

	select {
	case <-stop:
	default:
		close(stop)
	}

	select {
	case <-done:
		cancel()
		return
	case <-time.After(f.opts.StopGrace):
	}

	// The loop is most likely blocked inside the long poll; cancel it.
	cancel()

	select {
	case <-done:
	case <-time.After(f.opts.InterruptGrace):
		logger.Fetch.Error("can not stop fetch loop",
			slog.String("event", "stop.timeout"),
			slog.Duration("duration", f.opts.StopGrace+f.opts.InterruptGrace),
		)
	}
}
