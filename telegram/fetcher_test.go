package telegram

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/edmondantes/salary-bot/core/config"
	"github.com/edmondantes/salary-bot/core/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(&coreconfig.Config{
		Logging: coreconfig.LoggingConfig{Level: "error"},
	})
	os.Exit(m.Run())
}

type stubSource struct {
	mu      sync.Mutex
	updates []tele.Update
	err     error
	offsets []*int64
}

func (s *stubSource) Fetch(_ context.Context, offset *int64, _ int) ([]tele.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var seen *int64
	if offset != nil {
		v := *offset
		seen = &v
	}
	s.offsets = append(s.offsets, seen)
	return s.updates, s.err
}

type recordingHandler struct {
	mu      sync.Mutex
	ids     []int
	panicOn int
	errOn   int
}

func (h *recordingHandler) HandleUpdate(_ context.Context, upd tele.Update) error {
	if h.panicOn != 0 && upd.ID == h.panicOn {
		panic("handler exploded")
	}
	h.mu.Lock()
	h.ids = append(h.ids, upd.ID)
	h.mu.Unlock()
	if h.errOn != 0 && upd.ID == h.errOn {
		return errors.New("handle failed")
	}
	return nil
}

func updates(ids ...int) []tele.Update {
	out := make([]tele.Update, 0, len(ids))
	for _, id := range ids {
		out = append(out, tele.Update{ID: id})
	}
	return out
}

func TestFetchOnceAdvancesToMaxIDPlusOne(t *testing.T) {
	source := &stubSource{updates: updates(3, 7, 5)}
	handler := &recordingHandler{}
	f := NewFetcher(source, handler, FetcherOptions{})

	next := f.fetchOnce(context.Background(), nil)
	require.NotNil(t, next)
	require.Equal(t, int64(8), *next)
	require.Equal(t, []int{3, 7, 5}, handler.ids)

	// the first request confirms nothing
	require.Len(t, source.offsets, 1)
	require.Nil(t, source.offsets[0])
}

func TestFetchOnceKeepsOffsetOnEmptyBatch(t *testing.T) {
	source := &stubSource{}
	f := NewFetcher(source, &recordingHandler{}, FetcherOptions{})

	offset := int64(42)
	next := f.fetchOnce(context.Background(), &offset)
	require.Equal(t, &offset, next)
}

func TestFetchOnceKeepsOffsetOnError(t *testing.T) {
	source := &stubSource{err: errors.New("telegram is down")}
	f := NewFetcher(source, &recordingHandler{}, FetcherOptions{})

	offset := int64(42)
	next := f.fetchOnce(context.Background(), &offset)
	require.Equal(t, &offset, next)
}

func TestFetchOnceKeepsOffsetOnTimeout(t *testing.T) {
	source := &stubSource{err: context.DeadlineExceeded}
	f := NewFetcher(source, &recordingHandler{}, FetcherOptions{})

	next := f.fetchOnce(context.Background(), nil)
	require.Nil(t, next)
}

func TestFetchOnceNeverRegressesWatermark(t *testing.T) {
	source := &stubSource{updates: updates(5)}
	f := NewFetcher(source, &recordingHandler{}, FetcherOptions{})

	offset := int64(100)
	next := f.fetchOnce(context.Background(), &offset)
	require.Equal(t, int64(100), *next)
}

func TestFetchOncePanicIsolatedPerUpdate(t *testing.T) {
	source := &stubSource{updates: updates(1, 2, 3)}
	handler := &recordingHandler{panicOn: 2}
	f := NewFetcher(source, handler, FetcherOptions{})

	next := f.fetchOnce(context.Background(), nil)
	require.Equal(t, int64(4), *next)
	require.Equal(t, []int{1, 3}, handler.ids)
}

func TestFetchOnceHandlerErrorDoesNotBlockBatch(t *testing.T) {
	source := &stubSource{updates: updates(1, 2, 3)}
	handler := &recordingHandler{errOn: 2}
	f := NewFetcher(source, handler, FetcherOptions{})

	next := f.fetchOnce(context.Background(), nil)
	require.Equal(t, int64(4), *next)
	require.Equal(t, []int{1, 2, 3}, handler.ids)
}

// blockingSource hangs in the long poll until its context is cancelled.
type blockingSource struct {
	cancelled chan struct{}
	once      sync.Once
}

func (s *blockingSource) Fetch(ctx context.Context, _ *int64, _ int) ([]tele.Update, error) {
	<-ctx.Done()
	s.once.Do(func() { close(s.cancelled) })
	return nil, ctx.Err()
}

func TestStopInterruptsInFlightPoll(t *testing.T) {
	source := &blockingSource{cancelled: make(chan struct{})}
	f := NewFetcher(source, &recordingHandler{}, FetcherOptions{
		StopGrace:      50 * time.Millisecond,
		InterruptGrace: time.Second,
	})

	f.Start()
	time.Sleep(20 * time.Millisecond)

	started := time.Now()
	f.Stop()
	require.Less(t, time.Since(started), 3*time.Second)

	select {
	case <-source.cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight fetch was not interrupted")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	source := &blockingSource{cancelled: make(chan struct{})}
	f := NewFetcher(source, &recordingHandler{}, FetcherOptions{
		StopGrace:      50 * time.Millisecond,
		InterruptGrace: time.Second,
	})

	f.Start()
	f.Start()
	f.Stop()
	f.Stop()
}
