package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize == 0 {
		opts.QueueSize = 8
	}
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	if opts.MaxDuration == 0 {
		opts.MaxDuration = time.Second
	}
	return NewDispatcher(opts)
}

func TestDispatcherRunsQueuedJobs(t *testing.T) {
	d := newTestDispatcher(Options{})
	var ran atomic.Int32

	for i := 0; i < 5; i++ {
		err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
			ran.Add(1)
			return nil
		})
		require.NoError(t, err)
	}
	d.Close()

	require.Equal(t, int32(5), ran.Load())
	require.Zero(t, d.ErrorCount())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestDispatcherRetriesRetryableErrors(t *testing.T) {
	d := newTestDispatcher(Options{MaxRetries: 2})
	var attempts atomic.Int32

	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		if attempts.Add(1) < 3 {
			return timeoutErr{}
		}
		return nil
	})
	require.NoError(t, err)
	d.Close()

	require.Equal(t, int32(3), attempts.Load())
	require.Zero(t, d.ErrorCount())
}

func TestDispatcherDoesNotRetryPermanentErrors(t *testing.T) {
	d := newTestDispatcher(Options{MaxRetries: 3})
	var attempts atomic.Int32

	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		attempts.Add(1)
		return errors.New("400 bad request")
	})
	require.NoError(t, err)
	d.Close()

	require.Equal(t, int32(1), attempts.Load())
	require.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherEnqueueAfterClose(t *testing.T) {
	d := newTestDispatcher(Options{})
	d.Close()

	err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil })
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1, MaxDuration: time.Second, RetryBackoff: time.Millisecond})
	defer d.Close()

	release := make(chan struct{})
	// occupy the single worker
	require.NoError(t, d.Enqueue(context.Background(), "a", "", func() error {
		<-release
		return nil
	}))

	// fill the queue, then overflow it
	var sawFull bool
	for i := 0; i < 10; i++ {
		if err := d.Enqueue(context.Background(), "b", "", func() error { return nil }); errors.Is(err, ErrQueueFull) {
			sawFull = true
			break
		}
	}
	close(release)
	require.True(t, sawFull)
}
