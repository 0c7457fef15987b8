package reconcile

import (
	"context"
	"time"
)

// ConnState is the realtime connection state.
//
//	disconnected -> connecting -> connected
//	connected -> backoff (transport failure)
//	backoff -> connecting (delay elapsed)
//	backoff -> disconnected (attempts exhausted, waits for Refresh)
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateBackoff      ConnState = "backoff"
)

// NoticeKind identifies what a Notice reports.
type NoticeKind string

const (
	NoticeState          NoticeKind = "state"
	NoticeWriteFailed    NoticeKind = "write_failed"
	NoticeWriteConfirmed NoticeKind = "write_confirmed"
	NoticeRemoteApplied  NoticeKind = "remote_applied"
	NoticeRoster         NoticeKind = "roster"
)

// Notice is delivered to observers. Err is set for write failures and for the
// disconnected state entered after exhausting reconnect attempts.
type Notice struct {
	Kind     NoticeKind
	State    ConnState
	Revision int64
	Err      error
}

// Config tunes write retries and reconnect backoff.
type Config struct {
	// InitialBackoff is the delay before the first reconnect attempt.
	// Each following attempt doubles it.
	InitialBackoff time.Duration

	// MaxAttempts caps reconnect attempts after a transport failure.
	MaxAttempts int

	// WriteRetries is the number of immediate retries of a failed write.
	WriteRetries int
}

// DefaultConfig returns 1s initial backoff, 5 attempts, 1 write retry.
func DefaultConfig() Config {
	return Config{
		InitialBackoff: time.Second,
		MaxAttempts:    5,
		WriteRetries:   1,
	}
}

// Delay returns the wait before reconnect attempt n (1-based).
func (c Config) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return c.InitialBackoff << (n - 1)
}

// Waiter blocks for d or until ctx is done.
type Waiter func(ctx context.Context, d time.Duration) error

// SleepWaiter waits on a real timer.
func SleepWaiter(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
