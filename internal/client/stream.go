package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"chatstream/internal/models"
)

// Stream is the caller's handle on one in-flight request. Deltas arrive in
// order on a single channel which closes after the terminal delta. The
// accumulated text stays readable after any terminal state, so a cancelled
// or failed stream still surrenders its partial transcript.
type Stream struct {
	deltas   chan models.StreamDelta
	cancel   context.CancelFunc
	watchdog *time.Timer

	mu               sync.Mutex
	state            State
	errv             error
	pendingErr       error
	pendingDelivered bool
	gotDelta         bool
	buf              strings.Builder
}

// Deltas returns the ordered delta channel. The channel is closed once the
// stream reaches a terminal state.
func (s *Stream) Deltas() <-chan models.StreamDelta {
	return s.deltas
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the terminal error, if any. Nil while streaming and for
// streams that completed normally.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errv
}

// Text returns the transcript accumulated so far. Valid in every state,
// including after cancellation.
func (s *Stream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Cancel aborts the underlying connection and moves the stream to
// Cancelled. Deltas already queued may still be delivered; nothing further
// is read from the network. Safe to call multiple times and after
// completion.
func (s *Stream) Cancel() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateCancelled
	s.errv = ErrCancelled
	s.mu.Unlock()
	s.cancel()
}

// emit records and delivers one delta. Returns false when the stream has
// been cancelled or otherwise torn down and reading should stop. Late
// content deltas after a terminal transition are dropped; only a terminal
// error delta may pass through a Failed state.
func (s *Stream) emit(ctx context.Context, delta models.StreamDelta) bool {
	s.mu.Lock()
	if s.state == StateCancelled || (s.state.Terminal() && delta.Err == nil) {
		s.mu.Unlock()
		return false
	}
	if !s.gotDelta {
		s.gotDelta = true
		s.watchdog.Stop()
	}
	s.buf.WriteString(delta.Text)
	s.mu.Unlock()

	select {
	case s.deltas <- delta:
		return true
	case <-ctx.Done():
		if delta.Err != nil {
			// A terminal error delta must land even when the buffer is
			// full. Displace queued content deltas; their text is already
			// in the transcript buffer.
			for {
				select {
				case s.deltas <- delta:
					return false
				default:
				}
				select {
				case <-s.deltas:
				default:
				}
			}
		}
		// Best effort: land a content delta if buffer space remains.
		select {
		case s.deltas <- delta:
		default:
		}
		return false
	}
}

// finish moves the stream to a terminal state unless one was already
// reached. The first terminal transition wins; later ones are no-ops.
func (s *Stream) finish(next State, err error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.errv = err
	s.mu.Unlock()
	s.cancel()
}

// transition performs a non-terminal state move.
func (s *Stream) transition(from, to State) {
	s.mu.Lock()
	if s.state == from {
		s.state = to
	}
	s.mu.Unlock()
}

// resolveFailure decides what terminal error delta, if any, a failed
// transport should deliver. Cancellation suppresses the delta entirely; a
// watchdog-armed failure delivers its recorded error exactly once.
func (s *Stream) resolveFailure(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCancelled {
		return nil
	}
	if s.pendingErr != nil {
		if s.pendingDelivered {
			return nil
		}
		s.pendingDelivered = true
		return s.pendingErr
	}
	if s.state.Terminal() {
		return nil
	}
	if err == nil {
		return nil
	}
	s.state = StateFailed
	s.errv = err
	return err
}

// onWatchdog fires when no delta arrived before the deadline. The losing
// network read is unblocked via context cancellation and its late effects
// are suppressed.
func (s *Stream) onWatchdog() {
	s.mu.Lock()
	if s.gotDelta || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.errv = ErrWatchdogTimeout
	s.pendingErr = ErrWatchdogTimeout
	s.mu.Unlock()
	s.cancel()
}
