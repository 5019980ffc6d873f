package utils

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ReconnectPolicy drives the exponential backoff used when redialing a
// dropped websocket session.
type ReconnectPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

var DefaultReconnectPolicy = ReconnectPolicy{
	InitialDelay: time.Second,
	MaxDelay:     time.Minute,
	Multiplier:   2.0,
}

// NextDelay returns the backoff delay for the given attempt, starting at 0.
func (p ReconnectPolicy) NextDelay(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// ShouldReconnect reports whether a websocket read/write failure is worth a
// redial. Clean closes and context cancellations end the session for good.
func ShouldReconnect(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
		return false
	}

	closeErr := &websocket.CloseError{}
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			return false
		default:
			return true
		}
	}

	// Cloudflare 524 responses during server restart windows are retryable.
	if strings.Contains(err.Error(), "524") {
		return true
	}

	return true
}
